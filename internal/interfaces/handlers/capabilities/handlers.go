package capabilities

import (
	capsvc "propshare-backend/internal/application/capabilities"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/middleware"
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *capsvc.Service
}

type grantBody struct {
	Capability string `json:"capability"`
}

func actorAndTarget(c *fiber.Ctx) (capsvc.Actor, uuid.UUID, error) {
	user := middleware.GetUser(c)
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		return capsvc.Actor{}, uuid.Nil, domain.ErrUnauthorized
	}
	target, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return capsvc.Actor{}, uuid.Nil, domain.InvalidInput("id must be a uuid")
	}
	return capsvc.Actor{UserID: actorID, Role: user.Role}, target, nil
}

// GET /api/v1/me/capabilities
func (h *Handlers) Mine(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	names, err := h.Service.Granted(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Capabilities fetched successfully", names, nil)
}

// GET /api/v1/admin/users/:id/capabilities
func (h *Handlers) List(c *fiber.Ctx) error {
	target, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.FromError(c, domain.InvalidInput("id must be a uuid"))
	}
	names, err := h.Service.Granted(c.UserContext(), target)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Capabilities fetched successfully", names, nil)
}

// POST /api/v1/admin/users/:id/capabilities
func (h *Handlers) Grant(c *fiber.Ctx) error {
	actor, target, err := actorAndTarget(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body grantBody
	if err := c.BodyParser(&body); err != nil || body.Capability == "" {
		return response.Error(c, "capability is required", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.GrantAs(c.UserContext(), actor, target, body.Capability); err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Capability granted", fiber.Map{"user_id": target, "capability": body.Capability}, nil)
}

// DELETE /api/v1/admin/users/:id/capabilities/:name
func (h *Handlers) Revoke(c *fiber.Ctx) error {
	actor, target, err := actorAndTarget(c)
	if err != nil {
		return response.FromError(c, err)
	}
	name := c.Params("name")
	if err := h.Service.RevokeAs(c.UserContext(), actor, target, name); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Capability revoked", fiber.Map{"user_id": target, "capability": name}, nil)
}
