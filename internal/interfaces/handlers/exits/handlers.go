package exits

import (
	"propshare-backend/internal/application/engine"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/middleware"
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Engine *engine.Engine
}

type createBody struct {
	OwnershipID string             `json:"ownership_id"`
	Units       int64              `json:"units"`
	BankDetails domain.BankDetails `json:"bank_details"`
}

type decisionBody struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.InvalidInput("id must be a uuid")
	}
	return id, nil
}

// POST /api/v1/exits
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ownershipID, err := uuid.Parse(body.OwnershipID)
	if err != nil {
		return response.FromError(c, domain.InvalidInput("ownership_id must be a uuid"))
	}
	receipt, err := h.Engine.RequestExit(c.UserContext(), engine.ExitRequestInput{
		UserID:      userID,
		OwnershipID: ownershipID,
		Units:       body.Units,
		BankDetails: body.BankDetails,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Exit request submitted", fiber.Map{
		"exit_request_id":  receipt.ExitRequestID,
		"estimated_payout": receipt.EstimatedPayout.StringFixed(2),
	}, nil)
}

// POST /api/v1/exits/:id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := pathID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Engine.CancelExit(c.UserContext(), userID, id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Exit request cancelled", fiber.Map{"exit_request_id": id, "status": domain.ExitStatusCancelled}, nil)
}

// POST /api/v1/exits/:id/decision
func (h *Handlers) Decide(c *fiber.Ctx) error {
	adminID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := pathID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body decisionBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if err := h.Engine.DecideExit(c.UserContext(), engine.DecideExitInput{
		AdminID:       adminID,
		ExitRequestID: id,
		Decision:      body.Decision,
		Reason:        body.Reason,
	}); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Exit request decided", fiber.Map{"exit_request_id": id, "decision": body.Decision}, nil)
}
