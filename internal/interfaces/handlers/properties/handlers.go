package properties

import (
	"propshare-backend/internal/application/engine"
	propsvc "propshare-backend/internal/application/properties"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *propsvc.Service
	Engine  *engine.Engine
}

type distributeBody struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reference   string          `json:"reference"`
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.InvalidInput("id must be a uuid")
	}
	return id, nil
}

// POST /api/v1/admin/properties
func (h *Handlers) Create(c *fiber.Ctx) error {
	var in propsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Property created", p, nil)
}

// POST /api/v1/admin/properties/:id/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Publish(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Property listed", p, nil)
}

// POST /api/v1/admin/properties/:id/distributions
func (h *Handlers) Distribute(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body distributeBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	res, err := h.Engine.Distribute(c.UserContext(), engine.DistributeInput{
		PropertyID:  id,
		TotalAmount: body.TotalAmount,
		Reference:   body.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	if res.Duplicate {
		return response.Success(c, "Distribution already recorded", res, nil)
	}
	return response.SuccessCreated(c, "Distribution recorded", res, nil)
}

// GET /api/v1/properties/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Property fetched successfully", p, nil)
}

// GET /api/v1/properties
func (h *Handlers) List(c *fiber.Ctx) error {
	rows, err := h.Service.ListOpen(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Properties fetched successfully", rows, nil)
}
