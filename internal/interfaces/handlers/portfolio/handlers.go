package portfolio

import (
	"time"

	"propshare-backend/internal/application/engine"
	"propshare-backend/internal/application/journal"
	"propshare-backend/internal/application/ownership"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/middleware"
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handlers struct {
	DB     *gorm.DB
	Engine *engine.Engine
}

type ownershipView struct {
	OwnershipID      uuid.UUID       `json:"ownership_id"`
	PropertyID       uuid.UUID       `json:"property_id"`
	Units            int64           `json:"units"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"`
	AverageUnitCost  decimal.Decimal `json:"average_unit_cost"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
}

// GET /api/v1/ownerships
func (h *Handlers) Ownerships(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	rows, err := ownership.ListForUser(c.UserContext(), h.DB, userID)
	if err != nil {
		return response.FromError(c, err)
	}
	out := make([]ownershipView, 0, len(rows))
	for i := range rows {
		o := &rows[i]
		out = append(out, ownershipView{
			OwnershipID:      o.OwnershipID,
			PropertyID:       o.PropertyID,
			Units:            o.Units,
			AcquisitionPrice: o.AcquisitionPrice,
			AverageUnitCost:  o.AverageUnitCost().Round(2),
			AcquisitionDate:  o.AcquisitionDate,
		})
	}
	return response.Success(c, "Ownerships fetched successfully", out, nil)
}

// GET /api/v1/transactions?limit=&offset=
func (h *Handlers) Transactions(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)
	if limit < 0 || offset < 0 {
		return response.FromError(c, domain.InvalidInput("limit and offset must not be negative"))
	}
	rows, err := journal.ListForUser(c.UserContext(), h.DB, userID, limit, offset)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", rows, fiber.Map{"limit": limit, "offset": offset, "count": len(rows)})
}

// GET /api/v1/limits?amount=
func (h *Handlers) Limits(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return response.FromError(c, domain.InvalidInput("amount must be a decimal number"))
	}
	allowed, remaining, err := h.Engine.CheckWithdrawalLimit(c.UserContext(), userID, amount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Withdrawal limit checked", fiber.Map{
		"allowed":   allowed,
		"amount":    amount.StringFixed(2),
		"remaining": remaining.StringFixed(2),
	}, nil)
}
