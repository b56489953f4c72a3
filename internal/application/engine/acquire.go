package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"propshare-backend/internal/application/journal"
	"propshare-backend/internal/application/ledger"
	"propshare-backend/internal/application/notifications"
	"propshare-backend/internal/application/ownership"
	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AcquireRequest is a verified payment for units of a property.
type AcquireRequest struct {
	UserID           uuid.UUID
	PropertyID       uuid.UUID
	Units            int64
	PaymentReference string
	VerifiedAmount   decimal.Decimal
}

// OwnershipSnapshot is the caller's position after an acquisition. Duplicate is
// set when the payment reference was already applied and nothing changed.
type OwnershipSnapshot struct {
	OwnershipID      uuid.UUID       `json:"ownership_id"`
	UserID           uuid.UUID       `json:"user_id"`
	PropertyID       uuid.UUID       `json:"property_id"`
	Units            int64           `json:"units"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"`
	AverageUnitCost  decimal.Decimal `json:"average_unit_cost"`
	TxID             uuid.UUID       `json:"tx_id"`
	Duplicate        bool            `json:"duplicate"`
}

var errDuplicateEvent = errors.New("payment reference already journaled")

func snapshotOf(o *domain.Ownership, txID uuid.UUID, duplicate bool) *OwnershipSnapshot {
	return &OwnershipSnapshot{
		OwnershipID:      o.OwnershipID,
		UserID:           o.UserID,
		PropertyID:       o.PropertyID,
		Units:            o.Units,
		AcquisitionPrice: o.AcquisitionPrice,
		AverageUnitCost:  o.AverageUnitCost().Round(2),
		TxID:             txID,
		Duplicate:        duplicate,
	}
}

func validateAcquire(req AcquireRequest) error {
	switch {
	case req.UserID == uuid.Nil:
		return domain.InvalidInput("user_id is required")
	case req.PropertyID == uuid.Nil:
		return domain.InvalidInput("property_id is required")
	case req.Units <= 0:
		return domain.InvalidInput("units must be positive")
	case req.PaymentReference == "":
		return domain.InvalidInput("payment_reference is required")
	case !req.VerifiedAmount.IsPositive():
		return domain.InvalidInput("verified_amount must be positive")
	}
	return nil
}

// Acquire moves units from the property's supply to the buyer and journals the
// purchase. Replaying a payment reference returns the current position with
// Duplicate set.
func (e *Engine) Acquire(ctx context.Context, req AcquireRequest) (*OwnershipSnapshot, error) {
	if err := validateAcquire(req); err != nil {
		e.rejected(err)
		return nil, err
	}
	if err := e.Gate.Require(ctx, req.UserID, constants.InvestFunds); err != nil {
		e.rejected(err)
		return nil, err
	}

	if prior, err := journal.FindByReference(ctx, e.DB, req.PaymentReference); err == nil {
		return e.duplicateAcquire(req, prior)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var (
		snap     *OwnershipSnapshot
		property *domain.Property
		cost     decimal.Decimal
	)
	err := e.inTx(ctx, "acquire", func(tx *gorm.DB) error {
		p, err := ledger.LockProperty(tx, req.PropertyID)
		if err != nil {
			return err
		}
		cost = p.CostOf(req.Units)
		if req.VerifiedAmount.LessThan(cost) {
			return fmt.Errorf("%w: paid %s, due %s", domain.ErrPaymentMismatch,
				req.VerifiedAmount.StringFixed(2), cost.StringFixed(2))
		}
		if property, err = ledger.Reserve(tx, req.PropertyID, req.Units); err != nil {
			return err
		}
		o, err := ownership.Upsert(tx, req.UserID, req.PropertyID, req.Units, cost)
		if err != nil {
			return err
		}
		pid := req.PropertyID
		t, dup, err := journal.Record(tx, journal.Entry{
			UserID:            req.UserID,
			PropertyID:        &pid,
			Type:              domain.TxTypeAcquire,
			Units:             req.Units,
			Amount:            cost,
			Status:            domain.TxStatusCompleted,
			ExternalReference: req.PaymentReference,
			Metadata: map[string]interface{}{
				"price_per_unit":  p.PricePerUnit.StringFixed(2),
				"verified_amount": req.VerifiedAmount.StringFixed(2),
				"ownership_id":    o.OwnershipID.String(),
				"units_after":     o.Units,
				"price_after":     o.AcquisitionPrice.String(),
			},
		})
		if err != nil {
			return err
		}
		if dup {
			return errDuplicateEvent
		}
		snap = snapshotOf(o, t.TxID, false)
		return nil
	})
	if errors.Is(err, errDuplicateEvent) {
		prior, ferr := journal.FindByReference(ctx, e.DB, req.PaymentReference)
		if ferr != nil {
			return nil, ferr
		}
		return e.duplicateAcquire(req, prior)
	}
	if err != nil {
		e.rejected(err)
		return nil, err
	}

	if e.Metrics != nil {
		e.Metrics.Acquisitions.Inc()
		e.Metrics.UnitsAcquired.Add(float64(req.Units))
	}
	log.Info().
		Str("user_id", req.UserID.String()).
		Str("property_id", req.PropertyID.String()).
		Int64("units", req.Units).
		Int64("available_units", property.AvailableUnits).
		Str("reference", req.PaymentReference).
		Msg("units acquired")
	e.notify(ctx, notifications.Event{
		Kind:   notifications.KindAcquisitionConfirmed,
		UserID: req.UserID,
		Fields: map[string]string{
			"units":     strconv.FormatInt(req.Units, 10),
			"property":  property.Title,
			"amount":    cost.StringFixed(2),
			"reference": req.PaymentReference,
		},
	})
	return snap, nil
}

func (e *Engine) duplicateAcquire(req AcquireRequest, prior *domain.Transaction) (*OwnershipSnapshot, error) {
	if prior.Type != domain.TxTypeAcquire || prior.UserID != req.UserID ||
		prior.PropertyID == nil || *prior.PropertyID != req.PropertyID {
		err := domain.InvalidInput("payment_reference already used for a different purchase")
		e.rejected(err)
		return nil, err
	}
	if e.Metrics != nil {
		e.Metrics.DuplicateEvents.Inc()
	}
	log.Info().Str("reference", req.PaymentReference).Msg("duplicate payment event ignored")

	o, err := positionAt(prior)
	if err != nil {
		return nil, err
	}
	return snapshotOf(o, prior.TxID, true), nil
}

// acquireMeta is the position recorded on an ACQUIRE entry right after it was
// applied.
type acquireMeta struct {
	OwnershipID string `json:"ownership_id"`
	UnitsAfter  int64  `json:"units_after"`
	PriceAfter  string `json:"price_after"`
}

// positionAt rebuilds the ownership as it stood when prior was journaled, so a
// replayed payment sees the same snapshot as the original delivery.
func positionAt(prior *domain.Transaction) (*domain.Ownership, error) {
	var m acquireMeta
	if err := json.Unmarshal(prior.Metadata, &m); err != nil {
		return nil, fmt.Errorf("acquire %s metadata: %w", prior.TxID, err)
	}
	ownershipID, err := uuid.Parse(m.OwnershipID)
	if err != nil {
		return nil, fmt.Errorf("acquire %s ownership_id: %w", prior.TxID, err)
	}
	price, err := decimal.NewFromString(m.PriceAfter)
	if err != nil {
		return nil, fmt.Errorf("acquire %s price_after: %w", prior.TxID, err)
	}
	return &domain.Ownership{
		OwnershipID:      ownershipID,
		UserID:           prior.UserID,
		PropertyID:       *prior.PropertyID,
		Units:            m.UnitsAfter,
		AcquisitionPrice: price,
	}, nil
}
