package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"propshare-backend/internal/application/journal"
	"propshare-backend/internal/application/ledger"
	"propshare-backend/internal/application/notifications"
	"propshare-backend/internal/application/ownership"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DistributeInput splits income from a property across its current owners.
type DistributeInput struct {
	PropertyID  uuid.UUID
	TotalAmount decimal.Decimal
	Reference   string
}

// Payout is one owner's share of a distribution.
type Payout struct {
	UserID uuid.UUID       `json:"user_id"`
	Units  int64           `json:"units"`
	Amount decimal.Decimal `json:"amount"`
	TxID   uuid.UUID       `json:"tx_id"`
}

// DistributionResult lists the journal entries written for a distribution.
type DistributionResult struct {
	Reference string   `json:"reference"`
	Payouts   []Payout `json:"payouts"`
	Duplicate bool     `json:"duplicate"`
}

// distributionPrefix keys a distribution by a digest of its reference so no
// reference can be a prefix of another one's per-owner keys.
func distributionPrefix(propertyID uuid.UUID, ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return "dist:" + propertyID.String() + ":" + hex.EncodeToString(sum[:]) + ":"
}

type distributionMeta struct {
	Reference string `json:"reference"`
	UnitsHeld int64  `json:"units_held"`
}

func priorPayout(t domain.Transaction) (Payout, error) {
	var m distributionMeta
	if err := json.Unmarshal(t.Metadata, &m); err != nil {
		return Payout{}, fmt.Errorf("distribution %s metadata: %w", t.TxID, err)
	}
	return Payout{UserID: t.UserID, Units: m.UnitsHeld, Amount: t.Amount, TxID: t.TxID}, nil
}

// Distribute credits each owner TotalAmount * units / sold units, rounded to
// kobo; the last owner absorbs the rounding remainder so the shares sum to
// TotalAmount exactly. Each (property, reference) pair is distributed once.
func (e *Engine) Distribute(ctx context.Context, in DistributeInput) (*DistributionResult, error) {
	switch {
	case in.PropertyID == uuid.Nil:
		return nil, domain.InvalidInput("property_id is required")
	case !in.TotalAmount.IsPositive():
		return nil, domain.InvalidInput("total_amount must be positive")
	case strings.TrimSpace(in.Reference) == "":
		return nil, domain.InvalidInput("reference is required")
	}

	res := &DistributionResult{Reference: in.Reference}
	var title string
	err := e.inTx(ctx, "distribute", func(tx *gorm.DB) error {
		res.Payouts = nil
		res.Duplicate = false

		p, err := ledger.LockProperty(tx, in.PropertyID)
		if err != nil {
			return err
		}
		title = p.Title

		var prior []domain.Transaction
		prefix := distributionPrefix(in.PropertyID, in.Reference)
		if err := tx.Where("type = ? AND property_id = ? AND external_reference LIKE ?",
			domain.TxTypeDistribution, in.PropertyID, prefix+"%").
			Order("user_id").
			Find(&prior).Error; err != nil {
			return err
		}
		if len(prior) > 0 {
			res.Duplicate = true
			for _, t := range prior {
				po, err := priorPayout(t)
				if err != nil {
					return err
				}
				res.Payouts = append(res.Payouts, po)
			}
			return nil
		}

		holders, err := ownership.Holders(tx, in.PropertyID)
		if err != nil {
			return err
		}
		var sold int64
		for _, h := range holders {
			sold += h.Units
		}
		if sold == 0 {
			return fmt.Errorf("property %s has no owners: %w", in.PropertyID, domain.ErrInvalidState)
		}

		remaining := in.TotalAmount
		for i, h := range holders {
			share := in.TotalAmount.Mul(decimal.NewFromInt(h.Units)).Div(decimal.NewFromInt(sold)).RoundDown(2)
			if i == len(holders)-1 {
				share = remaining
			}
			remaining = remaining.Sub(share)

			pid := in.PropertyID
			t, _, err := journal.Record(tx, journal.Entry{
				UserID:            h.UserID,
				PropertyID:        &pid,
				Type:              domain.TxTypeDistribution,
				Amount:            share,
				Status:            domain.TxStatusCompleted,
				ExternalReference: prefix + h.UserID.String(),
				Metadata: map[string]interface{}{
					"reference":    in.Reference,
					"units_held":   h.Units,
					"sold_units":   sold,
					"total_amount": in.TotalAmount.StringFixed(2),
				},
			})
			if err != nil {
				return err
			}
			res.Payouts = append(res.Payouts, Payout{UserID: h.UserID, Units: h.Units, Amount: share, TxID: t.TxID})
		}
		return nil
	})
	if err != nil {
		e.rejected(err)
		return nil, err
	}
	if res.Duplicate {
		if e.Metrics != nil {
			e.Metrics.DuplicateEvents.Inc()
		}
		return res, nil
	}

	log.Info().
		Str("property_id", in.PropertyID.String()).
		Str("reference", in.Reference).
		Int("owners", len(res.Payouts)).
		Str("total", in.TotalAmount.StringFixed(2)).
		Msg("distribution recorded")
	for _, p := range res.Payouts {
		e.notify(ctx, notifications.Event{
			Kind:   notifications.KindDistribution,
			UserID: p.UserID,
			Fields: map[string]string{
				"amount":   p.Amount.StringFixed(2),
				"property": title,
				"units":    strconv.FormatInt(p.Units, 10),
			},
		})
	}
	return res, nil
}
