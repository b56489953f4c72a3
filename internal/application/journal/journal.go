// Package journal is the append-only record of every unit and money movement.
// Amounts are never rewritten; corrections are new REVERSAL entries.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is the input to Record.
type Entry struct {
	UserID            uuid.UUID
	PropertyID        *uuid.UUID
	Type              string
	Units             int64
	Amount            decimal.Decimal
	Status            string
	ExternalReference string
	RelatedTxID       *uuid.UUID
	Metadata          map[string]interface{}
}

var validStatuses = map[string]bool{
	domain.TxStatusPending:   true,
	domain.TxStatusCompleted: true,
	domain.TxStatusFailed:    true,
}

var validTypes = map[string]bool{
	domain.TxTypeAcquire:      true,
	domain.TxTypeExit:         true,
	domain.TxTypeDistribution: true,
	domain.TxTypeReversal:     true,
}

// Record appends an entry. If ExternalReference is already journaled the stored
// row is returned with duplicate=true and nothing is written.
func Record(tx *gorm.DB, e Entry) (*domain.Transaction, bool, error) {
	if !validTypes[e.Type] {
		return nil, false, domain.InvalidInput("unknown transaction type " + e.Type)
	}
	if !validStatuses[e.Status] {
		return nil, false, domain.InvalidInput("unknown transaction status " + e.Status)
	}

	var ref *string
	if e.ExternalReference != "" {
		existing, err := lookup(tx, e.ExternalReference)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
		r := e.ExternalReference
		ref = &r
	}

	var meta datatypes.JSON
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, false, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = datatypes.JSON(b)
	}

	t := &domain.Transaction{
		UserID:            e.UserID,
		PropertyID:        e.PropertyID,
		Type:              e.Type,
		Units:             e.Units,
		Amount:            e.Amount,
		Status:            e.Status,
		ExternalReference: ref,
		RelatedTxID:       e.RelatedTxID,
		Metadata:          meta,
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, false, fmt.Errorf("record %s: %w", e.Type, err)
	}
	return t, false, nil
}

func lookup(tx *gorm.DB, ref string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := tx.Where("external_reference = ?", ref).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByReference returns the entry recorded under an external reference.
func FindByReference(ctx context.Context, db *gorm.DB, ref string) (*domain.Transaction, error) {
	t, err := lookup(db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("transaction %q: %w", ref, domain.ErrNotFound)
	}
	return t, nil
}

// SetStatus moves an entry to a new status. Nothing else on the row changes.
func SetStatus(tx *gorm.DB, txID uuid.UUID, status string) error {
	if !validStatuses[status] {
		return domain.InvalidInput("unknown transaction status " + status)
	}
	res := tx.Model(&domain.Transaction{}).Where("tx_id = ?", txID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}
	return nil
}

// Reverse appends an entry that offsets original. Reversing the same entry
// twice returns the first reversal.
func Reverse(tx *gorm.DB, original *domain.Transaction, reason string) (*domain.Transaction, error) {
	if original.Type == domain.TxTypeReversal {
		return nil, fmt.Errorf("cannot reverse a reversal %s: %w", original.TxID, domain.ErrInvalidState)
	}
	related := original.TxID
	rev, _, err := Record(tx, Entry{
		UserID:            original.UserID,
		PropertyID:        original.PropertyID,
		Type:              domain.TxTypeReversal,
		Units:             -original.Units,
		Amount:            original.Amount.Neg(),
		Status:            domain.TxStatusCompleted,
		ExternalReference: "reversal:" + original.TxID.String(),
		RelatedTxID:       &related,
		Metadata:          map[string]interface{}{"reason": reason, "reversed_type": original.Type},
	})
	return rev, err
}

// ListForUser pages through a user's journal, newest first.
func ListForUser(ctx context.Context, db *gorm.DB, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(`"createdAt" DESC`).
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}
