// Package ownership keeps each user's aggregate position per property.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lock loads an ownership by id with a row lock.
func Lock(tx *gorm.DB, ownershipID uuid.UUID) (*domain.Ownership, error) {
	var o domain.Ownership
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("ownership_id = ?", ownershipID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ownership %s: %w", ownershipID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

// Upsert adds units and cost to the (user, property) position, creating it on
// first purchase. A zero-unit row left behind by a pending exit is reused.
// Two concurrent first purchases race on idx_ownership_user_property; the loser
// gets gorm.ErrDuplicatedKey and is retried by the engine.
func Upsert(tx *gorm.DB, userID, propertyID uuid.UUID, units int64, cost decimal.Decimal) (*domain.Ownership, error) {
	if units <= 0 {
		return nil, domain.InvalidInput("units must be positive")
	}
	if cost.IsNegative() {
		return nil, domain.InvalidInput("cost must not be negative")
	}
	now := time.Now().UTC()

	var o domain.Ownership
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		o = domain.Ownership{
			UserID:           userID,
			PropertyID:       propertyID,
			Units:            units,
			AcquisitionPrice: cost,
			AcquisitionDate:  now,
		}
		if err := tx.Create(&o).Error; err != nil {
			return nil, fmt.Errorf("create ownership: %w", err)
		}
		return &o, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"units":             o.Units + units,
		"acquisition_price": o.AcquisitionPrice.Add(cost),
	}
	if o.Units == 0 {
		updates["acquisition_date"] = now
		o.AcquisitionDate = now
	}
	if err := tx.Model(&o).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update ownership: %w", err)
	}
	o.Units += units
	o.AcquisitionPrice = o.AcquisitionPrice.Add(cost)
	return &o, nil
}

// Decrement removes units and their proportional cost basis. The row stays
// even at zero units; DeleteIfEmpty removes it once nothing references it.
func Decrement(tx *gorm.DB, ownershipID uuid.UUID, units int64) (*domain.Ownership, error) {
	if units <= 0 {
		return nil, domain.InvalidInput("units must be positive")
	}
	o, err := Lock(tx, ownershipID)
	if err != nil {
		return nil, err
	}
	if o.Units < units {
		return nil, fmt.Errorf("%w: holding %d, requested %d", domain.ErrInsufficientUnits, o.Units, units)
	}

	cost := o.CostOf(units)
	res := tx.Model(&domain.Ownership{}).
		Where("ownership_id = ? AND units >= ?", ownershipID, units).
		Updates(map[string]interface{}{
			"units":             o.Units - units,
			"acquisition_price": o.AcquisitionPrice.Sub(cost),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: holding changed during exit", domain.ErrInsufficientUnits)
	}
	o.Units -= units
	o.AcquisitionPrice = o.AcquisitionPrice.Sub(cost)
	return o, nil
}

// DeleteIfEmpty drops a zero-unit position.
func DeleteIfEmpty(tx *gorm.DB, ownershipID uuid.UUID) error {
	return tx.Where("ownership_id = ? AND units = 0", ownershipID).
		Delete(&domain.Ownership{}).Error
}

// ListForUser returns the user's non-empty positions, newest first.
func ListForUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]domain.Ownership, error) {
	var out []domain.Ownership
	err := db.WithContext(ctx).
		Where("user_id = ? AND units > 0", userID).
		Order(`"acquisition_date" DESC`).
		Find(&out).Error
	return out, err
}

// Holders returns every non-empty position in a property.
func Holders(tx *gorm.DB, propertyID uuid.UUID) ([]domain.Ownership, error) {
	var out []domain.Ownership
	err := tx.Where("property_id = ? AND units > 0", propertyID).
		Order("user_id").
		Find(&out).Error
	return out, err
}
