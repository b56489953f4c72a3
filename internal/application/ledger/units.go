// Package ledger is the authoritative counter of unsold property units. Every
// change to Property.AvailableUnits goes through Reserve or Release on a caller
// supplied transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockProperty loads the property row with SELECT ... FOR UPDATE. The lock is
// held until tx ends.
func LockProperty(tx *gorm.DB, propertyID uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("property_id = ?", propertyID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property %s: %w", propertyID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// Reserve takes units out of the property's available supply.
func Reserve(tx *gorm.DB, propertyID uuid.UUID, units int64) (*domain.Property, error) {
	if units <= 0 {
		return nil, domain.InvalidInput("units must be positive")
	}
	p, err := LockProperty(tx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PropertyStatusDraft {
		return nil, fmt.Errorf("property %s is %s: %w", propertyID, p.Status, domain.ErrInvalidState)
	}
	if p.AvailableUnits < units {
		return nil, fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientUnits, units, p.AvailableUnits)
	}

	status := p.Status
	if p.AvailableUnits-units == 0 {
		status = domain.PropertyStatusFullySubscribed
	}
	res := tx.Model(&domain.Property{}).
		Where("property_id = ? AND available_units >= ?", propertyID, units).
		Updates(map[string]interface{}{
			"available_units": gorm.Expr("available_units - ?", units),
			"status":          status,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: supply changed during reservation", domain.ErrInsufficientUnits)
	}
	p.AvailableUnits -= units
	p.Status = status
	return p, nil
}

// Release returns units to the property's available supply. It only fails on
// bad input or if the release would push supply past TotalUnits, which means
// the ledger is already inconsistent.
func Release(tx *gorm.DB, propertyID uuid.UUID, units int64) (*domain.Property, error) {
	if units <= 0 {
		return nil, domain.InvalidInput("units must be positive")
	}
	p, err := LockProperty(tx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.AvailableUnits+units > p.TotalUnits {
		return nil, fmt.Errorf("release of %d units exceeds total supply %d: %w", units, p.TotalUnits, domain.ErrInvalidState)
	}

	status := p.Status
	if status == domain.PropertyStatusFullySubscribed {
		status = domain.PropertyStatusListed
	}
	res := tx.Model(&domain.Property{}).
		Where("property_id = ? AND available_units + ? <= total_units", propertyID, units).
		Updates(map[string]interface{}{
			"available_units": gorm.Expr("available_units + ?", units),
			"status":          status,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("release of %d units on %s: %w", units, propertyID, domain.ErrConflict)
	}
	p.AvailableUnits += units
	p.Status = status
	return p, nil
}

// CheckInvariant verifies available + owned == total for one property.
func CheckInvariant(ctx context.Context, db *gorm.DB, propertyID uuid.UUID) error {
	db = db.WithContext(ctx)
	var p domain.Property
	if err := db.Where("property_id = ?", propertyID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("property %s: %w", propertyID, domain.ErrNotFound)
		}
		return err
	}
	var owned int64
	if err := db.Model(&domain.Ownership{}).
		Where("property_id = ?", propertyID).
		Select("COALESCE(SUM(units), 0)").
		Scan(&owned).Error; err != nil {
		return err
	}
	if p.AvailableUnits+owned != p.TotalUnits {
		return fmt.Errorf("supply invariant violated for %s: available %d + owned %d != total %d",
			propertyID, p.AvailableUnits, owned, p.TotalUnits)
	}
	return nil
}
