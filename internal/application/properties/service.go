// Package properties manages the supply side: creating a property with a fixed
// number of units and listing it for sale.
package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service encapsulates property administration.
type Service struct {
	DB *gorm.DB
}

// CreateInput describes a new property.
type CreateInput struct {
	Title        string          `json:"title"`
	TotalUnits   int64           `json:"total_units"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// Create stores a DRAFT property with all units available.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Property, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.InvalidInput("title is required")
	}
	if in.TotalUnits <= 0 {
		return nil, domain.InvalidInput("total_units must be positive")
	}
	if !in.PricePerUnit.IsPositive() {
		return nil, domain.InvalidInput("price_per_unit must be positive")
	}
	p := domain.Property{
		Title:          title,
		TotalUnits:     in.TotalUnits,
		AvailableUnits: in.TotalUnits,
		PricePerUnit:   in.PricePerUnit.Round(2),
		Status:         domain.PropertyStatusDraft,
	}
	if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Publish moves a DRAFT property to LISTED.
func (s *Service) Publish(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	res := s.DB.WithContext(ctx).Model(&domain.Property{}).
		Where("property_id = ? AND status = ?", id, domain.PropertyStatusDraft).
		Update("status", domain.PropertyStatusListed)
	if res.Error != nil {
		return nil, res.Error
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("property %s is %s: %w", id, p.Status, domain.ErrInvalidState)
	}
	return p, nil
}

// Get returns one property.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	if err := s.DB.WithContext(ctx).Where("property_id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// ListOpen returns properties that still have units for sale.
func (s *Service) ListOpen(ctx context.Context) ([]domain.Property, error) {
	var out []domain.Property
	err := s.DB.WithContext(ctx).
		Where("status = ?", domain.PropertyStatusListed).
		Order(`"createdAt" DESC`).
		Find(&out).Error
	return out, err
}
