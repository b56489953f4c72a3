package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PropertyStatusDraft           = "DRAFT"
	PropertyStatusListed          = "LISTED"
	PropertyStatusFullySubscribed = "FULLY_SUBSCRIBED"
)

// Property is a fixed-supply asset split into units. AvailableUnits is only
// mutated by the unit ledger.
type Property struct {
	PropertyID     uuid.UUID       `gorm:"column:property_id;type:uuid;primaryKey" json:"property_id"`
	Title          string          `gorm:"column:title;not null" json:"title"`
	TotalUnits     int64           `gorm:"column:total_units;not null" json:"total_units"`
	AvailableUnits int64           `gorm:"column:available_units;not null" json:"available_units"`
	PricePerUnit   decimal.Decimal `gorm:"column:price_per_unit;type:numeric(20,2);not null" json:"price_per_unit"`
	Status         string          `gorm:"column:status;type:varchar(20);not null;default:'DRAFT'" json:"status"`
	CreatedAt      time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Property) TableName() string {
	return "Properties"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.PropertyID == uuid.Nil {
		p.PropertyID = uuid.New()
	}
	return nil
}

// SoldUnits is the number of units currently held by owners.
func (p *Property) SoldUnits() int64 {
	return p.TotalUnits - p.AvailableUnits
}

// CostOf prices units at the current unit price.
func (p *Property) CostOf(units int64) decimal.Decimal {
	return p.PricePerUnit.Mul(decimal.NewFromInt(units))
}
