package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ownership is a user's aggregate position in one property. AcquisitionPrice is
// the total cost basis of the units currently held.
type Ownership struct {
	OwnershipID      uuid.UUID       `gorm:"column:ownership_id;type:uuid;primaryKey" json:"ownership_id"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_ownership_user_property" json:"user_id"`
	PropertyID       uuid.UUID       `gorm:"column:property_id;type:uuid;not null;uniqueIndex:idx_ownership_user_property" json:"property_id"`
	Units            int64           `gorm:"column:units;not null" json:"units"`
	AcquisitionPrice decimal.Decimal `gorm:"column:acquisition_price;type:numeric(20,2);not null" json:"acquisition_price"`
	AcquisitionDate  time.Time       `gorm:"column:acquisition_date;not null" json:"acquisition_date"`
	CreatedAt        time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Ownership) TableName() string {
	return "Ownerships"
}

func (o *Ownership) BeforeCreate(tx *gorm.DB) error {
	if o.OwnershipID == uuid.Nil {
		o.OwnershipID = uuid.New()
	}
	return nil
}

// AverageUnitCost returns the weighted average price paid per unit, zero for an
// empty position.
func (o *Ownership) AverageUnitCost() decimal.Decimal {
	if o.Units == 0 {
		return decimal.Zero
	}
	return o.AcquisitionPrice.Div(decimal.NewFromInt(o.Units))
}

// CostOf returns the share of the cost basis attributable to units.
func (o *Ownership) CostOf(units int64) decimal.Decimal {
	if o.Units == 0 || units == 0 {
		return decimal.Zero
	}
	if units >= o.Units {
		return o.AcquisitionPrice
	}
	return o.AcquisitionPrice.Mul(decimal.NewFromInt(units)).Div(decimal.NewFromInt(o.Units)).Round(2)
}
