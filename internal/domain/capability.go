package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Capability is a named, grantable permission.
type Capability struct {
	CapabilityID    uuid.UUID `gorm:"column:capability_id;type:uuid;primaryKey" json:"capability_id"`
	Name            string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description     string    `gorm:"column:description" json:"description"`
	DefaultOnSignup bool      `gorm:"column:default_on_signup;not null;default:false" json:"default_on_signup"`
	RequiresKYC     bool      `gorm:"column:requires_kyc;not null;default:false" json:"requires_kyc"`
	CreatedAt       time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Capability) TableName() string {
	return "Capabilities"
}

func (c *Capability) BeforeCreate(tx *gorm.DB) error {
	if c.CapabilityID == uuid.Nil {
		c.CapabilityID = uuid.New()
	}
	return nil
}

// UserCapability grants one capability to one user.
type UserCapability struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_capability" json:"user_id"`
	CapabilityID uuid.UUID  `gorm:"column:capability_id;type:uuid;not null;uniqueIndex:idx_user_capability" json:"capability_id"`
	GrantedBy    *uuid.UUID `gorm:"column:granted_by;type:uuid" json:"granted_by"`
	CreatedAt    time.Time  `gorm:"column:createdAt" json:"createdAt"`
}

func (UserCapability) TableName() string {
	return "UserCapabilities"
}

func (u *UserCapability) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
