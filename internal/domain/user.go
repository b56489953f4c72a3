package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	KYCStatusPending  = "PENDING"
	KYCStatusVerified = "VERIFIED"
	KYCStatusRejected = "REJECTED"
)

// User is owned by the account service; the ledger only reads role, tier and
// KYC status.
type User struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Email     string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	FullName  string    `gorm:"column:full_name" json:"full_name"`
	Role      string    `gorm:"column:role;not null;default:'user'" json:"role"`
	Tier      string    `gorm:"column:tier;not null;default:'basic'" json:"tier"`
	KYCStatus string    `gorm:"column:kyc_status;not null;default:'PENDING'" json:"kyc_status"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (User) TableName() string {
	return "Users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

func (u *User) KYCVerified() bool {
	return u.KYCStatus == KYCStatusVerified
}
