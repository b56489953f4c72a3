package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ExitStatusPending   = "PENDING"
	ExitStatusApproved  = "APPROVED"
	ExitStatusRejected  = "REJECTED"
	ExitStatusCancelled = "CANCELLED"
)

// CountedExitStatuses are the statuses that consume a user's daily withdrawal
// allowance. APPROVED covers both payout in progress and paid out.
var CountedExitStatuses = []string{ExitStatusPending, ExitStatusApproved}

// BankDetails is where an approved payout is sent.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// ExitRequest is a sale-back of units. The units leave the ownership and return
// to the property's supply when the request is created. CostBasis is the share
// of the ownership's acquisition price that left with them, restored on reject
// or cancel.
type ExitRequest struct {
	ExitRequestID   uuid.UUID       `gorm:"column:exit_request_id;type:uuid;primaryKey" json:"exit_request_id"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_exit_user_requested" json:"user_id"`
	OwnershipID     uuid.UUID       `gorm:"column:ownership_id;type:uuid;not null;index" json:"ownership_id"`
	PropertyID      uuid.UUID       `gorm:"column:property_id;type:uuid;not null" json:"property_id"`
	Units           int64           `gorm:"column:units;not null" json:"units"`
	RequestedAmount decimal.Decimal `gorm:"column:requested_amount;type:numeric(20,2);not null" json:"requested_amount"`
	CostBasis       decimal.Decimal `gorm:"column:cost_basis;type:numeric(20,2);not null;default:0" json:"-"`
	Status          string          `gorm:"column:status;type:varchar(20);not null;default:'PENDING'" json:"status"`
	BankDetails     datatypes.JSON  `gorm:"column:bank_details;type:jsonb" json:"bank_details"`
	ReviewedBy      *uuid.UUID      `gorm:"column:reviewed_by;type:uuid" json:"reviewed_by"`
	ReviewedAt      *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at"`
	RejectionReason *string         `gorm:"column:rejection_reason" json:"rejection_reason"`
	RequestedAt     time.Time       `gorm:"column:requested_at;not null;index:idx_exit_user_requested" json:"requested_at"`
	CreatedAt       time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ExitRequest) TableName() string {
	return "ExitRequests"
}

func (e *ExitRequest) BeforeCreate(tx *gorm.DB) error {
	if e.ExitRequestID == uuid.Nil {
		e.ExitRequestID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the request can no longer transition.
func (e *ExitRequest) IsTerminal() bool {
	return e.Status != ExitStatusPending
}
