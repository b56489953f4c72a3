package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TxTypeAcquire      = "ACQUIRE"
	TxTypeExit         = "EXIT"
	TxTypeDistribution = "DISTRIBUTION"
	TxTypeReversal     = "REVERSAL"

	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
)

// ErrImmutableAmount is returned when an update tries to rewrite a journal amount.
var ErrImmutableAmount = errors.New("journal amounts are append-only")

// Transaction is one journal entry. ExternalReference is the idempotency key.
type Transaction struct {
	TxID              uuid.UUID       `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	UserID            uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PropertyID        *uuid.UUID      `gorm:"column:property_id;type:uuid;index" json:"property_id"`
	Type              string          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Units             int64           `gorm:"column:units;not null;default:0" json:"units"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Status            string          `gorm:"column:status;type:varchar(20);not null" json:"status"`
	ExternalReference *string         `gorm:"column:external_reference;uniqueIndex" json:"external_reference"`
	RelatedTxID       *uuid.UUID      `gorm:"column:related_tx_id;type:uuid" json:"related_tx_id"`
	Metadata          datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt         time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "Transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects any statement that touches the amount column.
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("Amount") {
		return ErrImmutableAmount
	}
	return nil
}
