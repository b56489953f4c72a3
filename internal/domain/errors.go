package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger error taxonomy. Services wrap these with %w; callers classify with
// errors.Is / errors.As.
var (
	ErrInsufficientUnits = errors.New("insufficient units")
	ErrInvalidState      = errors.New("invalid state")
	ErrLimitExceeded     = errors.New("withdrawal limit exceeded")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrPaymentMismatch   = errors.New("verified amount does not cover units")
	ErrInvalidInput      = errors.New("invalid input")
)

// LimitExceededError carries the allowance left for the current UTC day.
type LimitExceededError struct {
	Reason    string
	Remaining decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("withdrawal limit exceeded: %s (remaining %s)", e.Reason, e.Remaining.StringFixed(2))
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// UnauthorizedError names the gate check that failed.
type UnauthorizedError struct {
	Capability string
	Reason     string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s (%s)", e.Capability, e.Reason)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// InvalidInput wraps ErrInvalidInput with a message.
func InvalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
