// Package engine coordinates the gate, limit policy, unit ledger, ownership
// store and journal into the acquire, exit and distribution flows. Every flow
// runs in one database transaction; notifications go out after commit.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"propshare-backend/internal/application/capabilities"
	"propshare-backend/internal/application/limits"
	"propshare-backend/internal/application/notifications"
	"propshare-backend/internal/config"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Options bound each engine transaction.
type Options struct {
	Isolation      sql.IsolationLevel
	Timeout        time.Duration
	MaxRetries     uint64
	RetryBaseDelay time.Duration
	Now            func() time.Time
}

// OptionsFromConfig maps TX_* settings.
func OptionsFromConfig(c config.TxConfig) Options {
	return Options{
		Isolation:      c.Isolation,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		RetryBaseDelay: c.RetryBaseDelay,
	}
}

// Engine is safe for concurrent use; all shared state lives in the database.
type Engine struct {
	DB       *gorm.DB
	Gate     *capabilities.Service
	Limits   *limits.Policy
	Notifier notifications.Notifier
	Metrics  *metrics.Metrics

	opts Options
}

// New wires an engine. A nil notifier logs instead of sending.
func New(db *gorm.DB, gate *capabilities.Service, policy *limits.Policy, n notifications.Notifier, m *metrics.Metrics, opts Options) *Engine {
	if policy == nil {
		policy = limits.NewPolicy(nil)
	}
	// Exit timestamps and the limit window must read the same clock.
	if opts.Now == nil {
		opts.Now = time.Now
	} else {
		policy.Now = opts.Now
	}
	if n == nil {
		n = notifications.LogNotifier{}
	}
	return &Engine{DB: db, Gate: gate, Limits: policy, Notifier: n, Metrics: m, opts: opts}
}

func (e *Engine) now() time.Time {
	return e.opts.Now().UTC()
}

// Authorize reports whether userID may use capability.
func (e *Engine) Authorize(ctx context.Context, userID uuid.UUID, capability string) (bool, error) {
	d, err := e.Gate.Authorize(ctx, userID, capability)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// CheckWithdrawalLimit reports whether amount fits the user's remaining daily
// allowance. The tier comes from the user row.
func (e *Engine) CheckWithdrawalLimit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	var u domain.User
	if err := e.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, decimal.Zero, domain.ErrNotFound
		}
		return false, decimal.Zero, err
	}
	d, err := e.Limits.CheckExitAllowed(e.DB.WithContext(ctx), userID, u.Tier, amount)
	if err != nil {
		return false, decimal.Zero, err
	}
	return d.Allowed, d.Remaining, nil
}

// notify sends ev after commit. Failures are logged and dropped.
func (e *Engine) notify(ctx context.Context, ev notifications.Event) {
	var u domain.User
	if err := e.DB.WithContext(ctx).Where("user_id = ?", ev.UserID).First(&u).Error; err == nil {
		ev.Email = u.Email
		ev.Name = u.FullName
	}
	if err := e.Notifier.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).Str("kind", ev.Kind).Str("user_id", ev.UserID.String()).Msg("notification failed")
	}
}

// rejected counts an operation refused before commit.
func (e *Engine) rejected(err error) {
	if e.Metrics == nil || err == nil {
		return
	}
	e.Metrics.Rejections.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientUnits):
		return "insufficient_units"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPaymentMismatch):
		return "payment_mismatch"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	}
	return "internal"
}
