package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"propshare-backend/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// retryable reports whether a failed attempt may succeed if run again.
func retryable(parent context.Context, err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Per-attempt timeout, not the caller's deadline.
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

func (e *Engine) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.RetryBaseDelay
	eb.MaxInterval = time.Second
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, e.opts.MaxRetries), ctx)
}

// inTx runs fn in a transaction, retrying serialization failures, deadlocks,
// duplicate-key races and attempt timeouts. When retries run out the caller
// gets ErrConflict.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := e.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if retryable(ctx, err) {
			return err
		}
		return backoff.Permanent(err)
	}, e.policy(ctx), func(err error, wait time.Duration) {
		if e.Metrics != nil {
			e.Metrics.TxRetries.Inc()
		}
		log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("retrying ledger transaction")
	})
	if err != nil && retryable(ctx, err) {
		if e.Metrics != nil {
			e.Metrics.TxConflicts.Inc()
		}
		log.Warn().Err(err).Str("op", op).Int("attempts", attempt).Msg("ledger transaction conflict")
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	}
	return err
}

func (e *Engine) attempt(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	var txOpts []*sql.TxOptions
	if e.opts.Isolation != sql.LevelDefault {
		txOpts = append(txOpts, &sql.TxOptions{Isolation: e.opts.Isolation})
	}
	return e.DB.WithContext(ctx).Transaction(fn, txOpts...)
}
