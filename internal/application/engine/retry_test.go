package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"propshare-backend/internal/domain"
	"propshare-backend/internal/infrastructure/metrics"
	"propshare-backend/internal/pkg/testdb"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRetryable(t *testing.T) {
	ctx := context.Background()
	assert.True(t, retryable(ctx, &pgconn.PgError{Code: "40001"}))
	assert.True(t, retryable(ctx, fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, retryable(ctx, &pgconn.PgError{Code: "23503"}))
	assert.True(t, retryable(ctx, fmt.Errorf("create ownership: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, retryable(ctx, context.DeadlineExceeded))
	assert.False(t, retryable(ctx, domain.ErrInsufficientUnits))

	done, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, retryable(done, context.DeadlineExceeded))
}

func retryEngine(t *testing.T, retries uint64) (*Engine, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	e := New(testdb.Open(t), nil, nil, nil, m, Options{MaxRetries: retries, RetryBaseDelay: time.Millisecond})
	return e, m
}

func TestInTx_RetriesThenSucceeds(t *testing.T) {
	e, m := retryEngine(t, 3)
	calls := 0
	err := e.inTx(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TxRetries))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.TxConflicts))
}

func TestInTx_ExhaustedRetriesSurfaceConflict(t *testing.T) {
	e, m := retryEngine(t, 2)
	calls := 0
	err := e.inTx(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TxConflicts))
}

func TestInTx_PermanentErrorsAreNotRetried(t *testing.T) {
	e, _ := retryEngine(t, 3)
	calls := 0
	boom := errors.New("boom")
	err := e.inTx(context.Background(), "test", func(tx *gorm.DB) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	e, _ := retryEngine(t, 0)
	err := e.inTx(context.Background(), "test", func(tx *gorm.DB) error {
		if err := tx.Create(&domain.Property{Title: "x", TotalUnits: 1, AvailableUnits: 1, Status: domain.PropertyStatusDraft}).Error; err != nil {
			return err
		}
		return domain.ErrInvalidState
	})
	require.ErrorIs(t, err, domain.ErrInvalidState)
	var count int64
	require.NoError(t, e.DB.Model(&domain.Property{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
