package properties

import (
	"context"
	"testing"

	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePublishGet(t *testing.T) {
	svc := &Service{DB: testdb.Open(t)}
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Title: " Ikoyi Towers ", TotalUnits: 100, PricePerUnit: decimal.NewFromInt(1_000_000)})
	require.NoError(t, err)
	assert.Equal(t, "Ikoyi Towers", p.Title)
	assert.Equal(t, domain.PropertyStatusDraft, p.Status)
	assert.Equal(t, int64(100), p.AvailableUnits)

	open, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	p, err = svc.Publish(ctx, p.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyStatusListed, p.Status)

	_, err = svc.Publish(ctx, p.PropertyID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	open, err = svc.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Publish(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_Validation(t *testing.T) {
	svc := &Service{DB: testdb.Open(t)}
	ctx := context.Background()
	cases := []CreateInput{
		{Title: "", TotalUnits: 1, PricePerUnit: decimal.NewFromInt(1)},
		{Title: "x", TotalUnits: 0, PricePerUnit: decimal.NewFromInt(1)},
		{Title: "x", TotalUnits: 1, PricePerUnit: decimal.Zero},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}
