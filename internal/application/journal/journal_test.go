package journal

import (
	"context"
	"testing"

	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func acquireEntry(userID uuid.UUID, ref string) Entry {
	pid := uuid.New()
	return Entry{
		UserID:            userID,
		PropertyID:        &pid,
		Type:              domain.TxTypeAcquire,
		Units:             10,
		Amount:            decimal.NewFromInt(10_000_000),
		Status:            domain.TxStatusCompleted,
		ExternalReference: ref,
		Metadata:          map[string]interface{}{"source": "test"},
	}
}

func TestRecord_DuplicateReferenceReturnsStoredRow(t *testing.T) {
	db := testdb.Open(t)
	userID := uuid.New()

	first, dup, err := Record(db, acquireEntry(userID, "pay_123"))
	require.NoError(t, err)
	assert.False(t, dup)

	second, dup, err := Record(db, acquireEntry(userID, "pay_123"))
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.TxID, second.TxID)

	var count int64
	require.NoError(t, db.Model(&domain.Transaction{}).Where("external_reference = ?", "pay_123").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecord_UniqueIndexBacksIdempotency(t *testing.T) {
	db := testdb.Open(t)
	ref := "pay_dup"
	require.NoError(t, db.Create(&domain.Transaction{
		UserID: uuid.New(), Type: domain.TxTypeAcquire, Amount: decimal.NewFromInt(1),
		Status: domain.TxStatusCompleted, ExternalReference: &ref,
	}).Error)

	err := db.Create(&domain.Transaction{
		UserID: uuid.New(), Type: domain.TxTypeAcquire, Amount: decimal.NewFromInt(1),
		Status: domain.TxStatusCompleted, ExternalReference: &ref,
	}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestRecord_ValidatesTypeAndStatus(t *testing.T) {
	db := testdb.Open(t)
	e := acquireEntry(uuid.New(), "")
	e.Type = "GIFT"
	_, _, err := Record(db, e)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	e = acquireEntry(uuid.New(), "")
	e.Status = "DONE"
	_, _, err = Record(db, e)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetStatus_AmountIsImmutable(t *testing.T) {
	db := testdb.Open(t)
	e := acquireEntry(uuid.New(), "exit:1")
	e.Type = domain.TxTypeExit
	e.Status = domain.TxStatusPending
	txn, _, err := Record(db, e)
	require.NoError(t, err)

	require.NoError(t, SetStatus(db, txn.TxID, domain.TxStatusCompleted))
	got, err := FindByReference(context.Background(), db, "exit:1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, got.Status)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(10_000_000)))

	res := db.Model(got).Update("amount", decimal.NewFromInt(1))
	assert.ErrorIs(t, res.Error, domain.ErrImmutableAmount)

	assert.ErrorIs(t, SetStatus(db, uuid.New(), domain.TxStatusFailed), domain.ErrNotFound)
	assert.ErrorIs(t, SetStatus(db, txn.TxID, "LOST"), domain.ErrInvalidInput)
}

func TestReverse_OffsetsOriginal(t *testing.T) {
	db := testdb.Open(t)
	original, _, err := Record(db, acquireEntry(uuid.New(), "pay_rev"))
	require.NoError(t, err)

	rev, err := Reverse(db, original, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeReversal, rev.Type)
	assert.Equal(t, int64(-10), rev.Units)
	assert.True(t, rev.Amount.Add(original.Amount).IsZero())
	require.NotNil(t, rev.RelatedTxID)
	assert.Equal(t, original.TxID, *rev.RelatedTxID)

	again, err := Reverse(db, original, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, rev.TxID, again.TxID)

	_, err = Reverse(db, rev, "oops")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestListForUserAndFindByReference(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	userID := uuid.New()
	for _, ref := range []string{"a", "b", "c"} {
		_, _, err := Record(db, acquireEntry(userID, ref))
		require.NoError(t, err)
	}
	_, _, err := Record(db, acquireEntry(uuid.New(), "d"))
	require.NoError(t, err)

	list, err := ListForUser(ctx, db, userID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = ListForUser(ctx, db, userID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = FindByReference(ctx, db, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
