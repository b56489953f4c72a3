package ownership

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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUpsert_CreatesThenAccumulates(t *testing.T) {
	db := testdb.Open(t)
	userID, propertyID := uuid.New(), uuid.New()

	o, err := Upsert(db, userID, propertyID, 10, dec("10000000"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), o.Units)

	o2, err := Upsert(db, userID, propertyID, 5, dec("6500000"))
	require.NoError(t, err)
	assert.Equal(t, o.OwnershipID, o2.OwnershipID)
	assert.Equal(t, int64(15), o2.Units)
	assert.True(t, o2.AcquisitionPrice.Equal(dec("16500000")))
	assert.True(t, o2.AverageUnitCost().Equal(dec("1100000")), o2.AverageUnitCost().String())

	var count int64
	require.NoError(t, db.Model(&domain.Ownership{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsert_RejectsBadInput(t *testing.T) {
	db := testdb.Open(t)
	_, err := Upsert(db, uuid.New(), uuid.New(), 0, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = Upsert(db, uuid.New(), uuid.New(), 1, dec("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpsert_DuplicateCreateSurfacesDuplicatedKey(t *testing.T) {
	db := testdb.Open(t)
	userID, propertyID := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&domain.Ownership{
		UserID: userID, PropertyID: propertyID, Units: 1, AcquisitionPrice: dec("1"),
	}).Error)

	err := db.Create(&domain.Ownership{
		UserID: userID, PropertyID: propertyID, Units: 1, AcquisitionPrice: dec("1"),
	}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestDecrement_ProportionalCost(t *testing.T) {
	db := testdb.Open(t)
	o, err := Upsert(db, uuid.New(), uuid.New(), 3, dec("1000"))
	require.NoError(t, err)

	o, err = Decrement(db, o.OwnershipID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.Units)
	assert.True(t, o.AcquisitionPrice.Equal(dec("666.67")), o.AcquisitionPrice.String())

	o, err = Decrement(db, o.OwnershipID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.Units)
	assert.True(t, o.AcquisitionPrice.IsZero(), o.AcquisitionPrice.String())
}

func TestDecrement_InsufficientUnits(t *testing.T) {
	db := testdb.Open(t)
	o, err := Upsert(db, uuid.New(), uuid.New(), 2, dec("200"))
	require.NoError(t, err)

	_, err = Decrement(db, o.OwnershipID, 3)
	require.ErrorIs(t, err, domain.ErrInsufficientUnits)

	_, err = Decrement(db, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteIfEmptyAndRevive(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	userID, propertyID := uuid.New(), uuid.New()
	o, err := Upsert(db, userID, propertyID, 2, dec("200"))
	require.NoError(t, err)

	require.NoError(t, DeleteIfEmpty(db, o.OwnershipID))
	_, err = Lock(db, o.OwnershipID)
	require.NoError(t, err, "non-empty positions are kept")

	_, err = Decrement(db, o.OwnershipID, 2)
	require.NoError(t, err)
	list, err := ListForUser(ctx, db, userID)
	require.NoError(t, err)
	assert.Empty(t, list)

	revived, err := Upsert(db, userID, propertyID, 1, dec("150"))
	require.NoError(t, err)
	assert.Equal(t, o.OwnershipID, revived.OwnershipID)
	assert.Equal(t, int64(1), revived.Units)

	_, err = Decrement(db, o.OwnershipID, 1)
	require.NoError(t, err)
	require.NoError(t, DeleteIfEmpty(db, o.OwnershipID))
	_, err = Lock(db, o.OwnershipID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
