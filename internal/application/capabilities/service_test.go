package capabilities

import (
	"context"
	"testing"

	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupGate(t *testing.T) (*Service, *gorm.DB, *miniredis.Miniredis) {
	db := testdb.Open(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	svc := &Service{DB: db, Rdb: rdb}
	require.NoError(t, svc.EnsureRegistry(context.Background(), constants.DefaultCapabilities))
	return svc, db, mr
}

func createUser(t *testing.T, db *gorm.DB, role, kyc string) domain.User {
	u := domain.User{Email: uuid.NewString() + "@example.com", Role: role, Tier: "basic", KYCStatus: kyc}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestAuthorize_DefaultGrantsAllowVerifiedUser(t *testing.T) {
	svc, db, _ := setupGate(t)
	ctx := context.Background()
	u := createUser(t, db, constants.User, domain.KYCStatusVerified)
	require.NoError(t, svc.GrantDefaults(ctx, u.UserID))

	d, err := svc.Authorize(ctx, u.UserID, constants.InvestFunds)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonGranted, d.Reason)

	d, err = svc.Authorize(ctx, u.UserID, constants.ReviewExits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotGranted, d.Reason)
}

func TestAuthorize_KYCRequired(t *testing.T) {
	svc, db, _ := setupGate(t)
	ctx := context.Background()
	u := createUser(t, db, constants.User, domain.KYCStatusPending)
	require.NoError(t, svc.GrantDefaults(ctx, u.UserID))

	d, err := svc.Authorize(ctx, u.UserID, constants.WithdrawFunds)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonKYCNotVerified, d.Reason)
}

func TestAuthorize_SuperadminOverride(t *testing.T) {
	svc, db, _ := setupGate(t)
	u := createUser(t, db, constants.Superadmin, domain.KYCStatusPending)

	d, err := svc.Authorize(context.Background(), u.UserID, constants.ReviewExits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonOverride, d.Reason)
}

func TestAuthorize_FailsClosed(t *testing.T) {
	svc, db, _ := setupGate(t)
	ctx := context.Background()

	d, err := svc.Authorize(ctx, uuid.New(), constants.InvestFunds)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUserNotFound, d.Reason)

	u := createUser(t, db, constants.Admin, domain.KYCStatusVerified)
	d, err = svc.Authorize(ctx, u.UserID, "teleport_funds")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownCapability, d.Reason)
}

func TestRequire_ReturnsUnauthorizedError(t *testing.T) {
	svc, db, _ := setupGate(t)
	u := createUser(t, db, constants.User, domain.KYCStatusVerified)

	err := svc.Require(context.Background(), u.UserID, constants.InvestFunds)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	var ue *domain.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonNotGranted, ue.Reason)
}

func TestRevoke_InvalidatesCache(t *testing.T) {
	svc, db, mr := setupGate(t)
	ctx := context.Background()
	admin := createUser(t, db, constants.Admin, domain.KYCStatusVerified)
	require.NoError(t, svc.Grant(ctx, admin.UserID, constants.ReviewExits, nil))
	require.NoError(t, svc.Grant(ctx, admin.UserID, constants.ReviewExits, nil))

	d, err := svc.Authorize(ctx, admin.UserID, constants.ReviewExits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, mr.Exists(cacheKeyPrefix+admin.UserID.String()))

	require.NoError(t, svc.Revoke(ctx, admin.UserID, constants.ReviewExits))
	assert.False(t, mr.Exists(cacheKeyPrefix+admin.UserID.String()))

	d, err = svc.Authorize(ctx, admin.UserID, constants.ReviewExits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGranted_WithoutRedis(t *testing.T) {
	db := testdb.Open(t)
	svc := &Service{DB: db}
	ctx := context.Background()
	require.NoError(t, svc.EnsureRegistry(ctx, constants.DefaultCapabilities))
	require.NoError(t, svc.EnsureRegistry(ctx, constants.DefaultCapabilities))
	u := createUser(t, db, constants.User, domain.KYCStatusVerified)

	names, err := svc.Granted(ctx, u.UserID)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, svc.GrantDefaults(ctx, u.UserID))
	names, err = svc.Granted(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.InvestFunds, constants.WithdrawFunds}, names)

	err = svc.Grant(ctx, u.UserID, "nope", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
