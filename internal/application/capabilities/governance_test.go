package capabilities

import (
	"context"
	"testing"

	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAs_Rules(t *testing.T) {
	svc, db, _ := setupGate(t)
	ctx := context.Background()
	admin := createUser(t, db, constants.Admin, domain.KYCStatusVerified)
	investor := createUser(t, db, constants.User, domain.KYCStatusVerified)
	asAdmin := Actor{UserID: admin.UserID, Role: constants.Admin}

	require.NoError(t, svc.GrantAs(ctx, asAdmin, investor.UserID, constants.InvestFunds))
	names, err := svc.Granted(ctx, investor.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.InvestFunds}, names)

	err = svc.GrantAs(ctx, asAdmin, investor.UserID, constants.ReviewExits)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.GrantAs(ctx, asAdmin, admin.UserID, constants.WithdrawFunds)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.GrantAs(ctx, Actor{UserID: investor.UserID, Role: constants.User}, investor.UserID, constants.WithdrawFunds)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.GrantAs(ctx, asAdmin, uuid.New(), constants.InvestFunds)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.GrantAs(ctx, asAdmin, investor.UserID, "teleport_funds")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevokeAs_KeepsLastReviewer(t *testing.T) {
	svc, db, _ := setupGate(t)
	ctx := context.Background()
	root := Actor{UserID: uuid.New(), Role: constants.Superadmin}
	reviewer := createUser(t, db, constants.Admin, domain.KYCStatusVerified)
	require.NoError(t, svc.GrantAs(ctx, root, reviewer.UserID, constants.ReviewExits))

	err := svc.RevokeAs(ctx, root, reviewer.UserID, constants.ReviewExits)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	createUser(t, db, constants.Superadmin, domain.KYCStatusVerified)
	require.NoError(t, svc.RevokeAs(ctx, root, reviewer.UserID, constants.ReviewExits))

	d, err := svc.Authorize(ctx, reviewer.UserID, constants.ReviewExits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
