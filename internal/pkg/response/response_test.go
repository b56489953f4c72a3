package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"propshare-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("reserve: %w", domain.ErrInsufficientUnits), 409},
		{domain.ErrInvalidState, 409},
		{&domain.LimitExceededError{Reason: "daily_ceiling", Remaining: decimal.NewFromInt(4_000_000)}, 422},
		{&domain.UnauthorizedError{Capability: "invest_funds", Reason: "not_granted"}, 403},
		{domain.ErrConflict, 503},
		{domain.ErrNotFound, 404},
		{domain.InvalidInput("units must be positive"), 400},
		{domain.ErrPaymentMismatch, 400},
		{errors.New("disk on fire"), 500},
	}
	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tc.err) })
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.code, resp.StatusCode, tc.err.Error())
	}
}

func TestFromError_LimitDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, &domain.LimitExceededError{Reason: "daily_ceiling", Remaining: decimal.NewFromInt(4_000_000)})
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	details := body.Error.Details.(map[string]interface{})
	assert.Equal(t, "4000000.00", details["remaining"])
	assert.Equal(t, "daily_ceiling", details["reason"])
}
