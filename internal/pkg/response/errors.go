package response

import (
	"errors"

	"propshare-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// FromError maps ledger errors to the standard error envelope.
func FromError(c *fiber.Ctx, err error) error {
	var limitErr *domain.LimitExceededError
	var authErr *domain.UnauthorizedError
	switch {
	case errors.As(err, &limitErr):
		return Error(c, err.Error(), fiber.StatusUnprocessableEntity, fiber.Map{
			"reason":    limitErr.Reason,
			"remaining": limitErr.Remaining.StringFixed(2),
		})
	case errors.As(err, &authErr):
		return Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, fiber.Map{
			"capability": authErr.Capability,
			"reason":     authErr.Reason,
		})
	case errors.Is(err, domain.ErrUnauthorized):
		return Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
	case errors.Is(err, domain.ErrInsufficientUnits), errors.Is(err, domain.ErrInvalidState):
		return Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, domain.ErrNotFound):
		return Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, domain.ErrConflict):
		c.Set(fiber.HeaderRetryAfter, "1")
		return Error(c, "Request conflicted with a concurrent update, please retry", fiber.StatusServiceUnavailable, nil)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPaymentMismatch):
		return Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}
