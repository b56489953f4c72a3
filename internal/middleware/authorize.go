package middleware

import (
	"propshare-backend/internal/application/capabilities"
	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RequireRole allows only the listed session roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := GetUser(c)
		if u == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !constants.IsValidRole(u.Role) {
			return response.Error(c, "Authorization error", fiber.StatusInternalServerError, nil)
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
	}
}

// RequireCapability runs the capability gate for the session user. The gate
// reads role, KYC status and grants from the database, not from the session.
func RequireCapability(gate *capabilities.Service, capability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := CurrentUserID(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		d, err := gate.Authorize(c.UserContext(), userID, capability)
		if err != nil {
			return response.FromError(c, err)
		}
		if !d.Allowed {
			return response.FromError(c, &domain.UnauthorizedError{Capability: capability, Reason: d.Reason})
		}
		return c.Next()
	}
}
