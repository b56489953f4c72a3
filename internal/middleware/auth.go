package middleware

import (
	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequireAuth rejects requests without a session user with 401.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUserID(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user, nil if not signed in.
func GetUser(c *fiber.Ctx) *SessionUser {
	u, _ := c.Locals(userLocal).(*SessionUser)
	return u
}

// CurrentUserID returns the signed-in user's id.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	u := GetUser(c)
	if u == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(u.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
