package middleware

import (
	"strings"

	"propshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig decides which browser origins may call the API.
type CORSConfig struct {
	AllowedSuffix  string
	DevPassword    string
	AllowLocalhost bool
}

func (cfg CORSConfig) allows(c *fiber.Ctx, origin string) bool {
	o := strings.ToLower(origin)
	switch {
	case cfg.AllowLocalhost && (strings.HasPrefix(o, "http://localhost:") || strings.HasPrefix(o, "http://127.0.0.1:")):
		return true
	case cfg.AllowedSuffix != "" && strings.HasSuffix(o, strings.ToLower(cfg.AllowedSuffix)):
		return true
	case cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword:
		return true
	}
	return false
}

// CORS allows the frontend origin, localhost outside production, and callers
// presenting the dev password. Requests without an Origin (the payment
// provider, curl) pass through untouched. Preflights from allowed origins are
// answered here.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		if !cfg.allows(c, origin) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlExposeHeaders, traceIDHeader+", "+fiber.HeaderRetryAfter)
		c.Vary(fiber.HeaderOrigin)
		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, DELETE, OPTIONS")
			c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, dev-password, "+traceIDHeader)
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
