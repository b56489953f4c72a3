package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RouteLogger logs each request entry and exit with status and duration. The
// trace ID comes from the logger Tracing installed.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		l := Logger(c)
		start := time.Now()
		l.Debug().Str("method", c.Method()).Str("path", c.Path()).Msg("Entering request")
		err := c.Next()
		ev := l.Info()
		if err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
			ev = l.Error().Err(err)
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int64("ms", time.Since(start).Milliseconds()).
			Msg("Exiting request")
		return err
	}
}
