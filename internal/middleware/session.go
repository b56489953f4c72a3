package middleware

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName  = "propshare.sid"
	SessionRedisPrefix = "session:"
	userLocal          = "user"
)

// SessionUser is the "user" object the account service stores in the session.
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type sessionData struct {
	User *SessionUser `json:"user"`
}

// Session loads the signed-in user from Redis into Locals. Sessions are
// created and renewed by the account service; the ledger only reads them.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		sid := sessionID(c)
		if sid == "" || rdb == nil {
			return c.Next()
		}
		b, err := rdb.Get(c.UserContext(), SessionRedisPrefix+sid).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Msg("session lookup failed")
			}
			return c.Next()
		}
		var data sessionData
		if err := json.Unmarshal(b, &data); err == nil && data.User != nil && data.User.UserID != "" {
			c.Locals(userLocal, data.User)
		}
		return c.Next()
	}
}

// sessionID reads the cookie. connect-redis cookies look like "s:<id>.<signature>".
func sessionID(c *fiber.Ctx) string {
	sid := c.Cookies(SessionCookieName)
	if strings.HasPrefix(sid, "s:") {
		sid = strings.SplitN(sid[2:], ".", 2)[0]
	}
	return sid
}
