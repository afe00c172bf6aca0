// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const userIDLocal = "user_id"

// UserContextMiddleware extracts the caller identity set by the gateway.
// Every route under /s/ requires it.
func UserContextMiddleware(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))

		if strings.HasPrefix(c.Path(), "/s/") && userID == "" {
			log.Warn().Str("path", c.Path()).Msg("user context: X-User-ID missing on secured route")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through the gateway with auth context",
			})
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the identity attached by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}
