package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AdminOnly lets the request through only when isAdmin accepts the caller.
// Who counts as an admin is decided by the injected predicate.
func AdminOnly(isAdmin func(userID string) bool, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" || isAdmin == nil || !isAdmin(userID) {
			log.Warn().Str("user_id", userID).Str("path", c.Path()).Msg("admin route refused")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}
