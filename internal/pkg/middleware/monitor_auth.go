package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"
)

// MonitorAuth guards operator routes with HTTP basic auth against a bcrypt
// password hash. Without configured credentials every request is refused.
func MonitorAuth(user, passwordHash string) fiber.Handler {
	user = strings.TrimSpace(user)
	passwordHash = strings.TrimSpace(passwordHash)
	if user == "" || passwordHash == "" {
		log.Warn("[Monitor] MONITOR_USER or MONITOR_PASSWORD_HASH not set, monitor routes are disabled")
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": "Monitor is not configured"})
		}
	}

	return basicauth.New(basicauth.Config{
		Realm: "PayHook Monitor",
		Authorizer: func(u, p string) bool {
			if u != user {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="PayHook Monitor"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
		},
	})
}
