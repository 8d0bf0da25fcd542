package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	monitorLimiterMax        = 30
	monitorLimiterExpiration = time.Minute
)

// MonitorLimiter throttles operator queries per client IP. A nil storage
// keeps the counters in memory.
func MonitorLimiter(storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        monitorLimiterMax,
		Expiration: monitorLimiterExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "monitor:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "Too many requests"})
		},
		Storage: storage,
	})
}
