package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"kelasin/chat/internal/metrics"
)

// Limit allows Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Limits groups the per-route request limits.
type Limits struct {
	Auth   Limit // login and refresh
	Read   Limit // history paging
	Upload Limit
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		Auth:   Limit{Max: 5, Window: 15 * time.Minute},
		Read:   Limit{Max: 100, Window: time.Minute},
		Upload: Limit{Max: 10, Window: 5 * time.Minute},
	}
}

// RateLimiter limits requests per user, or per IP before login. Rejections
// are counted under name.
func RateLimiter(name string, l Limit) fiber.Handler {
	rejected := metrics.RateLimited.WithLabelValues(name)

	return limiter.New(limiter.Config{
		Max:        l.Max,
		Expiration: l.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID := GetUserID(c); userID != "" {
				return name + ":" + userID
			}
			return name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			rejected.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests, please try again later",
			})
		},
	})
}
