package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// RateLimit allows max calls per window for each caller of the named operation.
// Authenticated callers are keyed by user id, anonymous ones by IP.
func RateLimit(operation string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := CurrentUserID(c); id != 0 {
				return operation + ":user:" + strconv.FormatUint(uint64(id), 10)
			}
			return operation + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return utils.SendError(c, fiber.StatusTooManyRequests, operation+" rate limit exceeded")
		},
	})
}
