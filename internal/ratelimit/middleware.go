package ratelimit

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// Limit returns Fiber middleware enforcing the given category's cap. userID is read from the "userID" local set
// by the auth middleware; it is blank for unauthenticated routes, so there only a category configured with BasisIP
// gives each client its own bucket.
func Limit(limiter *Limiter, category Category) fiber.Handler {
	return func(c fiber.Ctx) error {
		var userID string
		if v := c.Locals("userID"); v != nil {
			if id, ok := v.(uuid.UUID); ok {
				userID = id.String()
			}
		}

		allowed, retryAfter, err := limiter.Allow(c.Context(), category, c.IP(), userID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "failed to check rate limit")
		}
		if !allowed {
			return httputil.FailRateLimited(c, retryAfter)
		}
		return c.Next()
	}
}
