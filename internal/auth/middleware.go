package auth

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/user"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// RequireAuth returns Fiber middleware that validates a JWT Bearer token from
// the Authorization header and stores the user ID in c.Locals("userID").
func RequireAuth(secret, issuer string) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing authorization header")
		}

		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Invalid authorization format")
		}
		tokenStr := header[len(prefix):]

		claims, err := ValidateAccessToken(tokenStr, secret, issuer)
		if err != nil {
			code := wire.CodeUnauthorized
			message := "Invalid token"

			if errors.Is(err, jwt.ErrTokenExpired) {
				code = wire.CodeUnauthorized
				message = "Token has expired"
			}

			return httputil.Fail(c, fiber.StatusUnauthorized, code, message)
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Invalid token subject")
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}

// RequireVerifiedEmail returns Fiber middleware that blocks requests from users whose email address has not yet been
// verified. It must run after RequireAuth has populated c.Locals("userID").
func RequireVerifiedEmail(users user.Repository) fiber.Handler {
	return func(c fiber.Ctx) error {
		userIDVal := c.Locals("userID")
		if userIDVal == nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "authentication required")
		}

		userID, ok := userIDVal.(uuid.UUID)
		if !ok {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "invalid user identity")
		}

		u, err := users.GetByID(c.Context(), userID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "invalid user identity")
		}

		if !u.EmailVerified {
			return httputil.Fail(c, fiber.StatusForbidden, wire.CodeUnauthorized, "email address is not verified")
		}

		return c.Next()
	}
}
