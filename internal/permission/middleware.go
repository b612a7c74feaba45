package permission

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/server"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// RequirePermission returns Fiber middleware that checks whether the
// authenticated user has the given permission in the channel specified by
// the "channelID" route parameter.
func RequirePermission(resolver *Resolver, perm wire.Permission) fiber.Handler {
	return func(c fiber.Ctx) error {
		userIDVal := c.Locals("userID")
		if userIDVal == nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "authentication required")
		}

		userID, ok := userIDVal.(uuid.UUID)
		if !ok {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "invalid user identity")
		}

		channelIDStr := c.Params("channelID")
		if channelIDStr == "" {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "channel id is required")
		}

		channelID, err := uuid.Parse(channelIDStr)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "invalid channel id format")
		}

		allowed, err := resolver.HasPermission(c.Context(), userID, channelID, perm)
		if err != nil {
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "failed to check permissions")
		}

		if !allowed {
			return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "you do not have the required permissions")
		}

		return c.Next()
	}
}

// RequireServerPermission returns Fiber middleware that checks whether the authenticated user holds the given
// permission on the server's single implicit guild, rather than on a specific channel. It is used for routes that
// manage guild-wide resources (roles, categories, invites, the server config itself) with no "channelID" route
// parameter to resolve against.
func RequireServerPermission(resolver *Resolver, srv server.Repository, perm wire.Permission) fiber.Handler {
	return func(c fiber.Ctx) error {
		userIDVal := c.Locals("userID")
		if userIDVal == nil {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "authentication required")
		}

		userID, ok := userIDVal.(uuid.UUID)
		if !ok {
			return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "invalid user identity")
		}

		cfg, err := srv.Get(c.Context())
		if err != nil {
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "failed to resolve server")
		}

		allowed, err := resolver.HasGuildPermission(c.Context(), cfg.ID, userID, perm)
		if err != nil {
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "failed to check permissions")
		}

		if !allowed {
			return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "you do not have the required permissions")
		}

		return c.Next()
	}
}
