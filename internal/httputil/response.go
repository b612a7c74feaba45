package httputil

import (
	"github.com/gofiber/fiber/v3"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

// Success sends a 200 JSON response with the given data.
func Success(c fiber.Ctx, data any) error {
	return c.JSON(wire.SuccessResponse{Data: data})
}

// SuccessStatus sends a JSON response with a custom status code.
func SuccessStatus(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(wire.SuccessResponse{Data: data})
}

// Fail sends a JSON error response with the given status, code, and message.
func Fail(c fiber.Ctx, status int, code wire.Code, message string) error {
	return c.Status(status).JSON(wire.ErrorResponse{
		Error: wire.ErrorBody{
			Code:    code,
			Message: message,
		},
	})
}

// FailRateLimited sends a 429 carrying retry_after_seconds alongside the standard error body, per spec §7.
func FailRateLimited(c fiber.Ctx, retryAfterSeconds int) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(wire.RateLimitedBody{
		ErrorBody: wire.ErrorBody{
			Code:    wire.CodeRateLimited,
			Message: "too many requests",
		},
		RetryAfterSeconds: retryAfterSeconds,
	})
}
