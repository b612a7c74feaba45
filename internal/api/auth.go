package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/auth"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	auth *auth.Service
	log  zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, log: logger}
}

// registerRequest is the JSON body for POST /api/v1/auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginRequest is the JSON body for POST /api/v1/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest is the JSON body for POST /api/v1/auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// verifyEmailRequest is the JSON body for POST /api/v1/auth/verify-email.
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// mfaVerifyRequest is the JSON body for POST /api/v1/auth/mfa/verify.
type mfaVerifyRequest struct {
	Ticket string `json:"ticket"`
	Code   string `json:"code"`
}

// verifyPasswordRequest is the JSON body for POST /api/v1/auth/verify-password.
type verifyPasswordRequest struct {
	Password string `json:"password"`
}

// authResultResponse builds the JSON payload for Register and Login responses.
func authResultResponse(result *auth.AuthResult) fiber.Map {
	return fiber.Map{
		"user": fiber.Map{
			"id":             result.User.ID,
			"email":          result.User.Email,
			"username":       result.User.Username,
			"email_verified": result.User.EmailVerified,
		},
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var body registerRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	result, err := h.auth.Register(c.Context(), auth.RegisterRequest{
		Email:    body.Email,
		Username: body.Username,
		Password: body.Password,
	})
	if err != nil {
		return mapAuthError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, authResultResponse(result))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	result, err := h.auth.Login(c.Context(), auth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
		IP:       c.IP(),
	})
	if err != nil {
		return mapAuthError(c, err)
	}

	if result.MFARequired {
		return httputil.Success(c, fiber.Map{
			"mfa_required": true,
			"ticket":       result.Ticket,
		})
	}

	return httputil.Success(c, authResultResponse(result.Auth))
}

// MFAVerify handles POST /api/v1/auth/mfa/verify, completing a login that was deferred pending MFA verification.
func (h *AuthHandler) MFAVerify(c fiber.Ctx) error {
	var body mfaVerifyRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}
	if body.Ticket == "" || body.Code == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "ticket and code are required")
	}

	result, err := h.auth.VerifyMFA(c.Context(), body.Ticket, body.Code)
	if err != nil {
		return mapAuthError(c, err)
	}

	return httputil.Success(c, authResultResponse(result))
}

// VerifyPassword handles POST /api/v1/auth/verify-password, re-confirming the caller's password for sensitive
// operations performed from an already-authenticated session (e.g. before showing account deletion confirmation).
func (h *AuthHandler) VerifyPassword(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body verifyPasswordRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}
	if body.Password == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "password is required")
	}

	if err := h.auth.VerifyUserPassword(c.Context(), userID, body.Password); err != nil {
		return mapAuthError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body refreshRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "refresh_token is required")
	}

	tokens, err := h.auth.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return mapAuthError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

// VerifyEmail handles POST /api/v1/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c fiber.Ctx) error {
	var body verifyEmailRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}
	if body.Token == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "token is required")
	}

	if err := h.auth.VerifyEmail(c.Context(), body.Token); err != nil {
		return mapAuthError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"message": "Email verified successfully",
	})
}

// mapAuthError converts auth-layer errors to appropriate HTTP responses.
func mapAuthError(c fiber.Ctx, err error) error {
	switch {
	// Validation errors
	case errors.Is(err, auth.ErrInvalidEmail):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, auth.ErrUsernameLength),
		errors.Is(err, auth.ErrUsernameInvalidChars):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())

	// Business logic errors
	case errors.Is(err, auth.ErrEmailAlreadyTaken):
		return httputil.Fail(c, fiber.StatusConflict, wire.CodeConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, err.Error())
	case errors.Is(err, auth.ErrMFARequired):
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidMFACode):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, auth.ErrRefreshTokenReused):
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Refresh token has already been used")
	case errors.Is(err, auth.ErrInvalidToken):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeUnauthorized, err.Error())

	default:
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
