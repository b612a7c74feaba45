package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/call"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// CallHandler serves DM/group-DM call control endpoints.
type CallHandler struct {
	calls *call.Service
	log   zerolog.Logger
}

// NewCallHandler creates a new call handler.
func NewCallHandler(calls *call.Service, logger zerolog.Logger) *CallHandler {
	return &CallHandler{calls: calls, log: logger}
}

// callResponse is the JSON shape returned for a call.
type callResponse struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	InitiatorID string `json:"initiator_id"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
}

func toCallResponse(c *call.Call) callResponse {
	return callResponse{
		ID:          c.ID.String(),
		ChannelID:   c.ChannelID.String(),
		InitiatorID: c.InitiatorID.String(),
		Status:      string(c.Status),
		StartedAt:   c.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Start handles POST /api/v1/channels/:channelID/calls, ringing every member of the dm/group_dm channel.
func (h *CallHandler) Start(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID")
	}

	result, err := h.calls.Start(c.Context(), channelID, userID)
	if err != nil {
		return h.mapCallError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, toCallResponse(result))
}

// Accept handles POST /api/v1/calls/:callID/accept.
func (h *CallHandler) Accept(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	callID, err := uuid.Parse(c.Params("callID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid call ID")
	}

	if err := h.calls.Accept(c.Context(), callID, userID); err != nil {
		return h.mapCallError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Decline handles POST /api/v1/calls/:callID/decline.
func (h *CallHandler) Decline(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	callID, err := uuid.Parse(c.Params("callID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid call ID")
	}

	if err := h.calls.Decline(c.Context(), callID, userID); err != nil {
		return h.mapCallError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Leave handles POST /api/v1/calls/:callID/leave.
func (h *CallHandler) Leave(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	callID, err := uuid.Parse(c.Params("callID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid call ID")
	}

	if err := h.calls.Leave(c.Context(), callID, userID); err != nil {
		return h.mapCallError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CallHandler) mapCallError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, call.ErrAlreadyRinging):
		return httputil.Fail(c, fiber.StatusConflict, wire.CodeConflict, err.Error())
	case errors.Is(err, call.ErrNotRinging), errors.Is(err, call.ErrNotActive):
		return httputil.Fail(c, fiber.StatusConflict, wire.CodeConflict, err.Error())
	case errors.Is(err, call.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, "Call not found")
	default:
		h.log.Error().Err(err).Str("handler", "call").Msg("call control failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
