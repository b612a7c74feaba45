package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/apimodel"
	"github.com/uncord-chat/uncord-server/internal/attachment"
	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/channel"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/media"
	"github.com/uncord-chat/uncord-server/internal/message"
	"github.com/uncord-chat/uncord-server/internal/moderation"
	"github.com/uncord-chat/uncord-server/internal/permission"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// MessageHandler serves message endpoints.
type MessageHandler struct {
	messages       message.Repository
	attachments    attachment.Repository
	channels       channel.Repository
	storage        media.StorageProvider
	resolver       *permission.Resolver
	moderation     *moderation.Pipeline
	bus            *bus.Bus
	maxContent     int
	maxAttachments int
	log            zerolog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	messages message.Repository,
	attachments attachment.Repository,
	channels channel.Repository,
	storage media.StorageProvider,
	resolver *permission.Resolver,
	mod *moderation.Pipeline,
	b *bus.Bus,
	maxContent int,
	maxAttachments int,
	logger zerolog.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:       messages,
		attachments:    attachments,
		channels:       channels,
		storage:        storage,
		resolver:       resolver,
		moderation:     mod,
		bus:            b,
		maxContent:     maxContent,
		maxAttachments: maxAttachments,
		log:            logger,
	}
}

// ListMessages handles GET /api/v1/channels/:channelID/messages.
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID format")
	}

	var before *uuid.UUID
	if raw := c.Query("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid before parameter")
		}
		before = &id
	}

	rawLimit, _ := strconv.Atoi(c.Query("limit"))
	limit := message.ClampLimit(rawLimit)

	messages, err := h.messages.List(c, channelID, before, limit)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "message").Msg("list messages failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	// Batch-load attachments for all returned messages.
	messageIDs := make([]uuid.UUID, len(messages))
	for i := range messages {
		messageIDs[i] = messages[i].ID
	}
	attachmentMap, err := h.attachments.ListByMessages(c, messageIDs)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "message").Msg("list message attachments failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	result := make([]apimodel.Message, len(messages))
	for i := range messages {
		result[i] = h.toMessageModel(&messages[i], attachmentMap[messages[i].ID])
	}
	return httputil.Success(c, result)
}

// CreateMessage handles POST /api/v1/channels/:channelID/messages.
func (h *MessageHandler) CreateMessage(c fiber.Ctx) error {
	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID format")
	}

	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body apimodel.CreateMessageRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	hasAttachments := len(body.AttachmentIDs) > 0

	// Validate attachment count.
	if len(body.AttachmentIDs) > h.maxAttachments {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation,
			fmt.Sprintf("Too many attachments (maximum %d)", h.maxAttachments))
	}

	// Parse attachment IDs upfront.
	var attachmentIDs []uuid.UUID
	for _, raw := range body.AttachmentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid attachment_ids format")
		}
		attachmentIDs = append(attachmentIDs, id)
	}

	// Content is required only when no attachments are provided.
	content, err := message.ValidateContent(body.Content, h.maxContent)
	if err != nil {
		if errors.Is(err, message.ErrEmptyContent) && hasAttachments {
			content = ""
		} else {
			return h.mapMessageError(c, err)
		}
	}

	var replyToID *uuid.UUID
	if body.ReplyToID != nil {
		parsed, err := uuid.Parse(*body.ReplyToID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid reply_to_id format")
		}
		replyToID = &parsed
	}

	if content != "" {
		content, err = h.runModeration(c, channelID, userID, content)
		if err != nil {
			if errors.Is(err, moderation.ErrBlocked) {
				return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation,
					"Message was blocked by the content filter")
			}
			h.log.Error().Err(err).Str("handler", "message").Msg("moderation check failed")
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
		}
	}

	msg, err := h.messages.Create(c, message.CreateParams{
		ChannelID: channelID,
		AuthorID:  userID,
		Content:   content,
		ReplyToID: replyToID,
	})
	if err != nil {
		return h.mapMessageError(c, err)
	}

	// Link pending attachments to the new message.
	var linked []attachment.Attachment
	if len(attachmentIDs) > 0 {
		linked, err = h.attachments.LinkToMessage(c, attachmentIDs, msg.ID, userID)
		if err != nil {
			return mapAttachmentError(c, err)
		}
	}

	result := h.toMessageModel(msg, linked)

	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), wire.ScopeChannel(channelID.String()), wire.EventMessageNew, result, nil); err != nil {
				h.log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, result)
}

// runModeration resolves the message's channel and, for guild channels carrying unencrypted content, runs it
// through the moderation pipeline. DM/group-DM channels (GuildID == nil) bypass the filter entirely, matching the
// pipeline's precondition. It returns the content to persist, rewritten for disallowed mass mentions.
func (h *MessageHandler) runModeration(c fiber.Ctx, channelID, userID uuid.UUID, content string) (string, error) {
	if h.moderation == nil {
		return content, nil
	}

	ch, err := h.channels.GetByID(c, channelID)
	if err != nil {
		return content, nil
	}
	if ch.GuildID == nil {
		return content, nil
	}

	authorPerms, err := h.resolver.Resolve(c, userID, channelID)
	if err != nil {
		return content, fmt.Errorf("resolve author permissions: %w", err)
	}

	outcome, err := h.moderation.Check(c, *ch.GuildID, channelID, userID, content, authorPerms)
	if err != nil {
		return content, err
	}
	if outcome.Warned {
		h.log.Info().Str("channel_id", channelID.String()).Str("user_id", userID.String()).
			Str("category", string(outcome.Decision.Category)).Msg("message flagged by content filter")
	}
	return outcome.RewrittenContent, nil
}

// EditMessage handles PATCH /api/v1/messages/:messageID.
func (h *MessageHandler) EditMessage(c fiber.Ctx) error {
	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid message ID format")
	}

	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body apimodel.UpdateMessageRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	content, err := message.ValidateContent(body.Content, h.maxContent)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	existing, err := h.messages.GetByID(c, messageID)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	if existing.AuthorID != userID {
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "You can only edit your own messages")
	}

	content, err = h.runModeration(c, existing.ChannelID, userID, content)
	if err != nil {
		if errors.Is(err, moderation.ErrBlocked) {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation,
				"Message was blocked by the content filter")
		}
		h.log.Error().Err(err).Str("handler", "message").Msg("moderation check failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	msg, err := h.messages.Update(c, messageID, content)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	attachments, err := h.attachments.ListByMessage(c, msg.ID)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "message").Msg("list message attachments failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	result := h.toMessageModel(msg, attachments)

	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), wire.ScopeChannel(msg.ChannelID.String()), wire.EventMessageEdit, result, nil); err != nil {
				h.log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return httputil.Success(c, result)
}

// DeleteMessage handles DELETE /api/v1/messages/:messageID.
func (h *MessageHandler) DeleteMessage(c fiber.Ctx) error {
	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid message ID format")
	}

	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	existing, err := h.messages.GetByID(c, messageID)
	if err != nil {
		return h.mapMessageError(c, err)
	}

	// The author can always delete their own messages. Other users need the ManageMessages permission on the channel.
	if existing.AuthorID != userID {
		allowed, err := h.resolver.HasPermission(c, userID, existing.ChannelID, wire.ManageMessages)
		if err != nil {
			h.log.Error().Err(err).Str("handler", "message").Msg("permission check failed")
			return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
		}
		if !allowed {
			return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden,
				"You do not have permission to delete this message")
		}
	}

	if err := h.messages.SoftDelete(c, messageID); err != nil {
		return h.mapMessageError(c, err)
	}

	if h.bus != nil {
		go func() {
			deletePayload := apimodel.MessageDeleteData{
				ID:        messageID.String(),
				ChannelID: existing.ChannelID.String(),
			}
			if err := h.bus.Publish(context.Background(), wire.ScopeChannel(existing.ChannelID.String()), wire.EventMessageDelete, deletePayload, nil); err != nil {
				h.log.Warn().Err(err).Str("message_id", messageID.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// toMessageModel converts the internal message type to the protocol response type.
func (h *MessageHandler) toMessageModel(m *message.Message, attachments []attachment.Attachment) apimodel.Message {
	var replyToID *string
	if m.ReplyToID != nil {
		s := m.ReplyToID.String()
		replyToID = &s
	}
	var editedAt *string
	if m.EditedAt != nil {
		s := m.EditedAt.Format(time.RFC3339)
		editedAt = &s
	}

	modelAttachments := make([]apimodel.Attachment, len(attachments))
	for i := range attachments {
		modelAttachments[i] = toAttachmentModel(&attachments[i], h.storage)
	}

	return apimodel.Message{
		ID:        m.ID.String(),
		ChannelID: m.ChannelID.String(),
		Author: apimodel.MemberUser{
			ID:          m.AuthorID.String(),
			Username:    m.AuthorUsername,
			DisplayName: m.AuthorDisplayName,
			AvatarKey:   m.AuthorAvatarKey,
		},
		Content:     m.Content,
		Attachments: modelAttachments,
		ReplyToID:   replyToID,
		Pinned:      m.Pinned,
		EditedAt:    editedAt,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

// mapMessageError converts message-layer errors to appropriate HTTP responses.
func (h *MessageHandler) mapMessageError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, message.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, "Message not found")
	case errors.Is(err, message.ErrContentTooLong):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, message.ErrEmptyContent):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, message.ErrReplyNotFound):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeNotFound, err.Error())
	case errors.Is(err, message.ErrNotAuthor):
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "You can only edit your own messages")
	default:
		h.log.Error().Err(err).Str("handler", "message").Msg("unhandled message service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
