package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/apimodel"
	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/channel"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
	"github.com/uncord-chat/uncord-server/internal/member"
	"github.com/uncord-chat/uncord-server/internal/permission"
)

// ChannelHandler serves channel endpoints.
type ChannelHandler struct {
	channels    channel.Repository
	members     member.Repository
	resolver    *permission.Resolver
	bus         *bus.Bus
	maxChannels int
	log         zerolog.Logger
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(
	channels channel.Repository,
	members member.Repository,
	resolver *permission.Resolver,
	b *bus.Bus,
	maxChannels int,
	logger zerolog.Logger,
) *ChannelHandler {
	return &ChannelHandler{
		channels:    channels,
		members:     members,
		resolver:    resolver,
		bus:         b,
		maxChannels: maxChannels,
		log:         logger,
	}
}

// ListChannels handles GET /api/v1/server/channels. Active and timed-out members see all channels they have
// permission to view. Non-members and pending members see an empty list.
func (h *ChannelHandler) ListChannels(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	status, err := h.members.GetStatus(c, userID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return httputil.Success(c, []apimodel.Channel{})
		}
		h.log.Error().Err(err).Str("handler", "channel").Msg("get member status failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	if status == apimodel.MemberStatusPending {
		return httputil.Success(c, []apimodel.Channel{})
	}

	return h.listPermittedChannels(c, userID)
}

// listPermittedChannels returns all channels the user has ViewChannels permission for.
func (h *ChannelHandler) listPermittedChannels(c fiber.Ctx, userID uuid.UUID) error {
	all, err := h.channels.List(c)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "channel").Msg("list channels failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	channelIDs := make([]uuid.UUID, len(all))
	for i := range all {
		channelIDs[i] = all[i].ID
	}

	permitted, err := h.resolver.FilterPermitted(c, userID, channelIDs, wire.ViewChannels)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "channel").Msg("permission check failed during channel list")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	result := make([]apimodel.Channel, 0, len(all))
	for i := range all {
		if permitted[i] {
			result = append(result, all[i].ToModel())
		}
	}
	return httputil.Success(c, result)
}

// CreateChannel handles POST /api/v1/server/channels.
func (h *ChannelHandler) CreateChannel(c fiber.Ctx) error {
	var body apimodel.CreateChannelRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	name, err := channel.ValidateNameRequired(body.Name)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	chType := apimodel.ChannelTypeText
	if body.Type != nil {
		chType = *body.Type
	}
	if err := channel.ValidateType(chType); err != nil {
		return h.mapChannelError(c, err)
	}

	if err := channel.ValidateTopic(body.Topic); err != nil {
		return h.mapChannelError(c, err)
	}
	if err := channel.ValidateSlowmode(body.SlowmodeSeconds); err != nil {
		return h.mapChannelError(c, err)
	}

	var categoryID *uuid.UUID
	if body.CategoryID != nil {
		parsed, err := uuid.Parse(*body.CategoryID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid category ID format")
		}
		categoryID = &parsed
	}

	var topic string
	if body.Topic != nil {
		topic = *body.Topic
	}
	var slowmode int
	if body.SlowmodeSeconds != nil {
		slowmode = *body.SlowmodeSeconds
	}
	var nsfw bool
	if body.NSFW != nil {
		nsfw = *body.NSFW
	}

	ch, err := h.channels.Create(c, channel.CreateParams{
		Name:            name,
		Type:            chType,
		CategoryID:      categoryID,
		Topic:           topic,
		SlowmodeSeconds: slowmode,
		NSFW:            nsfw,
	}, h.maxChannels)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	result := ch.ToModel()
	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), scopeForChannel(ch), wire.EventChannelCreate, result, nil); err != nil {
				h.log.Warn().Err(err).Str("channel_id", ch.ID.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, result)
}

// GetChannel handles GET /api/v1/channels/:channelID.
func (h *ChannelHandler) GetChannel(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID format")
	}

	ch, err := h.channels.GetByID(c, id)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	return httputil.Success(c, ch.ToModel())
}

// UpdateChannel handles PATCH /api/v1/channels/:channelID.
func (h *ChannelHandler) UpdateChannel(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID format")
	}

	var body apimodel.UpdateChannelRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	if err := channel.ValidateName(body.Name); err != nil {
		return h.mapChannelError(c, err)
	}
	if err := channel.ValidateTopic(body.Topic); err != nil {
		return h.mapChannelError(c, err)
	}
	if err := channel.ValidatePosition(body.Position); err != nil {
		return h.mapChannelError(c, err)
	}
	if err := channel.ValidateSlowmode(body.SlowmodeSeconds); err != nil {
		return h.mapChannelError(c, err)
	}

	params := channel.UpdateParams{
		Name:            body.Name,
		Topic:           body.Topic,
		Position:        body.Position,
		SlowmodeSeconds: body.SlowmodeSeconds,
		NSFW:            body.NSFW,
	}

	// Interpret CategoryID: nil = no change, "" = remove from category, valid UUID = move to category.
	if body.CategoryID != nil {
		if *body.CategoryID == "" {
			params.SetCategoryNull = true
		} else {
			parsed, err := uuid.Parse(*body.CategoryID)
			if err != nil {
				return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid category ID format")
			}
			params.CategoryID = &parsed
		}
	}

	ch, err := h.channels.Update(c, id, params)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	result := ch.ToModel()
	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), scopeForChannel(ch), wire.EventChannelUpdate, result, nil); err != nil {
				h.log.Warn().Err(err).Str("channel_id", id.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return httputil.Success(c, result)
}

// DeleteChannel handles DELETE /api/v1/channels/:channelID.
func (h *ChannelHandler) DeleteChannel(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid channel ID format")
	}

	existing, err := h.channels.GetByID(c, id)
	if err != nil {
		return h.mapChannelError(c, err)
	}

	if err := h.channels.Delete(c, id); err != nil {
		return h.mapChannelError(c, err)
	}

	if h.bus != nil {
		go func() {
			data := apimodel.ChannelDeleteData{ID: id.String()}
			if err := h.bus.Publish(context.Background(), scopeForChannel(existing), wire.EventChannelDelete, data, nil); err != nil {
				h.log.Warn().Err(err).Str("channel_id", id.String()).Msg("Gateway publish failed")
			}
		}()
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// scopeForChannel returns the bus scope a channel's lifecycle events are published on: the owning guild for
// guild channels, the channel's own scope otherwise.
func scopeForChannel(ch *channel.Channel) string {
	if ch.GuildID != nil {
		return wire.ScopeGuild(ch.GuildID.String())
	}
	return wire.ScopeChannel(ch.ID.String())
}

// mapChannelError converts channel-layer errors to appropriate HTTP responses.
func (h *ChannelHandler) mapChannelError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, channel.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, "Channel not found")
	case errors.Is(err, channel.ErrNameLength):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, channel.ErrInvalidType):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, channel.ErrTopicLength):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, channel.ErrInvalidSlowmode):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, channel.ErrInvalidPosition):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, channel.ErrCategoryNotFound):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeNotFound, err.Error())
	case errors.Is(err, channel.ErrMaxChannelsReached):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "channel").Msg("unhandled channel service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
