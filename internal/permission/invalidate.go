package permission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InvalidationMessage is published to trigger cache invalidation. All, when true, flushes the entire cache and
// takes precedence over UserID/ChannelID (used after a bulk role or override change touches too many keys to
// enumerate individually).
type InvalidationMessage struct {
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	ChannelID *uuid.UUID `json:"channel_id,omitempty"`
	All       bool       `json:"all,omitempty"`
}

// Publisher sends cache invalidation messages via Valkey pub/sub.
type Publisher struct {
	Client *redis.Client
}

// NewPublisher creates a new invalidation publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{Client: client}
}

// InvalidateUser publishes an invalidation for all cached permissions of a user.
func (p *Publisher) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return p.publish(ctx, InvalidationMessage{UserID: &userID})
}

// InvalidateChannel publishes an invalidation for all cached permissions of a channel.
func (p *Publisher) InvalidateChannel(ctx context.Context, channelID uuid.UUID) error {
	return p.publish(ctx, InvalidationMessage{ChannelID: &channelID})
}

// InvalidateUserChannel publishes an invalidation for a specific user+channel pair.
func (p *Publisher) InvalidateUserChannel(ctx context.Context, userID, channelID uuid.UUID) error {
	return p.publish(ctx, InvalidationMessage{UserID: &userID, ChannelID: &channelID})
}

func (p *Publisher) publish(ctx context.Context, msg InvalidationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	return p.Client.Publish(ctx, InvalidateChannel, data).Err()
}

// Subscriber listens for cache invalidation messages and removes cached entries.
type Subscriber struct {
	cache  Cache
	client *redis.Client
	log    zerolog.Logger
}

// NewSubscriber creates a new invalidation subscriber.
func NewSubscriber(cache Cache, client *redis.Client, logger zerolog.Logger) *Subscriber {
	return &Subscriber{cache: cache, client: client, log: logger}
}

// Run subscribes to the invalidation channel and processes messages until the
// context is cancelled. This method blocks and should be called in a goroutine.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, InvalidateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, payload string) {
	var msg InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.log.Warn().Err(err).Str("payload", payload).Msg("Invalid invalidation message")
		return
	}

	var err error
	switch {
	case msg.All:
		err = s.cache.DeleteAll(ctx)
	case msg.UserID != nil && msg.ChannelID != nil:
		err = s.cache.DeleteExact(ctx, *msg.UserID, *msg.ChannelID)
	case msg.UserID != nil:
		err = s.cache.DeleteByUser(ctx, *msg.UserID)
	case msg.ChannelID != nil:
		err = s.cache.DeleteByChannel(ctx, *msg.ChannelID)
	default:
		return
	}

	if err != nil {
		s.log.Warn().Err(err).Msg("Cache invalidation failed")
	}
}
