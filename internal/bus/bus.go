// Package bus implements the Pub/Sub Bus Adapter (spec §4.4): a thin contract over Valkey's publish/subscribe
// primitive, addressed by stable scope-key strings rather than raw Redis channel names. It guarantees
// at-least-once delivery to every subscriber connected at publish time, preserves publish order within a single
// scope key, and gives no ordering guarantee across distinct scope keys. Payloads are short, typed JSON; binary
// media never flows through it.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

const channelPrefix = "uncord.bus."

func redisChannel(scopeKey string) string {
	return channelPrefix + scopeKey
}

// scopeSubscription multiplexes one Valkey pub/sub subscription across every in-process listener for a given
// scope key, so the process attaches at most one Redis subscription per distinct scope regardless of how many
// gateway connections are interested in it.
type scopeSubscription struct {
	pubsub    *redis.PubSub
	cancel    context.CancelFunc
	listeners map[int]chan wire.BusEnvelope
	nextID    int
}

// Bus publishes and subscribes to scope-keyed events over Valkey.
type Bus struct {
	rdb *redis.Client
	log zerolog.Logger

	mu   sync.Mutex
	subs map[string]*scopeSubscription
}

// NewBus creates a Bus over the given Valkey client.
func NewBus(rdb *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{rdb: rdb, log: logger, subs: make(map[string]*scopeSubscription)}
}

// Publish serialises event/data as a wire.BusEnvelope and publishes it on scopeKey. originDeviceID is attached so
// a cross-device broadcast recipient can filter out events it caused on another of its own devices; pass nil when
// the event did not originate from a specific device.
func (b *Bus) Publish(ctx context.Context, scopeKey string, event wire.DispatchEvent, data any, originDeviceID *string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal bus event data: %w", err)
	}
	env := wire.BusEnvelope{Event: event, OriginDeviceID: originDeviceID, Data: raw}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal bus envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, redisChannel(scopeKey), payload).Err(); err != nil {
		return fmt.Errorf("publish to scope %s: %w", scopeKey, err)
	}
	return nil
}

// Subscribe attaches the caller to scopeKey, lazily creating the underlying Valkey subscription the first time
// any caller in this process subscribes to it and tearing it down once the last caller unsubscribes. The
// returned channel is buffered; a listener that falls behind has the oldest-pending event dropped (logged) rather
// than stalling delivery to every other listener on the scope or to other scopes entirely — per-connection
// backpressure against a slow client is the gateway's job (spec §4.6), not the bus's.
func (b *Bus) Subscribe(scopeKey string) (<-chan wire.BusEnvelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[scopeKey]
	if !ok {
		pumpCtx, cancel := context.WithCancel(context.Background())
		pubsub := b.rdb.Subscribe(pumpCtx, redisChannel(scopeKey))
		sub = &scopeSubscription{pubsub: pubsub, cancel: cancel, listeners: make(map[int]chan wire.BusEnvelope)}
		b.subs[scopeKey] = sub
		go b.pump(pumpCtx, scopeKey, sub)
	}

	id := sub.nextID
	sub.nextID++
	ch := make(chan wire.BusEnvelope, 32)
	sub.listeners[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		cur, ok := b.subs[scopeKey]
		if !ok || cur != sub {
			return
		}
		if _, ok := sub.listeners[id]; !ok {
			return
		}
		delete(sub.listeners, id)
		close(ch)
		if len(sub.listeners) == 0 {
			sub.cancel()
			_ = sub.pubsub.Close()
			delete(b.subs, scopeKey)
		}
	}

	return ch, unsubscribe
}

// ScopeSubscriberCount reports how many in-process listeners are currently attached to scopeKey. Intended for
// tests and diagnostics.
func (b *Bus) ScopeSubscriberCount(scopeKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[scopeKey]
	if !ok {
		return 0
	}
	return len(sub.listeners)
}

func (b *Bus) pump(ctx context.Context, scopeKey string, sub *scopeSubscription) {
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env wire.BusEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn().Err(err).Str("scope", scopeKey).Msg("invalid bus envelope")
				continue
			}

			b.mu.Lock()
			listeners := make([]chan wire.BusEnvelope, 0, len(sub.listeners))
			for _, l := range sub.listeners {
				listeners = append(listeners, l)
			}
			b.mu.Unlock()

			for _, l := range listeners {
				select {
				case l <- env:
				default:
					b.log.Warn().Str("scope", scopeKey).Msg("bus listener queue full, dropping event")
				}
			}
		}
	}
}
