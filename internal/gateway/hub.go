package gateway

import (
	"context"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/auth"
	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/config"
	"github.com/uncord-chat/uncord-server/internal/presence"
	"github.com/uncord-chat/uncord-server/internal/ratelimit"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

const frameLimiterCategory = ratelimit.CategoryGatewayFrames

// Hub is the gateway's connection registry: it upgrades sockets into Connections, authenticates them, and wires
// their subscribe/unsubscribe calls into the shared Bus. There is no per-scope fan-out logic here beyond that
// wiring: internal/bus.Bus already multiplexes one Valkey subscription per scope across every interested listener
// in the process, so each Connection's forwarder goroutine only has to turn bus.BusEnvelope values into sequenced
// dispatch frames for that one connection.
type Hub struct {
	connections  connRegistry
	cfg          *config.Config
	bus          *bus.Bus
	authorizer   ScopeAuthorizer
	frameLimiter *ratelimit.Limiter
	presence     *presence.Store
	log          zerolog.Logger
}

// NewHub creates a new gateway hub.
func NewHub(cfg *config.Config, b *bus.Bus, authorizer ScopeAuthorizer, frameLimiter *ratelimit.Limiter, presenceStore *presence.Store, logger zerolog.Logger) *Hub {
	return &Hub{
		connections:  newConnRegistry(),
		cfg:          cfg,
		bus:          b,
		authorizer:   authorizer,
		frameLimiter: frameLimiter,
		presence:     presenceStore,
		log:          logger.With().Str("component", "gateway").Logger(),
	}
}

// ServeWebSocket initialises a new connection for an upgraded WebSocket, sends the Hello frame, and starts its
// read and write pumps. It blocks until the connection closes.
func (h *Hub) ServeWebSocket(conn *websocket.Conn) {
	c := newConnection(h, conn, h.log)

	hello, err := newHelloFrame(h.cfg.GatewayHeartbeatIntervalMS)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build hello frame")
		_ = conn.Close()
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		h.log.Debug().Err(err).Msg("failed to send hello frame")
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// authenticate validates the bearer token presented in the auth frame, registers the connection, and replies with
// a ready frame. Multiple connections per user are expected (one per device); none are displaced.
func (h *Hub) authenticate(c *Connection, token, deviceID string) {
	claims, err := auth.ValidateAccessToken(token, h.cfg.JWTSecret, h.cfg.ServerURL)
	if err != nil {
		h.log.Debug().Err(err).Msg("auth frame token validation failed")
		c.closeWithCode(wire.CloseAuthFailed, "invalid token")
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.closeWithCode(wire.CloseAuthFailed, "invalid token subject")
		return
	}

	if h.connections.Count() >= h.cfg.GatewayMaxConnections {
		c.closeWithCode(wire.CloseAuthFailed, "too many connections")
		return
	}

	c.mu.Lock()
	c.userID = userID
	c.deviceID = deviceID
	c.authenticated = true
	c.mu.Unlock()

	h.connections.Add(c)

	ready, err := newReadyFrame(userID.String())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build ready frame")
		return
	}
	c.enqueue(ready)

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if pErr := h.presence.Set(ctx, userID, presence.StatusOnline); pErr != nil {
			h.log.Warn().Err(pErr).Stringer("user_id", userID).Msg("failed to set initial presence")
		}
	}

	h.log.Info().Stringer("user_id", userID).Str("connection_id", c.id).Msg("connection authenticated")
}

// subscribe authorizes and attaches a connection to a scope, lazily wiring a bus subscription and starting a
// forwarder goroutine that turns bus.BusEnvelope values into sequenced dispatch frames for this one connection.
// An unauthorized subscribe gets a "forbidden" error frame, per spec §4.6 — never a silent drop.
func (h *Hub) subscribe(c *Connection, scope string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := authorizeSubscribe(ctx, h.authorizer, c.UserID(), scope)
	if err != nil {
		h.log.Warn().Err(err).Str("scope", scope).Msg("scope authorization check failed")
		ok = false
	}
	if !ok {
		if frame, fErr := newErrorFrame(wire.CodeForbidden, "not authorized for scope "+scope); fErr == nil {
			c.enqueue(frame)
		}
		return
	}

	c.subsMu.Lock()
	if _, already := c.subs[scope]; already {
		c.subsMu.Unlock()
		return
	}

	ch, busUnsubscribe := h.bus.Subscribe(scope)
	forwarderDone := make(chan struct{})
	unsubscribe := func() {
		busUnsubscribe()
		<-forwarderDone
	}
	c.subs[scope] = unsubscribe
	c.subsMu.Unlock()

	go h.forward(c, scope, ch, forwarderDone)
}

// forward drains a bus subscription channel into a connection's send buffer, assigning the connection's own
// monotonic sequence number to each event at delivery time (spec §5: per-user sequence numbers are monotonic
// within a connection). It returns once the channel is closed, either by unsubscribe or connection teardown.
func (h *Hub) forward(c *Connection, scope string, ch <-chan wire.BusEnvelope, done chan struct{}) {
	defer close(done)
	for env := range ch {
		frame, err := newDispatchFrame(scope, c.nextSeq(), env)
		if err != nil {
			h.log.Warn().Err(err).Str("scope", scope).Msg("failed to build dispatch frame")
			continue
		}
		c.enqueue(frame)
	}
}

// unregister removes a connection from the hub, tears down all its scope subscriptions, and — if this was the
// user's last live connection — schedules a delayed offline presence update.
func (h *Hub) unregister(c *Connection) {
	c.closeSend()
	c.unsubscribeAll()

	if !h.connections.Remove(c) {
		return
	}

	if h.presence != nil && c.IsAuthenticated() {
		userID := c.UserID()
		if h.connections.CountForUser(userID) == 0 {
			go h.delayedOffline(userID)
		}
	}
}

// delayedOffline waits for the configured grace period then publishes an offline presence update if the user has
// not reconnected on another device in the meantime.
func (h *Hub) delayedOffline(userID uuid.UUID) {
	time.Sleep(time.Duration(h.cfg.GatewayOfflineDelayMS) * time.Millisecond)

	if h.connections.CountForUser(userID) > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.presence.Delete(ctx, userID); err != nil {
		h.log.Warn().Err(err).Stringer("user_id", userID).Msg("failed to delete presence on delayed offline")
	}
}

// Shutdown closes every active connection so the process can exit cleanly. Clients reconnect and refetch state
// via REST, since resume is not guaranteed (spec §4.6).
func (h *Hub) Shutdown() {
	for _, c := range h.connections.All() {
		c.closeWithCode(wire.CloseProtocolError, "server shutting down")
	}
	h.log.Info().Msg("gateway hub shut down")
}

// ConnectionCount returns the number of currently registered connections.
func (h *Hub) ConnectionCount() int {
	return h.connections.Count()
}
