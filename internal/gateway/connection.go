package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

const (
	// maxMessageSize is the maximum size in bytes of a single inbound WebSocket message.
	maxMessageSize = 4096

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// authTimeout is how long a connection has to send an auth frame after the socket opens.
	authTimeout = 30 * time.Second
)

// Connection is a single WebSocket connection, keyed by its own id rather than by user: a user may hold several
// live connections at once, one per device (spec §4.6's device_id state field), and cross-device broadcast relies
// on every one of them being independently addressable.
type Connection struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	log  zerolog.Logger

	send chan []byte

	// done is closed to signal shutdown. The send channel is never closed directly; writePump and enqueue both
	// select on done, avoiding a send-on-closed-channel panic when unregister races with a forwarder goroutine.
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.RWMutex
	userID        uuid.UUID
	deviceID      string
	authenticated bool
	seq           atomic.Int64

	subsMu sync.Mutex
	subs   map[string]func() // scope key -> bus unsubscribe
}

func newConnection(hub *Hub, conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, hub.cfg.GatewaySendQueueSize),
		done: make(chan struct{}),
		log:  logger,
		subs: make(map[string]func()),
	}
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) UserID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) nextSeq() int64 {
	return c.seq.Add(1)
}

// readPump reads frames from the WebSocket connection and routes them by type. It runs in its own goroutine and
// is responsible for tearing down the connection (unregistering it and closing every scope subscription) when the
// read loop exits, however it exits.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	heartbeatInterval := time.Duration(c.hub.cfg.GatewayHeartbeatIntervalMS) * time.Millisecond
	deadline := heartbeatInterval * time.Duration(c.hub.cfg.GatewayHeartbeatMissedMax)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(authTimeout))

	authTimer := time.AfterFunc(authTimeout, func() {
		if !c.IsAuthenticated() {
			c.log.Debug().Msg("connection did not authenticate in time")
			c.closeWithCode(wire.CloseAuthFailed, "auth timeout")
		}
	})
	defer authTimer.Stop()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		if c.IsAuthenticated() {
			allowed, _, rlErr := c.hub.frameLimiter.Allow(context.Background(), frameLimiterCategory, "", c.UserID().String())
			if rlErr == nil && !allowed {
				c.closeWithCode(wire.CloseProtocolError, "rate limited")
				return
			}
		}

		var frame wire.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.closeWithCode(wire.CloseProtocolError, "invalid frame")
			return
		}

		switch frame.Type {
		case wire.TypeAuth:
			authTimer.Stop()
			c.handleAuth(frame.Payload)
		case wire.TypeHeartbeat:
			_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
			c.handleHeartbeat()
		case wire.TypeSubscribe:
			c.handleSubscribe(frame.Payload)
		case wire.TypeUnsubscribe:
			c.handleUnsubscribe(frame.Payload)
		default:
			c.closeWithCode(wire.CloseProtocolError, "unknown frame type")
			return
		}
	}
}

// writePump writes messages from the send channel to the WebSocket connection. It exits when done is closed,
// draining any already-buffered messages first so the client receives them before the socket closes.
func (c *Connection) writePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Connection) handleAuth(payload json.RawMessage) {
	if c.IsAuthenticated() {
		c.closeWithCode(wire.CloseProtocolError, "already authenticated")
		return
	}

	var p authPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Token == "" {
		c.closeWithCode(wire.CloseAuthFailed, "token required")
		return
	}

	c.hub.authenticate(c, p.Token, p.DeviceID)
}

func (c *Connection) handleHeartbeat() {
	ack, err := newHeartbeatAckFrame()
	if err != nil {
		c.log.Error().Err(err).Msg("failed to build heartbeat ack")
		return
	}
	c.enqueue(ack)
}

func (c *Connection) handleSubscribe(payload json.RawMessage) {
	if !c.IsAuthenticated() {
		c.closeWithCode(wire.CloseAuthFailed, "not authenticated")
		return
	}

	var p subscribePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Scope == "" {
		c.closeWithCode(wire.CloseProtocolError, "invalid subscribe payload")
		return
	}

	c.hub.subscribe(c, p.Scope)
}

func (c *Connection) handleUnsubscribe(payload json.RawMessage) {
	if !c.IsAuthenticated() {
		c.closeWithCode(wire.CloseAuthFailed, "not authenticated")
		return
	}

	var p subscribePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Scope == "" {
		c.closeWithCode(wire.CloseProtocolError, "invalid unsubscribe payload")
		return
	}

	c.unsubscribe(p.Scope)
}

// unsubscribe tears down one scope subscription. Safe to call for a scope the connection never subscribed to.
func (c *Connection) unsubscribe(scope string) {
	c.subsMu.Lock()
	cancel, ok := c.subs[scope]
	if ok {
		delete(c.subs, scope)
	}
	c.subsMu.Unlock()
	if ok {
		cancel()
	}
}

// unsubscribeAll tears down every scope subscription this connection holds. Called once, on teardown.
func (c *Connection) unsubscribeAll() {
	c.subsMu.Lock()
	cancels := make([]func(), 0, len(c.subs))
	for scope, cancel := range c.subs {
		cancels = append(cancels, cancel)
		delete(c.subs, scope)
	}
	c.subsMu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// enqueue writes a frame to the connection's send buffer. If the buffer is full the connection is dropped with a
// backpressure close code (spec §4.6): a slow client must not hold up fan-out to everyone else.
func (c *Connection) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Warn().Str("connection_id", c.id).Msg("send buffer full, closing connection")
		c.closeWithCode(wire.CloseBackpressure, "backpressure")
	}
}

func (c *Connection) closeWithCode(code int, reason string) {
	c.closeSend()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}
