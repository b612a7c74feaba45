package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

// helloPayload carries the heartbeat interval the client must ping at, per spec §4.6.
type helloPayload struct {
	HeartbeatIntervalMS int `json:"heartbeat_interval_ms"`
}

// readyPayload is sent once after a successful auth frame, mirroring the data a client needs to render its
// initial state without a resume path: reconnection is always a fresh connection (spec §4.6), so this is the
// only bootstrap a client ever gets.
type readyPayload struct {
	UserID string `json:"user_id"`
}

// subscribePayload is the client->server subscribe/unsubscribe frame body.
type subscribePayload struct {
	Scope string `json:"scope"`
}

// authPayload is the client->server first-frame body carrying the bearer token.
type authPayload struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

func marshalFrame(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", frameType, err)
	}
	return json.Marshal(wire.Frame{Type: frameType, Payload: raw})
}

func newHelloFrame(heartbeatIntervalMS int) ([]byte, error) {
	return marshalFrame(wire.TypeHello, helloPayload{HeartbeatIntervalMS: heartbeatIntervalMS})
}

func newReadyFrame(userID string) ([]byte, error) {
	return marshalFrame(wire.TypeReady, readyPayload{UserID: userID})
}

func newHeartbeatAckFrame() ([]byte, error) {
	return marshalFrame(wire.TypeHeartbeatAck, struct{}{})
}

func newErrorFrame(code wire.Code, message string) ([]byte, error) {
	return marshalFrame(wire.TypeError, wire.ErrorBody{Code: code, Message: message})
}

// newDispatchFrame wraps a bus envelope as a sequenced, scope-addressed dispatch frame for one connection. seq is
// assigned by the caller from the connection's own monotonic counter at delivery time.
func newDispatchFrame(scope string, seq int64, env wire.BusEnvelope) ([]byte, error) {
	dispatch := wire.DispatchEnvelope{
		Event:          env.Event,
		Scope:          scope,
		Seq:            seq,
		OriginDeviceID: env.OriginDeviceID,
		Data:           env.Data,
	}
	return marshalFrame(wire.TypeDispatch, dispatch)
}
