package gateway

import (
	"encoding/json"
	"testing"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

func decodeFrame(t *testing.T, raw []byte) wire.Frame {
	t.Helper()
	var f wire.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return f
}

func TestNewHelloFrameCarriesHeartbeatInterval(t *testing.T) {
	t.Parallel()
	raw, err := newHelloFrame(30000)
	if err != nil {
		t.Fatalf("newHelloFrame() error = %v", err)
	}

	f := decodeFrame(t, raw)
	if f.Type != wire.TypeHello {
		t.Errorf("Type = %q, want %q", f.Type, wire.TypeHello)
	}

	var payload helloPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.HeartbeatIntervalMS != 30000 {
		t.Errorf("HeartbeatIntervalMS = %d, want 30000", payload.HeartbeatIntervalMS)
	}
}

func TestNewReadyFrameCarriesUserID(t *testing.T) {
	t.Parallel()
	raw, err := newReadyFrame("user-123")
	if err != nil {
		t.Fatalf("newReadyFrame() error = %v", err)
	}

	f := decodeFrame(t, raw)
	if f.Type != wire.TypeReady {
		t.Errorf("Type = %q, want %q", f.Type, wire.TypeReady)
	}

	var payload readyPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", payload.UserID, "user-123")
	}
}

func TestNewHeartbeatAckFrameType(t *testing.T) {
	t.Parallel()
	raw, err := newHeartbeatAckFrame()
	if err != nil {
		t.Fatalf("newHeartbeatAckFrame() error = %v", err)
	}
	if f := decodeFrame(t, raw); f.Type != wire.TypeHeartbeatAck {
		t.Errorf("Type = %q, want %q", f.Type, wire.TypeHeartbeatAck)
	}
}

func TestNewErrorFrameCarriesCodeAndMessage(t *testing.T) {
	t.Parallel()
	raw, err := newErrorFrame(wire.CodeForbidden, "not authorized for scope channel:1")
	if err != nil {
		t.Fatalf("newErrorFrame() error = %v", err)
	}

	f := decodeFrame(t, raw)
	if f.Type != wire.TypeError {
		t.Errorf("Type = %q, want %q", f.Type, wire.TypeError)
	}

	var body wire.ErrorBody
	if err := json.Unmarshal(f.Payload, &body); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if body.Code != wire.CodeForbidden {
		t.Errorf("Code = %q, want %q", body.Code, wire.CodeForbidden)
	}
	if body.Message == "" {
		t.Error("Message is empty, want a human-readable reason")
	}
}

func TestNewDispatchFrameCarriesScopeSeqAndOrigin(t *testing.T) {
	t.Parallel()
	device := "device-a"
	env := wire.BusEnvelope{
		Event:          wire.EventMessageNew,
		OriginDeviceID: &device,
		Data:           json.RawMessage(`{"id":"m1"}`),
	}

	raw, err := newDispatchFrame(wire.ScopeChannel("c1"), 7, env)
	if err != nil {
		t.Fatalf("newDispatchFrame() error = %v", err)
	}

	f := decodeFrame(t, raw)
	if f.Type != wire.TypeDispatch {
		t.Errorf("Type = %q, want %q", f.Type, wire.TypeDispatch)
	}

	var dispatch wire.DispatchEnvelope
	if err := json.Unmarshal(f.Payload, &dispatch); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if dispatch.Event != wire.EventMessageNew {
		t.Errorf("Event = %q, want %q", dispatch.Event, wire.EventMessageNew)
	}
	if dispatch.Scope != wire.ScopeChannel("c1") {
		t.Errorf("Scope = %q, want %q", dispatch.Scope, wire.ScopeChannel("c1"))
	}
	if dispatch.Seq != 7 {
		t.Errorf("Seq = %d, want 7", dispatch.Seq)
	}
	if dispatch.OriginDeviceID == nil || *dispatch.OriginDeviceID != device {
		t.Errorf("OriginDeviceID = %v, want %q", dispatch.OriginDeviceID, device)
	}
}
