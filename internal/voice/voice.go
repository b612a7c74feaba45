// Package voice implements Voice Signaling & SFU Control (spec §4.7): each guild voice channel gets a VoiceRoom
// that owns one SFU peer connection per participant, relays offer/answer and trickle ICE through the gateway's
// voice:{channel_id} scope, and forwards RTP between participants. Media is never terminated end-to-end (transport
// security is DTLS-SRTP only); there is no mixing and no E2EE voice, matching the spec's explicit Non-goals.
package voice

import (
	"errors"
	"time"
)

// StatsWindow is the minimum spacing between voice.user_stats publications for a single user (spec §4.7);
// samples arriving faster than this are aggregated rather than dropped.
const StatsWindow = 3 * time.Second

var (
	// ErrRoomFull is returned when a channel's user_limit has already been reached.
	ErrRoomFull = errors.New("voice: room is full")
	// ErrAlreadyInVoice is returned if a forced leave of the caller's previous room fails partway through a
	// channel switch, leaving the caller's membership state ambiguous; ordinarily a second Join just moves the
	// caller to the new room.
	ErrAlreadyInVoice = errors.New("voice: already in another voice channel")
	// ErrNotInRoom is returned when Leave, Mute, or a signaling message names a room the caller never joined.
	ErrNotInRoom = errors.New("voice: not in this voice channel")
	// ErrSFUUnavailable is returned when the underlying peer connection factory fails, e.g. no free ports left
	// in the configured ephemeral UDP range.
	ErrSFUUnavailable = errors.New("voice: sfu unavailable")
)

// Participant is one user's membership in a voice room.
type Participant struct {
	UserID   string
	DeviceID string
	Muted    bool
	JoinedAt time.Time
}

// RoomSnapshot is the payload of a voice.room_state event: every current participant and their mute state.
type RoomSnapshot struct {
	ChannelID    string        `json:"channel_id"`
	Participants []Participant `json:"participants"`
}

// StatSample is one second of client-reported WebRTC quality metrics (spec §4.7's stats ingest).
type StatSample struct {
	LatencyMS     float64 `json:"latency_ms"`
	PacketLossPct float64 `json:"packet_loss_pct"`
	JitterMS      float64 `json:"jitter_ms"`
	QualityScore  float64 `json:"quality_score"`
}
