// Package call implements Call Control (spec §4.8): DM/group-DM call initiation, separate from the persistent
// voice rooms internal/voice manages for guild voice channels. A call is a short-lived ringing/active/ended
// state machine scoped to one dm or group_dm channel.
package call

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RingTimeout is how long a call stays in Ringing before it auto-ends with ReasonTimeout, per spec §4.8.
const RingTimeout = 45 * time.Second

// Status is a call's position in its state machine: idle -> ringing -> active -> ended, or
// ringing -> ended directly if every participant declines or the ring times out.
type Status string

const (
	StatusRinging Status = "ringing"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// EndReason records why a call ended, carried on the call.ended event.
type EndReason string

const (
	ReasonHangup  EndReason = "hangup"
	ReasonDecline EndReason = "decline"
	ReasonTimeout EndReason = "timeout"
	ReasonError   EndReason = "error"
)

var (
	// ErrNotRinging is returned when Decline is called on a call that has already left the ringing state
	// (already active, or already ended), or when Accept is called on a call that has already ended.
	ErrNotRinging = errors.New("call: not in ringing state")
	// ErrNotActive is returned when Leave is called on a call that never became active.
	ErrNotActive = errors.New("call: not active")
	// ErrAlreadyRinging is returned when Start is called against a channel that already has a live call.
	ErrAlreadyRinging = errors.New("call: channel already has a call in progress")
)

// Call is one call lifecycle over a dm or group_dm channel.
type Call struct {
	ID          uuid.UUID
	ChannelID   uuid.UUID
	InitiatorID uuid.UUID
	Status      Status
	StartedAt   time.Time
	EndedAt     *time.Time
}

// Participant is one user's membership in a call: when they joined (accepted) and when they left. A participant
// who declines without ever joining has LeftAt set and JoinedAt nil, the same shape call_participants uses for
// anyone who leaves an active call, since the schema has no separate declined flag.
type Participant struct {
	CallID   uuid.UUID
	UserID   uuid.UUID
	JoinedAt *time.Time
	LeftAt   *time.Time
}

// Declined reports whether this participant left the call without ever joining it.
func (p Participant) Declined() bool {
	return p.JoinedAt == nil && p.LeftAt != nil
}
