package call

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// callPayload is the data carried on every call.* dispatch event.
type callPayload struct {
	CallID    uuid.UUID `json:"call_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Reason    EndReason `json:"reason,omitempty"`
}

// callStore is the persistence surface Service needs; *Store satisfies it against Postgres, and tests substitute
// an in-memory fake to exercise the state machine without a database.
type callStore interface {
	ChannelParticipants(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error)
	ActiveCallForChannel(ctx context.Context, channelID uuid.UUID) (*Call, error)
	Create(ctx context.Context, channelID, initiatorID uuid.UUID, members []uuid.UUID) (*Call, error)
	Get(ctx context.Context, callID uuid.UUID) (*Call, error)
	SetStatus(ctx context.Context, callID uuid.UUID, status Status) error
	MarkJoined(ctx context.Context, callID, userID uuid.UUID) error
	MarkLeft(ctx context.Context, callID, userID uuid.UUID) error
	ActiveParticipantCount(ctx context.Context, callID uuid.UUID) (int, error)
	RemainingUndeclinedCount(ctx context.Context, callID uuid.UUID) (int, error)
}

// Service runs the call state machine: Start/Accept/Decline/Leave/timeout, each publishing its dispatch event to
// the channel's dm:{id} scope (or, for the initial ring, to every participant's own user:{id} scope so a
// not-yet-focused client still gets notified) via internal/bus.
type Service struct {
	store callStore
	bus   *bus.Bus
	log   zerolog.Logger
}

// NewService creates a call control service over a store and the shared event bus.
func NewService(store *Store, b *bus.Bus, logger zerolog.Logger) *Service {
	return &Service{store: store, bus: b, log: logger}
}

// Start begins a new call on a dm/group_dm channel: creates a ringing Call with a Participant row for every
// channel member, marks the initiator as joined so that only the other members are left to accept or decline,
// and publishes call.incoming to each participant's user:{id} scope per spec §4.8. Returns ErrAlreadyRinging if
// the channel already has a live call.
func (s *Service) Start(ctx context.Context, channelID, initiatorID uuid.UUID) (*Call, error) {
	existing, err := s.store.ActiveCallForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyRinging
	}

	members, err := s.store.ChannelParticipants(ctx, channelID)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Create(ctx, channelID, initiatorID, members)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkJoined(ctx, c.ID, initiatorID); err != nil {
		return nil, err
	}

	payload := callPayload{CallID: c.ID, ChannelID: channelID}
	for _, userID := range members {
		if err := s.bus.Publish(ctx, wire.ScopeUser(userID.String()), wire.EventCallIncoming, payload, nil); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to publish call.incoming")
		}
	}

	s.scheduleRingTimeout(c.ID)
	return c, nil
}

// Accept marks userID as joined. The first acceptance transitions the call to active and publishes call.started
// to the channel's dm:{id} scope; every acceptance (including the first) publishes call.participant_joined.
func (s *Service) Accept(ctx context.Context, callID, userID uuid.UUID) error {
	c, err := s.store.Get(ctx, callID)
	if err != nil {
		return err
	}
	if c.Status != StatusRinging && c.Status != StatusActive {
		return ErrNotRinging
	}

	if err := s.store.MarkJoined(ctx, callID, userID); err != nil {
		return err
	}

	if c.Status == StatusRinging {
		if err := s.store.SetStatus(ctx, callID, StatusActive); err != nil {
			return err
		}
		if err := s.bus.Publish(ctx, wire.ScopeDM(c.ChannelID.String()), wire.EventCallStarted,
			callPayload{CallID: callID, ChannelID: c.ChannelID, UserID: userID}, nil); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish call.started")
		}
	}

	return s.publishToChannel(ctx, c.ChannelID, wire.EventCallParticipantJoined, callPayload{
		CallID: callID, ChannelID: c.ChannelID, UserID: userID,
	})
}

// Decline marks userID as having declined without joining and propagates the decline to that user's other
// devices via user:{id} in addition to dm:{id}, per spec §4.8's cross-device decline requirement. If every
// participant has now either declined or never will join, the call ends with reason decline.
func (s *Service) Decline(ctx context.Context, callID, userID uuid.UUID) error {
	c, err := s.store.Get(ctx, callID)
	if err != nil {
		return err
	}
	if c.Status != StatusRinging {
		return ErrNotRinging
	}

	if err := s.store.MarkLeft(ctx, callID, userID); err != nil {
		return err
	}

	payload := callPayload{CallID: callID, ChannelID: c.ChannelID, UserID: userID}
	if err := s.publishToChannel(ctx, c.ChannelID, wire.EventCallDeclined, payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish call.declined to channel")
	}
	if err := s.bus.Publish(ctx, wire.ScopeUser(userID.String()), wire.EventCallDeclined, payload, nil); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish call.declined to user")
	}

	remaining, err := s.store.RemainingUndeclinedCount(ctx, callID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.end(ctx, c, ReasonDecline)
	}
	return nil
}

// Leave marks userID as having left an active call. If they were the last active participant, the call ends
// with reason hangup.
func (s *Service) Leave(ctx context.Context, callID, userID uuid.UUID) error {
	c, err := s.store.Get(ctx, callID)
	if err != nil {
		return err
	}
	if c.Status != StatusActive {
		return ErrNotActive
	}

	if err := s.store.MarkLeft(ctx, callID, userID); err != nil {
		return err
	}

	if err := s.publishToChannel(ctx, c.ChannelID, wire.EventCallParticipantLeft, callPayload{
		CallID: callID, ChannelID: c.ChannelID, UserID: userID,
	}); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish call.participant_left")
	}

	remaining, err := s.store.ActiveParticipantCount(ctx, callID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.end(ctx, c, ReasonHangup)
	}
	return nil
}

// scheduleRingTimeout ends the call with reason timeout if it is still ringing after RingTimeout. Run from its
// own goroutine rather than a persisted job since a gateway restart mid-ring simply drops the timer; the caller
// refetches call state via REST on reconnect per spec §4.6 and sees it still ringing or already ended.
func (s *Service) scheduleRingTimeout(callID uuid.UUID) {
	go func() {
		time.Sleep(RingTimeout)
		ctx := context.Background()
		c, err := s.store.Get(ctx, callID)
		if err != nil {
			s.log.Warn().Err(err).Str("call_id", callID.String()).Msg("failed to load call for ring timeout")
			return
		}
		if c.Status != StatusRinging {
			return
		}
		if err := s.end(ctx, c, ReasonTimeout); err != nil {
			s.log.Warn().Err(err).Str("call_id", callID.String()).Msg("failed to end timed-out call")
		}
	}()
}

// end transitions a call to ended and publishes call.ended to its channel scope.
func (s *Service) end(ctx context.Context, c *Call, reason EndReason) error {
	if err := s.store.SetStatus(ctx, c.ID, StatusEnded); err != nil {
		return err
	}
	return s.publishToChannel(ctx, c.ChannelID, wire.EventCallEnded, callPayload{
		CallID: c.ID, ChannelID: c.ChannelID, Reason: reason,
	})
}

func (s *Service) publishToChannel(ctx context.Context, channelID uuid.UUID, event wire.DispatchEvent, payload callPayload) error {
	if err := s.bus.Publish(ctx, wire.ScopeDM(channelID.String()), event, payload, nil); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}
