package voice

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/bus"
)

// Manager owns every live voice room, lazily creating one per channel on first join and tearing it down once the
// last participant leaves. It is the package's public entry point; internal/gateway's frame handlers call straight
// through to it for every voice.* client action.
type Manager struct {
	api       *webrtc.API
	bus       *bus.Bus
	store     *Store
	log       zerolog.Logger
	userLimit int

	mu    sync.Mutex
	rooms map[string]*room
	// inVoice tracks which channel each user currently occupies, so a join to a second channel forces a leave
	// from the first rather than leaving the user double-counted against two rooms' limits.
	inVoice map[string]string
}

// NewManager builds a Manager restricted to the given ephemeral UDP port range, matching the range operators open
// on the firewall (spec §6). store may be nil, in which case stats aggregation still happens and still publishes
// voice.user_stats, but nothing is persisted across a gateway restart.
func NewManager(portMin, portMax, userLimit int, b *bus.Bus, store *Store, logger zerolog.Logger) (*Manager, error) {
	api, err := newSettingEngineAPI(portMin, portMax)
	if err != nil {
		return nil, err
	}
	return &Manager{
		api:       api,
		bus:       b,
		store:     store,
		log:       logger,
		userLimit: userLimit,
		rooms:     make(map[string]*room),
		inVoice:   make(map[string]string),
	}, nil
}

func (m *Manager) roomFor(channelID string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[channelID]
	if !ok {
		r = newRoom(channelID, m.userLimit, m.api, m.bus, m.store, m.log)
		m.rooms[channelID] = r
	}
	return r
}

// Join places userID into channelID's voice room, returning the SDP offer the client must answer. A user already
// in a different voice channel is first removed from it, per spec §4.7's "a user may be in at most one voice
// channel at a time".
func (m *Manager) Join(ctx context.Context, channelID, userID, deviceID string) (webrtc.SessionDescription, error) {
	m.mu.Lock()
	if prev, ok := m.inVoice[userID]; ok && prev != channelID {
		m.mu.Unlock()
		if err := m.Leave(ctx, prev, userID); err != nil {
			return webrtc.SessionDescription{}, ErrAlreadyInVoice
		}
	} else {
		m.mu.Unlock()
	}

	r := m.roomFor(channelID)
	reply := make(chan roomCmdResult, 1)
	select {
	case r.cmds <- roomCmd{kind: cmdJoin, userID: userID, deviceID: deviceID, reply: reply}:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}

	select {
	case res := <-reply:
		if res.err != nil {
			return webrtc.SessionDescription{}, res.err
		}
		m.mu.Lock()
		m.inVoice[userID] = channelID
		m.mu.Unlock()
		return res.offer, nil
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
}

// Leave removes userID from channelID's voice room and tears the room down once it is empty.
func (m *Manager) Leave(ctx context.Context, channelID, userID string) error {
	m.mu.Lock()
	r, ok := m.rooms[channelID]
	m.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}

	reply := make(chan roomCmdResult, 1)
	select {
	case r.cmds <- roomCmd{kind: cmdLeave, userID: userID, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-reply:
		m.mu.Lock()
		if m.inVoice[userID] == channelID {
			delete(m.inVoice, userID)
		}
		if r.isEmpty() {
			delete(m.rooms, channelID)
		}
		m.mu.Unlock()
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Answer delivers a client's SDP answer for the offer it received from Join.
func (m *Manager) Answer(ctx context.Context, channelID, userID string, answer webrtc.SessionDescription) error {
	return m.dispatch(ctx, channelID, roomCmd{kind: cmdAnswer, userID: userID, sdp: answer})
}

// AddICECandidate delivers one trickled ICE candidate from the client.
func (m *Manager) AddICECandidate(ctx context.Context, channelID, userID string, cand webrtc.ICECandidateInit) error {
	return m.dispatch(ctx, channelID, roomCmd{kind: cmdICE, userID: userID, cand: cand})
}

// SetMuted updates a participant's mute state and publishes voice.user_muted/unmuted.
func (m *Manager) SetMuted(ctx context.Context, channelID, userID string, muted bool) error {
	return m.dispatch(ctx, channelID, roomCmd{kind: cmdMute, userID: userID, muted: muted})
}

// PushStats feeds one client-reported quality sample into the room's per-user aggregator (spec §4.7's rate-limited
// stats ingest); handleStat publishes voice.user_stats itself once StatsWindow has elapsed.
func (m *Manager) PushStats(ctx context.Context, channelID, userID string, sample StatSample) error {
	m.mu.Lock()
	r, ok := m.rooms[channelID]
	m.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}
	select {
	case r.cmds <- roomCmd{kind: cmdStat, userID: userID, sample: sample}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch sends a command expecting a roomCmdResult reply and waits for it.
func (m *Manager) dispatch(ctx context.Context, channelID string, cmd roomCmd) error {
	m.mu.Lock()
	r, ok := m.rooms[channelID]
	m.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}

	reply := make(chan roomCmdResult, 1)
	cmd.reply = reply
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-reply:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseRoom force-closes channelID's room, used when an SFU failure takes down every participant at once (spec
// §4.7: "on SFU crash, clients observe voice.user_left for every participant plus a room-closed event").
func (m *Manager) CloseRoom(channelID, reason string) {
	m.mu.Lock()
	r, ok := m.rooms[channelID]
	if ok {
		delete(m.rooms, channelID)
		for userID, ch := range m.inVoice {
			if ch == channelID {
				delete(m.inVoice, userID)
			}
		}
	}
	m.mu.Unlock()
	if ok {
		r.closeAll(reason)
	}
}
