package voice

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// signalPayload carries one signaling message through voice:{channel_id}. ToUserID addresses it to one
// participant's own peer connection; every other subscriber on the shared scope discards it. This keeps offer/
// answer/ICE trickle on the single channel-wide scope the spec names, rather than requiring a second per-user
// scope for what is, per connection, strictly one-to-one signaling.
type signalPayload struct {
	ChannelID string                     `json:"channel_id"`
	ToUserID  string                     `json:"to_user_id"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// roomParticipant tracks one joined user's peer connection and the local tracks relaying their published media
// to the rest of the room.
type roomParticipant struct {
	userID   string
	deviceID string
	peer     sfuPeer
	muted    bool
	joinedAt time.Time
	tracks   []*webrtc.TrackLocalStaticRTP
	stats    *statAggregator
}

// room owns every participant and peer connection for one voice channel. All mutation passes through its single
// run goroutine via cmds, so RTP forwarding state never needs a lock (spec §5: "voice rooms are owned by a single
// task per channel; external mutations pass through a channel-per-room").
type room struct {
	channelID string
	userLimit int
	bus       *bus.Bus
	store     *Store
	log       zerolog.Logger

	// newPeer builds the sfuPeer for a freshly joining participant. Defaults to a real pionPeer bound to api;
	// tests substitute a fake so room membership/limit/mute/leave logic runs without opening ICE/DTLS sessions.
	newPeer func(onTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) (sfuPeer, error)

	participants map[string]*roomParticipant
	cmds         chan roomCmd
	done         chan struct{}
}

type roomCmd struct {
	kind     string
	userID   string
	deviceID string
	sdp      webrtc.SessionDescription
	cand     webrtc.ICECandidateInit
	muted    bool
	sample   StatSample
	track    *webrtc.TrackRemote
	reply    chan roomCmdResult
}

type roomCmdResult struct {
	offer webrtc.SessionDescription
	err   error
}

const (
	cmdJoin   = "join"
	cmdLeave  = "leave"
	cmdAnswer = "answer"
	cmdICE    = "ice"
	cmdMute   = "mute"
	cmdStat   = "stat"
	cmdTrack  = "track"
)

func newRoom(channelID string, userLimit int, api *webrtc.API, b *bus.Bus, store *Store, log zerolog.Logger) *room {
	r := &room{
		channelID: channelID,
		userLimit: userLimit,
		bus:       b,
		store:     store,
		log:       log.With().Str("channel_id", channelID).Logger(),
		newPeer: func(onTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) (sfuPeer, error) {
			return newPionPeer(api, onTrack)
		},
		participants: make(map[string]*roomParticipant),
		cmds:         make(chan roomCmd, 32),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *room) run() {
	for cmd := range r.cmds {
		switch cmd.kind {
		case cmdJoin:
			offer, err := r.handleJoin(cmd.userID, cmd.deviceID)
			cmd.reply <- roomCmdResult{offer: offer, err: err}
		case cmdLeave:
			err := r.handleLeave(cmd.userID, ReasonLeaveExplicit)
			if cmd.reply != nil {
				cmd.reply <- roomCmdResult{err: err}
			}
		case cmdAnswer:
			err := r.handleAnswer(cmd.userID, cmd.sdp)
			cmd.reply <- roomCmdResult{err: err}
		case cmdICE:
			err := r.handleICE(cmd.userID, cmd.cand)
			cmd.reply <- roomCmdResult{err: err}
		case cmdMute:
			err := r.handleMute(cmd.userID, cmd.muted)
			cmd.reply <- roomCmdResult{err: err}
		case cmdStat:
			r.handleStat(cmd.userID, cmd.sample)
		case cmdTrack:
			r.handleTrack(cmd.userID, cmd.track)
		}
	}
	close(r.done)
}

// leaveReason distinguishes an explicit Leave call from a forced removal on peer-connection failure, for the
// log line only; both publish the same voice.user_left event per spec §4.7.
type leaveReason int

const (
	ReasonLeaveExplicit leaveReason = iota
	ReasonLeaveForced
)

func (r *room) handleJoin(userID, deviceID string) (webrtc.SessionDescription, error) {
	if existing, ok := r.participants[userID]; ok {
		// Re-join from the same user: treat as a reconnect of the same device rather than AlreadyInVoice, since
		// the client's own retry logic must be able to safely repeat a join that raced a dropped response.
		if existing.deviceID == deviceID {
			return existing.peer.Offer()
		}
	}
	if len(r.participants) >= r.userLimit {
		return webrtc.SessionDescription{}, ErrRoomFull
	}

	p := &roomParticipant{userID: userID, deviceID: deviceID, joinedAt: time.Now(), stats: newStatAggregator()}

	peer, err := r.newPeer(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		r.cmds <- roomCmd{kind: cmdTrack, userID: userID, track: track}
	})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	p.peer = peer

	peer.OnICECandidate(func(c webrtc.ICECandidateInit) {
		r.publishSignal(userID, wire.EventVoiceICECandidate, nil, &c)
	})
	peer.OnClosed(func() {
		r.cmds <- roomCmd{kind: cmdLeave, userID: userID}
	})

	offer, err := peer.Offer()
	if err != nil {
		peer.Close()
		return webrtc.SessionDescription{}, err
	}

	r.participants[userID] = p
	r.publish(wire.EventVoiceUserJoined, map[string]string{"user_id": userID, "device_id": deviceID})
	r.publishRoomState()
	return offer, nil
}

func (r *room) handleAnswer(userID string, answer webrtc.SessionDescription) error {
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	return p.peer.SetAnswer(answer)
}

func (r *room) handleICE(userID string, cand webrtc.ICECandidateInit) error {
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	return p.peer.AddICECandidate(cand)
}

func (r *room) handleMute(userID string, muted bool) error {
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	p.muted = muted
	event := wire.EventVoiceUserUnmuted
	if muted {
		event = wire.EventVoiceUserMuted
	}
	r.publish(event, map[string]string{"user_id": userID})
	return nil
}

func (r *room) handleStat(userID string, sample StatSample) {
	p, ok := r.participants[userID]
	if !ok {
		return
	}
	agg, ready := p.stats.Add(sample)
	if !ready {
		return
	}
	r.publish(wire.EventVoiceUserStats, map[string]any{"user_id": userID, "stats": agg})
	if r.store == nil {
		return
	}
	if err := r.store.RecordStats(context.Background(), r.channelID, agg); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("failed to persist voice stats")
	}
}

func (r *room) handleLeave(userID string, _ leaveReason) error {
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	p.peer.Close()
	delete(r.participants, userID)
	r.publish(wire.EventVoiceUserLeft, map[string]string{"user_id": userID})
	r.publishRoomState()
	return nil
}

// handleTrack runs on the room goroutine (reached only via the cmdTrack command posted from a peer's OnTrack
// callback, which itself fires on pion's own goroutine) so it may touch r.participants directly. It creates one
// local relay track per inbound remote track and adds it as a sender on every other participant's connection;
// the actual packet copy loop below touches only the two track objects, never room state, so it needs no
// synchronization with the room goroutine.
func (r *room) handleTrack(fromUserID string, track *webrtc.TrackRemote) {
	p, ok := r.participants[fromUserID]
	if !ok {
		return
	}

	local, err := webrtc.NewTrackLocalStaticRTP(track.Codec().RTPCodecCapability, track.ID(), fromUserID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", fromUserID).Msg("failed to create local relay track")
		return
	}
	p.tracks = append(p.tracks, local)

	for userID, other := range r.participants {
		if userID == fromUserID {
			continue
		}
		if pionP, ok := other.peer.(*pionPeer); ok {
			if _, err := pionP.pc.AddTrack(local); err != nil {
				r.log.Warn().Err(err).Str("user_id", userID).Msg("failed to add relay track to peer")
			}
		}
	}

	go relayRTP(track, local)
}

// relayRTP copies RTP packets from a remote track to its local relay track until either end closes. It never
// touches room state, so it is safe to run outside the room's single-writer goroutine.
func relayRTP(track *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		if _, err := local.Write(buf[:n]); err != nil {
			return
		}
	}
}

func (r *room) publish(event wire.DispatchEvent, data any) {
	if err := r.bus.Publish(context.Background(), wire.ScopeVoice(r.channelID), event, data, nil); err != nil {
		r.log.Warn().Err(err).Str("event", string(event)).Msg("failed to publish voice event")
	}
}

func (r *room) publishSignal(userID string, event wire.DispatchEvent, sdp *webrtc.SessionDescription, cand *webrtc.ICECandidateInit) {
	r.publish(event, signalPayload{ChannelID: r.channelID, ToUserID: userID, SDP: sdp, Candidate: cand})
}

func (r *room) publishRoomState() {
	snapshot := RoomSnapshot{ChannelID: r.channelID}
	for _, p := range r.participants {
		snapshot.Participants = append(snapshot.Participants, Participant{
			UserID: p.userID, DeviceID: p.deviceID, Muted: p.muted, JoinedAt: p.joinedAt,
		})
	}
	r.publish(wire.EventVoiceRoomState, snapshot)
}

// closeAll force-closes every participant's peer connection and publishes voice.room_closed, used when the
// manager tears a room down on shutdown or the SFU factory starts failing for new joins.
func (r *room) closeAll(reason string) {
	for userID, p := range r.participants {
		p.peer.Close()
		r.publish(wire.EventVoiceUserLeft, map[string]string{"user_id": userID})
	}
	r.participants = make(map[string]*roomParticipant)
	r.publish(wire.EventVoiceRoomClosed, map[string]string{"channel_id": r.channelID, "reason": reason})
	close(r.cmds)
}

func (r *room) isEmpty() bool {
	return len(r.participants) == 0
}
