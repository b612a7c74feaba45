package voice

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// sfuPeer is the subset of a webrtc.PeerConnection a Room needs: create the initial offer, accept the client's
// answer, exchange trickled ICE candidates, and relay RTP to and from the rest of the room. Captured as an
// interface so tests can substitute a fake and exercise room membership/limit logic without opening real
// ICE/DTLS sessions.
type sfuPeer interface {
	Offer() (webrtc.SessionDescription, error)
	SetAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	// OnICECandidate registers the callback invoked for every locally trickled candidate.
	OnICECandidate(f func(webrtc.ICECandidateInit))
	// OnClosed registers the callback invoked when the underlying connection fails or closes unexpectedly
	// (spec's SFU-crash case), so the room can force the participant out and emit voice.user_left.
	OnClosed(f func())
	Close() error
}

// pionPeer is the production sfuPeer backed by a real webrtc.PeerConnection. Audio/video received from this
// participant is written to every other participant's corresponding outbound track by the owning Room; this peer
// itself only knows about its own connection, not its roommates.
type pionPeer struct {
	pc *webrtc.PeerConnection

	mu          sync.Mutex
	onTrackFunc func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// newPionPeer creates a peer connection via api, registers transceivers for one audio and one video track (the
// client may decline video by never negotiating it), and wires OnTrack to fan inbound media out to onTrack.
func newPionPeer(api *webrtc.API, onTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) (*pionPeer, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSFUUnavailable, err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: add audio transceiver: %w", ErrSFUUnavailable, err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: add video transceiver: %w", ErrSFUUnavailable, err)
	}

	p := &pionPeer{pc: pc, onTrackFunc: onTrack}
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		p.mu.Lock()
		fn := p.onTrackFunc
		p.mu.Unlock()
		if fn != nil {
			fn(track, receiver)
		}
	})
	return p, nil
}

// Offer creates and sets the local description, returning the SDP offer the client must answer.
func (p *pionPeer) Offer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return offer, nil
}

func (p *pionPeer) SetAnswer(answer webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (p *pionPeer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		f(c.ToJSON())
	})
}

func (p *pionPeer) OnClosed(f func()) {
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			f()
		}
	})
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

// newSettingEngineAPI builds a webrtc.API restricted to the configured ephemeral UDP port range, so every SFU
// connection on the process stays within the firewall-opened range operators are told to expose (spec §6).
func newSettingEngineAPI(portMin, portMax int) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if err := se.SetEphemeralUDPPortRange(uint16(portMin), uint16(portMax)); err != nil {
		return nil, fmt.Errorf("%w: set udp port range: %w", ErrSFUUnavailable, err)
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se)), nil
}
