package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/domain/signal"
)

var (
	// ErrRoomRejected means the room already had two members. Not
	// retried; the caller may pick another room key.
	ErrRoomRejected = errors.New("room is full")

	// ErrProtocolViolation marks an out-of-order or malformed signaling
	// message. The session is not recoverable past it and must be
	// discarded; continuing risks a permanently wedged state machine.
	ErrProtocolViolation = errors.New("signaling protocol violation")

	// ErrMediaUnavailable is fatal for the call attempt: the local
	// device could not be acquired.
	ErrMediaUnavailable = errors.New("local media unavailable")

	ErrTransportClosed  = errors.New("signaling transport closed")
	ErrConnectionFailed = errors.New("peer connection failed")
)

// Sender pushes signaling messages toward the relay.
type Sender interface {
	Send(msg signal.Message) error
}

// Media is an acquired local media source.
type Media interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// MediaProvider acquires the local media source. May fail (device
// missing, permission denied); the failure aborts the call attempt.
type MediaProvider func(ctx context.Context) (Media, error)

type eventKind int

const (
	evtNegotiationNeeded eventKind = iota
	evtLocalCandidate
	evtRemoteTrack
	evtConnState
)

// connEvent carries connection-object callbacks into the session loop so
// every state mutation happens on one goroutine, in a defined order.
type connEvent struct {
	kind      eventKind
	candidate webrtc.ICECandidateInit
	connState webrtc.PeerConnectionState
}

// Session drives the negotiation handshake for one two-party call. All
// signaling messages and connection events are processed sequentially by
// Run; nothing here is shared with other calls.
type Session struct {
	roomID  string
	sender  Sender
	media   MediaProvider
	newConn PeerConnectionFactory

	mu       sync.Mutex
	state    State
	memberID string

	joined  bool
	isFirst bool

	pc         PeerConnection
	localMedia Media
	pending    candidateBuffer

	// remoteDescSet guards both directions of candidate traffic: remote
	// candidates buffer until it is true, local ones are suppressed.
	remoteDescSet bool
	offerSent     bool

	connEvents chan connEvent
	quit       chan struct{}
	loopDone   chan struct{}

	hangupOnce   sync.Once
	teardownOnce sync.Once
}

func NewSession(roomID string, sender Sender, media MediaProvider, newConn PeerConnectionFactory) *Session {
	return &Session{
		roomID:     roomID,
		sender:     sender,
		media:      media,
		newConn:    newConn,
		state:      StateIdle,
		connEvents: make(chan connEvent, 64),
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MemberID is the registry-assigned identity, empty until joined.
func (s *Session) MemberID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberID
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Hangup ends the call. Calling it more than once has the same effect as
// calling it once.
func (s *Session) Hangup() {
	s.hangupOnce.Do(func() {
		close(s.quit)
	})
}

// Run joins the room and processes events until the call ends. It
// returns nil on graceful termination (hangup, peer left) and an error
// for rejection, media failure, protocol violations, or transport loss.
func (s *Session) Run(ctx context.Context, incoming <-chan signal.Message) error {
	defer s.teardown()

	if err := s.sender.Send(signal.Message{Intent: signal.IntentJoin, RoomID: s.roomID}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.quit:
			return nil

		case msg, ok := <-incoming:
			if !ok {
				// Relay connection dropped mid-call: terminate, no
				// automatic reconnect.
				return ErrTransportClosed
			}
			done, err := s.handleSignal(ctx, msg)
			if err != nil || done {
				return err
			}

		case ev := <-s.connEvents:
			if err := s.handleConnEvent(ev); err != nil {
				return err
			}
		}
	}
}

// handleSignal processes one relay message. done=true ends the call
// gracefully.
func (s *Session) handleSignal(ctx context.Context, msg signal.Message) (done bool, err error) {
	switch msg.Intent {
	case signal.IntentJoined:
		if s.joined {
			return false, s.violation("duplicate joined message")
		}
		s.joined = true
		s.isFirst = msg.IsFirst
		s.mu.Lock()
		s.memberID = msg.ID
		s.mu.Unlock()
		slog.Info("joined room",
			slog.String(constant.RoomID, s.roomID),
			slog.String(constant.MemberID, msg.ID),
			slog.Bool("is_first", msg.IsFirst),
		)
		return false, nil

	case signal.IntentRejected:
		slog.Info("join rejected, room already full", slog.String(constant.RoomID, s.roomID))
		return false, ErrRoomRejected

	case signal.IntentPeerJoined:
		// The first joiner stays passive here and waits for the offer.
		slog.Info("peer joined",
			slog.String(constant.RoomID, s.roomID),
			slog.Any("participants", msg.Participants),
		)
		return false, nil

	case signal.IntentCreateOffer:
		if !s.joined {
			return false, s.violation("create_offer before joined")
		}
		if s.isFirst {
			return false, s.violation("create_offer addressed to the first joiner")
		}
		// The connection's own negotiation-needed signal produces the
		// offer once media is attached.
		return false, s.ensureConnection(ctx)

	case signal.IntentOffer:
		if !s.joined {
			return false, s.violation("offer before joined")
		}
		if !s.isFirst {
			return false, s.violation("offer received by the offering side")
		}
		if msg.Description == nil {
			return false, s.violation("offer without description")
		}
		if err := s.ensureConnection(ctx); err != nil {
			return false, err
		}
		if err := s.applyRemoteDescription(*msg.Description); err != nil {
			return false, err
		}

		answer, err := s.pc.CreateAnswer()
		if err != nil {
			return false, fmt.Errorf("create answer: %w", err)
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			return false, fmt.Errorf("set local answer: %w", err)
		}
		if err := s.sender.Send(signal.Message{
			Intent:      signal.IntentAnswer,
			RoomID:      s.roomID,
			Description: &answer,
		}); err != nil {
			return false, fmt.Errorf("send answer: %w", err)
		}
		return false, nil

	case signal.IntentAnswer:
		if !s.joined || s.isFirst || !s.offerSent {
			return false, s.violation("answer without a prior local offer")
		}
		if msg.Description == nil {
			return false, s.violation("answer without description")
		}
		if s.remoteDescSet {
			return false, s.violation("duplicate answer")
		}
		return false, s.applyRemoteDescription(*msg.Description)

	case signal.IntentCandidate:
		if !s.joined {
			return false, s.violation("candidate before joined")
		}
		if msg.Candidate == nil {
			return false, s.violation("candidate without payload")
		}
		if s.pc != nil && s.remoteDescSet {
			if err := s.pc.AddICECandidate(*msg.Candidate); err != nil {
				slog.Warn("apply remote candidate",
					slog.Any(constant.Error, err),
					slog.String(constant.RoomID, s.roomID),
				)
			}
			return false, nil
		}
		s.pending.Push(*msg.Candidate)
		return false, nil

	case signal.IntentPeerLeft:
		slog.Info("peer left, ending call", slog.String(constant.RoomID, s.roomID))
		return true, nil

	default:
		return false, s.violation("unexpected intent %q", msg.Intent)
	}
}

func (s *Session) handleConnEvent(ev connEvent) error {
	switch ev.kind {
	case evtNegotiationNeeded:
		// Only the second joiner initiates, exactly once.
		if s.isFirst || s.pc == nil || s.offerSent {
			return nil
		}
		offer, err := s.pc.CreateOffer()
		if err != nil {
			return fmt.Errorf("create offer: %w", err)
		}
		if err := s.pc.SetLocalDescription(offer); err != nil {
			return fmt.Errorf("set local offer: %w", err)
		}
		s.offerSent = true
		if err := s.sender.Send(signal.Message{
			Intent:      signal.IntentOffer,
			RoomID:      s.roomID,
			Description: &offer,
		}); err != nil {
			return fmt.Errorf("send offer: %w", err)
		}
		return nil

	case evtLocalCandidate:
		// Until a remote description exists the peer has no context for
		// our candidates; such early ones are suppressed, not queued.
		if s.pc == nil || s.pc.RemoteDescription() == nil {
			slog.Debug("suppressing local candidate before remote description",
				slog.String(constant.RoomID, s.roomID),
			)
			return nil
		}
		if err := s.sender.Send(signal.Message{
			Intent:    signal.IntentCandidate,
			RoomID:    s.roomID,
			Candidate: &ev.candidate,
		}); err != nil {
			slog.Warn("send candidate", slog.Any(constant.Error, err), slog.String(constant.RoomID, s.roomID))
		}
		return nil

	case evtRemoteTrack:
		s.setState(StateConnected)
		slog.Info("remote media arrived", slog.String(constant.RoomID, s.roomID))
		return nil

	case evtConnState:
		switch ev.connState {
		case webrtc.PeerConnectionStateFailed:
			return ErrConnectionFailed
		case webrtc.PeerConnectionStateDisconnected:
			slog.Warn("peer connection disconnected", slog.String(constant.RoomID, s.roomID))
		default:
		}
		return nil

	default:
		return nil
	}
}

// ensureConnection lazily creates the connection object, acquires local
// media, and attaches it. Runs at most once per call.
func (s *Session) ensureConnection(ctx context.Context) error {
	if s.pc != nil {
		return nil
	}

	s.setState(StateAwaitingMedia)

	med, err := s.media(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMediaUnavailable, err)
	}

	pc, err := s.newConn()
	if err != nil {
		med.Close()
		return fmt.Errorf("create connection: %w", err)
	}

	for _, track := range med.Tracks() {
		if err := pc.AddTrack(track); err != nil {
			med.Close()
			pc.Close()
			return fmt.Errorf("attach local media: %w", err)
		}
	}

	pc.OnNegotiationNeeded(func() {
		s.postConnEvent(connEvent{kind: evtNegotiationNeeded})
	})
	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.postConnEvent(connEvent{kind: evtLocalCandidate, candidate: c})
	})
	pc.OnTrack(func(*webrtc.TrackRemote) {
		s.postConnEvent(connEvent{kind: evtRemoteTrack})
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.postConnEvent(connEvent{kind: evtConnState, connState: st})
	})

	s.pc = pc
	s.localMedia = med
	s.setState(StateNegotiating)

	return nil
}

// applyRemoteDescription sets the remote description and immediately
// drains buffered candidates in arrival order.
func (s *Session) applyRemoteDescription(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return s.violation("apply remote %s: %s", desc.Type, err)
	}
	s.remoteDescSet = true

	for _, c := range s.pending.Drain() {
		if err := s.pc.AddICECandidate(c); err != nil {
			slog.Warn("apply buffered candidate",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomID, s.roomID),
			)
		}
	}

	return nil
}

func (s *Session) postConnEvent(ev connEvent) {
	select {
	case s.connEvents <- ev:
	case <-s.loopDone:
	}
}

func (s *Session) violation(format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	slog.Error("signaling protocol violation",
		slog.String(constant.RoomID, s.roomID),
		slog.String("detail", detail),
	)
	return fmt.Errorf("%w: %s", ErrProtocolViolation, detail)
}

// teardown releases everything owned by the call: the connection object,
// the local media source, and any buffered candidates.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		close(s.loopDone)

		if s.pc != nil {
			if err := s.pc.Close(); err != nil {
				slog.Warn("close peer connection", slog.Any(constant.Error, err))
			}
		}
		if s.localMedia != nil {
			if err := s.localMedia.Close(); err != nil {
				slog.Warn("close local media", slog.Any(constant.Error, err))
			}
		}
		s.pending = candidateBuffer{}

		if s.joined {
			// Best effort: the relay does not acknowledge.
			_ = s.sender.Send(signal.Message{Intent: signal.IntentLeave, RoomID: s.roomID})
		}

		s.setState(StateClosed)
	})
}
