package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/domain/signal"
)

var (
	// ErrRoomFull is a normal admission outcome, not a failure: the
	// caller shows it to the user and may pick another room key.
	ErrRoomFull = errors.New("room is full")

	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("sender is not a room member")
	ErrClosed       = errors.New("registry is closed")
)

// maxMembers is fixed: workshop calls are strictly two-party.
const maxMembers = 2

// Transport delivers signaling messages to one connected client. Sends
// for a single transport must be serialized by the implementation so
// per-sender ordering survives end-to-end.
type Transport interface {
	Send(msg signal.Message) error
}

// Member is one admitted room participant. IsFirst never changes after
// admission; it decides negotiation polarity on the client.
type Member struct {
	ID      string
	IsFirst bool

	transport Transport
}

type room struct {
	key string

	mu      sync.Mutex
	members []*Member

	// defunct marks a room that was emptied and unlinked from the
	// registry map; a racing joiner must retry with a fresh room.
	defunct bool
}

// Registry owns all room membership state. It is safe for concurrent
// use; membership of a single room mutates under that room's lock while
// distinct rooms proceed in parallel.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	closed bool
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// Join admits a transport into the room identified by roomKey.
//
// The first joiner creates the room and is told isFirst=true. The second
// joiner completes the room: both members receive peer_joined with the
// full membership, and the second joiner alone receives create_offer.
// A third joiner is sent rejected and the room is left untouched.
func (r *Registry) Join(roomKey string, t Transport) (*Member, error) {
	for {
		rm, err := r.getOrCreate(roomKey)
		if err != nil {
			return nil, err
		}

		rm.mu.Lock()
		if rm.defunct {
			rm.mu.Unlock()
			continue
		}

		if len(rm.members) >= maxMembers {
			rm.mu.Unlock()

			// Rejection is an answer, not an error on the wire.
			if err := t.Send(signal.Message{Intent: signal.IntentRejected, RoomID: roomKey}); err != nil {
				slog.Error("send rejected", slog.Any(constant.Error, err), slog.String(constant.RoomID, roomKey))
			}

			return nil, ErrRoomFull
		}

		member := &Member{
			ID:        uuid.NewString(),
			IsFirst:   len(rm.members) == 0,
			transport: t,
		}
		rm.members = append(rm.members, member)

		joined := signal.Message{
			Intent:  signal.IntentJoined,
			RoomID:  roomKey,
			ID:      member.ID,
			IsFirst: member.IsFirst,
		}
		if err := t.Send(joined); err != nil {
			slog.Error("send joined", slog.Any(constant.Error, err), slog.String(constant.RoomID, roomKey))
		}

		if len(rm.members) == maxMembers {
			r.announceComplete(rm, member)
		}
		rm.mu.Unlock()

		return member, nil
	}
}

// announceComplete runs under the room lock once the second member is in:
// peer_joined to both, then create_offer to the second joiner only so the
// two sides never produce offers simultaneously.
func (r *Registry) announceComplete(rm *room, second *Member) {
	participants := make([]string, 0, len(rm.members))
	for _, m := range rm.members {
		participants = append(participants, m.ID)
	}

	peerJoined := signal.Message{
		Intent:       signal.IntentPeerJoined,
		RoomID:       rm.key,
		Participants: participants,
	}
	for _, m := range rm.members {
		if err := m.transport.Send(peerJoined); err != nil {
			slog.Error("send peer_joined",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomID, rm.key),
				slog.String(constant.MemberID, m.ID),
			)
		}
	}

	createOffer := signal.Message{Intent: signal.IntentCreateOffer, RoomID: rm.key}
	if err := second.transport.Send(createOffer); err != nil {
		slog.Error("send create_offer",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomID, rm.key),
			slog.String(constant.MemberID, second.ID),
		)
	}
}

// Leave removes a member from a room, tells the remaining peer, and
// drops the room record once it is empty. Leaving twice, or leaving an
// unknown room, is a no-op: teardown must be idempotent.
func (r *Registry) Leave(roomKey, memberID string) {
	r.mu.RLock()
	rm, ok := r.rooms[roomKey]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	var remaining *Member
	removed := false
	for i, m := range rm.members {
		if m.ID == memberID {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			removed = true
			break
		}
	}
	if removed && len(rm.members) == 1 {
		remaining = rm.members[0]
	}
	empty := removed && len(rm.members) == 0
	if empty {
		rm.defunct = true
	}
	rm.mu.Unlock()

	if !removed {
		return
	}

	slog.Info("member left room",
		slog.String(constant.RoomID, roomKey),
		slog.String(constant.MemberID, memberID),
	)

	if remaining != nil {
		msg := signal.Message{Intent: signal.IntentPeerLeft, RoomID: roomKey}
		if err := remaining.transport.Send(msg); err != nil {
			slog.Error("send peer_left", slog.Any(constant.Error, err), slog.String(constant.RoomID, roomKey))
		}
	}

	if empty {
		r.mu.Lock()
		if cur, ok := r.rooms[roomKey]; ok && cur == rm {
			delete(r.rooms, roomKey)
		}
		r.mu.Unlock()
	}
}

// peer returns the other member of roomKey, or nil when the sender is
// currently alone in the room.
func (r *Registry) peer(roomKey, senderID string) (*Member, error) {
	r.mu.RLock()
	rm, ok := r.rooms[roomKey]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	sender := false
	var other *Member
	for _, m := range rm.members {
		if m.ID == senderID {
			sender = true
		} else {
			other = m
		}
	}
	if !sender {
		return nil, ErrNotMember
	}

	return other, nil
}

// RoomCount reports the number of live rooms, for gauges and tests.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// Close tears the registry down and drops every room. Joins after Close
// fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for key, rm := range r.rooms {
		rm.mu.Lock()
		rm.defunct = true
		rm.members = nil
		rm.mu.Unlock()
		delete(r.rooms, key)
	}
}

func (r *Registry) getOrCreate(roomKey string) (*room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if rm, ok := r.rooms[roomKey]; ok {
		return rm, nil
	}

	rm := &room{key: roomKey}
	r.rooms[roomKey] = rm

	return rm, nil
}
