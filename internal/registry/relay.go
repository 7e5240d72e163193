package registry

import (
	"fmt"
	"log/slog"

	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/domain/signal"
)

// Relay forwards opaque signaling payloads between the two members of a
// room. It never inspects descriptions or candidates; routing relies
// solely on membership the Registry already established.
type Relay struct {
	reg *Registry
}

func NewRelay(reg *Registry) *Relay {
	return &Relay{reg: reg}
}

// Forward delivers msg unmodified to the other member of roomKey. A
// message for an unknown room or from a non-member is a protocol
// violation and returns an error. When the sender is alone in the room
// the message is dropped without acknowledgment; the sender side never
// blocks on relay confirmation.
func (r *Relay) Forward(roomKey, senderID string, msg signal.Message) error {
	if !msg.Relayable() {
		return fmt.Errorf("intent %q is not relayable", msg.Intent)
	}

	peer, err := r.reg.peer(roomKey, senderID)
	if err != nil {
		return fmt.Errorf("route %s in room %s: %w", msg.Intent, roomKey, err)
	}

	if peer == nil {
		slog.Debug("relay drop, no peer present",
			slog.String(constant.RoomID, roomKey),
			slog.String(constant.Intent, string(msg.Intent)),
		)
		return nil
	}

	if err := peer.transport.Send(msg); err != nil {
		return fmt.Errorf("forward %s to %s: %w", msg.Intent, peer.ID, err)
	}

	return nil
}
