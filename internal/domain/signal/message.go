package signal

import (
	"github.com/pion/webrtc/v4"
)

// Intent discriminates signaling messages. The relay only ever looks at
// this tag and the room key; descriptions and candidates stay opaque.
type Intent string

const (
	// Client to registry.
	IntentJoin  Intent = "join"
	IntentLeave Intent = "leave"

	// Registry to client.
	IntentJoined      Intent = "joined"
	IntentPeerJoined  Intent = "peer_joined"
	IntentRejected    Intent = "rejected"
	IntentCreateOffer Intent = "create_offer"
	IntentPeerLeft    Intent = "peer_left"

	// Client to client, relayed unmodified.
	IntentOffer     Intent = "offer"
	IntentAnswer    Intent = "answer"
	IntentCandidate Intent = "candidate"
)

// Message is the wire format for every signaling exchange. Fields beyond
// Intent and RoomID are populated per intent and immutable once sent.
type Message struct {
	Intent Intent `json:"intent"`
	RoomID string `json:"roomId"`

	// joined
	ID      string `json:"id,omitempty"`
	IsFirst bool   `json:"isFirst,omitempty"`

	// peer_joined
	Participants []string `json:"participants,omitempty"`

	// offer, answer
	Description *webrtc.SessionDescription `json:"description,omitempty"`

	// candidate
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Relayable reports whether a message is peer-to-peer payload the server
// forwards without interpretation.
func (m Message) Relayable() bool {
	switch m.Intent {
	case IntentOffer, IntentAnswer, IntentCandidate:
		return true
	default:
		return false
	}
}
