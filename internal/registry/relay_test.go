package registry

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorium/workshop/internal/domain/signal"
)

func TestForwardDeliversToOtherMember(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	txX := &fakeTransport{}
	x, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	_, err = reg.Join("r1", txY)
	require.NoError(t, err)

	offer := signal.Message{
		Intent:      signal.IntentOffer,
		RoomID:      "r1",
		Description: &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	}
	require.NoError(t, relay.Forward("r1", x.ID, offer))

	yMsgs := txY.received()
	last := yMsgs[len(yMsgs)-1]
	assert.Equal(t, signal.IntentOffer, last.Intent)
	require.NotNil(t, last.Description)
	assert.Equal(t, "v=0", last.Description.SDP)
	assert.NotContains(t, txX.intents(), signal.IntentOffer)
}

func TestForwardPreservesSenderOrder(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	txX := &fakeTransport{}
	x, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	_, err = reg.Join("r1", txY)
	require.NoError(t, err)

	for _, sdp := range []string{"one", "two", "three"} {
		msg := signal.Message{
			Intent:    signal.IntentCandidate,
			RoomID:    "r1",
			Candidate: &webrtc.ICECandidateInit{Candidate: sdp},
		}
		require.NoError(t, relay.Forward("r1", x.ID, msg))
	}

	var got []string
	for _, m := range txY.received() {
		if m.Intent == signal.IntentCandidate {
			got = append(got, m.Candidate.Candidate)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestForwardDropsWhenAlone(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	tx := &fakeTransport{}
	m, err := reg.Join("r1", tx)
	require.NoError(t, err)

	msg := signal.Message{Intent: signal.IntentCandidate, RoomID: "r1"}
	assert.NoError(t, relay.Forward("r1", m.ID, msg))

	// Nothing echoed back to the sender either.
	assert.NotContains(t, tx.intents(), signal.IntentCandidate)
}

func TestForwardUnknownRoom(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	err := relay.Forward("nope", "whoever", signal.Message{Intent: signal.IntentCandidate, RoomID: "nope"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestForwardNonMember(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	_, err := reg.Join("r1", &fakeTransport{})
	require.NoError(t, err)

	err = relay.Forward("r1", "stranger", signal.Message{Intent: signal.IntentOffer, RoomID: "r1"})
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestForwardRejectsControlIntents(t *testing.T) {
	reg := New()
	defer reg.Close()
	relay := NewRelay(reg)

	tx := &fakeTransport{}
	m, err := reg.Join("r1", tx)
	require.NoError(t, err)

	err = relay.Forward("r1", m.ID, signal.Message{Intent: signal.IntentJoined, RoomID: "r1"})
	assert.Error(t, err)
}
