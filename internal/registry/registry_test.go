package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorium/workshop/internal/domain/signal"
)

type fakeTransport struct {
	mu   sync.Mutex
	msgs []signal.Message
}

func (f *fakeTransport) Send(msg signal.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeTransport) received() []signal.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]signal.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeTransport) intents() []signal.Intent {
	var out []signal.Intent
	for _, m := range f.received() {
		out = append(out, m.Intent)
	}
	return out
}

func TestJoinFirstMember(t *testing.T) {
	reg := New()
	defer reg.Close()

	tx := &fakeTransport{}
	member, err := reg.Join("r1", tx)
	require.NoError(t, err)

	assert.True(t, member.IsFirst)
	assert.NotEmpty(t, member.ID)
	assert.Equal(t, 1, reg.RoomCount())

	msgs := tx.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, signal.IntentJoined, msgs[0].Intent)
	assert.Equal(t, "r1", msgs[0].RoomID)
	assert.True(t, msgs[0].IsFirst)
	assert.NotContains(t, tx.intents(), signal.IntentCreateOffer)
}

func TestJoinSecondMemberCompletesRoom(t *testing.T) {
	reg := New()
	defer reg.Close()

	txX := &fakeTransport{}
	x, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	y, err := reg.Join("r1", txY)
	require.NoError(t, err)
	assert.False(t, y.IsFirst)

	// X observes its own joined, then peer_joined with both IDs.
	xMsgs := txX.received()
	require.Len(t, xMsgs, 2)
	assert.Equal(t, signal.IntentPeerJoined, xMsgs[1].Intent)
	assert.Equal(t, []string{x.ID, y.ID}, xMsgs[1].Participants)

	// Y observes joined{isFirst:false}, peer_joined, then create_offer.
	yIntents := txY.intents()
	require.Equal(t, []signal.Intent{signal.IntentJoined, signal.IntentPeerJoined, signal.IntentCreateOffer}, yIntents)
	assert.False(t, txY.received()[0].IsFirst)
}

func TestCreateOfferGoesToSecondJoinerOnly(t *testing.T) {
	reg := New()
	defer reg.Close()

	txX := &fakeTransport{}
	_, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	_, err = reg.Join("r1", txY)
	require.NoError(t, err)

	assert.NotContains(t, txX.intents(), signal.IntentCreateOffer)
	assert.Contains(t, txY.intents(), signal.IntentCreateOffer)
}

func TestThirdJoinRejected(t *testing.T) {
	reg := New()
	defer reg.Close()

	txX := &fakeTransport{}
	x, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	y, err := reg.Join("r1", txY)
	require.NoError(t, err)

	txZ := &fakeTransport{}
	z, err := reg.Join("r1", txZ)
	require.ErrorIs(t, err, ErrRoomFull)
	assert.Nil(t, z)

	zMsgs := txZ.received()
	require.Len(t, zMsgs, 1)
	assert.Equal(t, signal.IntentRejected, zMsgs[0].Intent)

	// Membership is untouched: the relay still routes between X and Y.
	relay := NewRelay(reg)
	require.NoError(t, relay.Forward("r1", x.ID, signal.Message{Intent: signal.IntentCandidate, RoomID: "r1"}))
	require.NoError(t, relay.Forward("r1", y.ID, signal.Message{Intent: signal.IntentCandidate, RoomID: "r1"}))
}

func TestConcurrentAdmission(t *testing.T) {
	reg := New()
	defer reg.Close()

	const joiners = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	var admitted []*Member
	rejected := 0

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			m, err := reg.Join("contended", &fakeTransport{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrRoomFull)
				rejected++
				return
			}
			admitted = append(admitted, m)
		}()
	}
	wg.Wait()

	require.Len(t, admitted, 2)
	assert.Equal(t, joiners-2, rejected)

	// Exactly one of the two admitted members is the first joiner.
	firsts := 0
	for _, m := range admitted {
		if m.IsFirst {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts)
}

func TestLeaveNotifiesRemainingPeer(t *testing.T) {
	reg := New()
	defer reg.Close()

	txX := &fakeTransport{}
	x, err := reg.Join("r1", txX)
	require.NoError(t, err)

	txY := &fakeTransport{}
	y, err := reg.Join("r1", txY)
	require.NoError(t, err)

	reg.Leave("r1", y.ID)
	assert.Contains(t, txX.intents(), signal.IntentPeerLeft)
	assert.Equal(t, 1, reg.RoomCount())

	reg.Leave("r1", x.ID)
	assert.Equal(t, 0, reg.RoomCount())
}

func TestLeaveIsIdempotent(t *testing.T) {
	reg := New()
	defer reg.Close()

	tx := &fakeTransport{}
	m, err := reg.Join("r1", tx)
	require.NoError(t, err)

	reg.Leave("r1", m.ID)
	reg.Leave("r1", m.ID)
	reg.Leave("r1", "stranger")
	reg.Leave("missing", m.ID)

	assert.Equal(t, 0, reg.RoomCount())
}

func TestRoomKeyReusableAfterEmpty(t *testing.T) {
	reg := New()
	defer reg.Close()

	tx := &fakeTransport{}
	m, err := reg.Join("r1", tx)
	require.NoError(t, err)
	reg.Leave("r1", m.ID)

	tx2 := &fakeTransport{}
	m2, err := reg.Join("r1", tx2)
	require.NoError(t, err)
	assert.True(t, m2.IsFirst)
}

func TestJoinAfterClose(t *testing.T) {
	reg := New()
	reg.Close()

	_, err := reg.Join("r1", &fakeTransport{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, reg.RoomCount())
}
