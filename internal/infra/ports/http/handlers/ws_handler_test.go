package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorium/workshop/internal/application/config"
	"github.com/lectorium/workshop/internal/domain/models"
	"github.com/lectorium/workshop/internal/domain/signal"
	"github.com/lectorium/workshop/internal/registry"
	"github.com/lectorium/workshop/internal/usecase"
)

var errWorkshopNotFound = errors.New("workshop not found")

type memoryWorkshopRepo struct {
	mu        sync.Mutex
	workshops map[uuid.UUID]*models.Workshop
}

func newMemoryWorkshopRepo(workshops ...*models.Workshop) *memoryWorkshopRepo {
	repo := &memoryWorkshopRepo{workshops: make(map[uuid.UUID]*models.Workshop)}
	for _, w := range workshops {
		repo.workshops[w.ID] = w
	}
	return repo
}

func (r *memoryWorkshopRepo) Create(_ context.Context, workshop *models.Workshop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workshops[workshop.ID] = workshop
	return nil
}

func (r *memoryWorkshopRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Workshop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workshops[id]; ok {
		return w, nil
	}
	return nil, errWorkshopNotFound
}

func (r *memoryWorkshopRepo) ListByHost(_ context.Context, hostID uuid.UUID) ([]*models.Workshop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Workshop
	for _, w := range r.workshops {
		if w.HostID == hostID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *memoryWorkshopRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workshops, id)
	return nil
}

func newSignalingServer(t *testing.T, repo *memoryWorkshopRepo) *httptest.Server {
	t.Helper()

	reg := registry.New()
	t.Cleanup(reg.Close)

	signalingUsecase := usecase.NewSignalingUsecase(repo, reg, registry.NewRelay(reg))
	handler := NewWebSocketHandler(&config.Config{Debug: true}, signalingUsecase)

	e := echo.New()
	e.GET("/ws", handler.Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return srv
}

func dialSignaling(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readSignal(t *testing.T, conn *websocket.Conn) signal.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg signal.Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestWebsocketJoinCompletesRoom(t *testing.T) {
	workshop := models.NewWorkshop(uuid.New(), "intro to go", time.Now())
	srv := newSignalingServer(t, newMemoryWorkshopRepo(workshop))
	roomID := workshop.ID.String()

	first := dialSignaling(t, srv)
	require.NoError(t, first.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))

	joined := readSignal(t, first)
	require.Equal(t, signal.IntentJoined, joined.Intent)
	assert.True(t, joined.IsFirst)
	assert.NotEmpty(t, joined.ID)

	second := dialSignaling(t, srv)
	require.NoError(t, second.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))

	joined2 := readSignal(t, second)
	require.Equal(t, signal.IntentJoined, joined2.Intent)
	assert.False(t, joined2.IsFirst)

	peerJoined := readSignal(t, first)
	require.Equal(t, signal.IntentPeerJoined, peerJoined.Intent)
	assert.Len(t, peerJoined.Participants, 2)

	peerJoined2 := readSignal(t, second)
	require.Equal(t, signal.IntentPeerJoined, peerJoined2.Intent)

	createOffer := readSignal(t, second)
	assert.Equal(t, signal.IntentCreateOffer, createOffer.Intent)
}

func TestWebsocketRelaysOfferToPeer(t *testing.T) {
	workshop := models.NewWorkshop(uuid.New(), "relay", time.Now())
	srv := newSignalingServer(t, newMemoryWorkshopRepo(workshop))
	roomID := workshop.ID.String()

	first := dialSignaling(t, srv)
	require.NoError(t, first.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, first) // joined

	second := dialSignaling(t, srv)
	require.NoError(t, second.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, second) // joined
	readSignal(t, first)  // peer_joined
	readSignal(t, second) // peer_joined
	readSignal(t, second) // create_offer

	offer := signal.Message{
		Intent: signal.IntentOffer,
		RoomID: roomID,
		Description: &webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  "v=0 test",
		},
	}
	require.NoError(t, second.WriteJSON(offer))

	relayed := readSignal(t, first)
	require.Equal(t, signal.IntentOffer, relayed.Intent)
	require.NotNil(t, relayed.Description)
	assert.Equal(t, "v=0 test", relayed.Description.SDP)
}

func TestWebsocketThirdJoinRejected(t *testing.T) {
	workshop := models.NewWorkshop(uuid.New(), "full room", time.Now())
	other := models.NewWorkshop(uuid.New(), "room with space", time.Now())
	srv := newSignalingServer(t, newMemoryWorkshopRepo(workshop, other))
	roomID := workshop.ID.String()

	first := dialSignaling(t, srv)
	require.NoError(t, first.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, first)

	second := dialSignaling(t, srv)
	require.NoError(t, second.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, second)

	third := dialSignaling(t, srv)
	require.NoError(t, third.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))

	rejected := readSignal(t, third)
	require.Equal(t, signal.IntentRejected, rejected.Intent)

	// The connection survives rejection; a different room admits the
	// same client.
	require.NoError(t, third.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: other.ID.String()}))

	joined := readSignal(t, third)
	require.Equal(t, signal.IntentJoined, joined.Intent)
	assert.True(t, joined.IsFirst)
}

func TestWebsocketJoinUnknownWorkshopClosesConnection(t *testing.T) {
	srv := newSignalingServer(t, newMemoryWorkshopRepo())

	conn := dialSignaling(t, srv)
	require.NoError(t, conn.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: uuid.NewString()}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg signal.Message
	assert.Error(t, conn.ReadJSON(&msg))
}

func TestWebsocketDisconnectNotifiesPeer(t *testing.T) {
	workshop := models.NewWorkshop(uuid.New(), "early leaver", time.Now())
	srv := newSignalingServer(t, newMemoryWorkshopRepo(workshop))
	roomID := workshop.ID.String()

	first := dialSignaling(t, srv)
	require.NoError(t, first.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, first)

	second := dialSignaling(t, srv)
	require.NoError(t, second.WriteJSON(signal.Message{Intent: signal.IntentJoin, RoomID: roomID}))
	readSignal(t, second)
	readSignal(t, first)
	readSignal(t, second)
	readSignal(t, second)

	require.NoError(t, second.Close())

	peerLeft := readSignal(t, first)
	assert.Equal(t, signal.IntentPeerLeft, peerLeft.Intent)
}
