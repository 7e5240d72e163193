package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lectorium/workshop/internal/application/config"
	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/application/metric"
	"github.com/lectorium/workshop/internal/domain/signal"
	"github.com/lectorium/workshop/internal/infra/appctx"
	"github.com/lectorium/workshop/internal/registry"
	"github.com/lectorium/workshop/internal/usecase"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// wsTransport delivers registry messages to a single websocket
// connection. Registry and ping goroutines write concurrently, so every
// write is serialized through the mutex.
type wsTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (t *wsTransport) Send(msg signal.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return t.ws.WriteJSON(msg)
}

func (t *wsTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	signalingUsecase usecase.SignalingUsecase
}

func NewWebSocketHandler(cfg *config.Config, signalingUsecase usecase.SignalingUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		signalingUsecase: signalingUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"websocket upgrade",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	metric.IncrementWSActiveConnections()
	defer metric.DecrementWSActiveConnections()

	userID, _ := appctx.UserID(c.Request().Context())

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	transport := &wsTransport{ws: ws}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := transport.ping(); err != nil {
					return
				}
			case <-c.Request().Context().Done():
				return
			}
		}
	}()

	// The member the connection currently represents. Nil until a join
	// is admitted, reset on leave and rejection.
	var (
		member *registry.Member
		roomID string
	)

	defer func() {
		if member != nil {
			h.signalingUsecase.HandleLeave(roomID, member.ID)
		}
	}()

	for {
		var msg signal.Message

		if err := ws.ReadJSON(&msg); err != nil {
			h.logDisconnect(err)
			return nil
		}

		switch {
		case msg.Intent == signal.IntentJoin:
			if member != nil {
				slog.Warn(
					"join while already in a room",
					slog.String(constant.RoomID, roomID),
					slog.String(constant.MemberID, member.ID),
				)
				return nil
			}

			m, err := h.signalingUsecase.HandleJoin(c.Request().Context(), msg.RoomID, transport)
			if err != nil {
				if errors.Is(err, registry.ErrRoomFull) {
					// The rejection is already on the wire; the client
					// may try another room over the same connection.
					continue
				}

				slog.Error(
					"handle join",
					slog.Any(constant.Error, err),
					slog.String(constant.RoomID, msg.RoomID),
					slog.Any(constant.UserID, userID),
				)
				return nil
			}

			member = m
			roomID = msg.RoomID

		case msg.Intent == signal.IntentLeave:
			if member == nil {
				continue
			}

			h.signalingUsecase.HandleLeave(roomID, member.ID)
			member = nil
			roomID = ""

		case msg.Relayable():
			if member == nil {
				slog.Warn(
					"signaling payload before join",
					slog.String(constant.Intent, string(msg.Intent)),
				)
				return nil
			}

			if err := h.signalingUsecase.HandleForward(roomID, member.ID, msg); err != nil {
				slog.Error(
					"forward signal",
					slog.Any(constant.Error, err),
					slog.String(constant.RoomID, roomID),
					slog.String(constant.MemberID, member.ID),
				)
				return nil
			}

		default:
			slog.Warn(
				"unknown intent",
				slog.String(constant.Intent, string(msg.Intent)),
			)
			return nil
		}
	}
}

func (h *WebSocketHandler) logDisconnect(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("websocket closed by client")
		default:
			slog.Error("websocket close", slog.Any(constant.Error, err))
		}
		return
	}

	slog.Error("websocket read", slog.Any(constant.Error, err))
}
