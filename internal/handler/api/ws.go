package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ThemePulse/internal/domain/models"
	"ThemePulse/internal/service/metrics"
	"ThemePulse/internal/usecase"
	xlogger "ThemePulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsReadLimit  = 512
	actionSub    = "subscribe"
	actionUnsub  = "unsubscribe"
	resultOK     = "ok"
	resultFailed = "error"
)

// PushHub is the subscription surface of the push dispatcher.
type PushHub interface {
	Subscribe(channel string, sub usecase.Subscriber) error
	Unsubscribe(channel, id string)
	UnsubscribeAll(id string)
}

type clientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type controlReply struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// WSHandler upgrades /ws connections and bridges them to the dispatcher.
type WSHandler struct {
	logger       *xlogger.Logger
	hub          PushHub
	buffer       int
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewWSHandler(logger *xlogger.Logger, hub PushHub, buffer int, pingInterval time.Duration) *WSHandler {
	if pingInterval <= 0 || pingInterval >= wsPongWait {
		pingInterval = wsPongWait * 9 / 10
	}
	return &WSHandler{
		logger:       logger.Component("ws"),
		hub:          hub,
		buffer:       buffer,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: wsWriteWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the request. The connection lives until the client goes away.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	s := &wsSession{
		id:      uuid.NewString(),
		conn:    conn,
		replies: make(chan controlReply, 8),
		done:    make(chan struct{}),
		h:       h,
	}
	s.sub = usecase.NewChanSubscriber(s.id, h.buffer)

	metrics.WSConnections.Inc()
	h.logger.Debug("ws connected", xlogger.String("client", s.id), xlogger.String("remote", c.RealIP()))

	go s.writePump()
	s.readPump()
	return nil
}

type wsSession struct {
	id      string
	conn    *websocket.Conn
	sub     *usecase.ChanSubscriber
	replies chan controlReply
	done    chan struct{}
	h       *WSHandler
}

func (s *wsSession) readPump() {
	defer func() {
		s.h.hub.UnsubscribeAll(s.id)
		close(s.done)
		_ = s.conn.Close()
		metrics.WSConnections.Dec()
		s.h.logger.Debug("ws disconnected", xlogger.String("client", s.id))
	}()

	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			metrics.WSClientMessages.WithLabelValues("malformed", resultFailed).Inc()
			s.reply(controlReply{Status: resultFailed, Error: "malformed message"})
			continue
		}
		s.handle(msg)
	}
}

func (s *wsSession) handle(msg clientMessage) {
	switch msg.Action {
	case actionSub:
		if err := s.h.hub.Subscribe(msg.Channel, s.sub); err != nil {
			metrics.WSClientMessages.WithLabelValues(actionSub, resultFailed).Inc()
			text := "subscribe failed"
			if errors.Is(err, models.ErrUnknownChannel) {
				text = "unknown channel"
			}
			s.reply(controlReply{Action: msg.Action, Channel: msg.Channel, Status: resultFailed, Error: text})
			return
		}
		metrics.WSClientMessages.WithLabelValues(actionSub, resultOK).Inc()
	case actionUnsub:
		s.h.hub.Unsubscribe(msg.Channel, s.id)
		metrics.WSClientMessages.WithLabelValues(actionUnsub, resultOK).Inc()
		s.reply(controlReply{Action: msg.Action, Channel: msg.Channel, Status: resultOK})
	default:
		metrics.WSClientMessages.WithLabelValues("unknown", resultFailed).Inc()
		s.reply(controlReply{Action: msg.Action, Channel: msg.Channel, Status: resultFailed, Error: "unknown action"})
	}
}

// reply queues a control message; it is dropped when the queue is full.
func (s *wsSession) reply(r controlReply) {
	select {
	case s.replies <- r:
	default:
	}
}

// writePump owns every write on the connection.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case msg := <-s.sub.C():
			if err := s.write(msg); err != nil {
				return
			}
		case r := <-s.replies:
			if err := s.write(r); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) write(v interface{}) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}
