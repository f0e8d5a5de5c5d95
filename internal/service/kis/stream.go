package kis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
	"ThemePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

var _ drepo.MarketStream = (*Stream)(nil)

// ApprovalSource hands out a fresh approval key per connection.
type ApprovalSource interface {
	ApprovalKey(ctx context.Context) (string, error)
}

// Stream implements a MarketStream backed by the real-time tick WebSocket.
type Stream struct {
	websocketURL     string
	approvals        ApprovalSource
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	log              *logger.Logger
	metrics          drepo.Metrics

	// wmu serializes writes; keepalive echoes and subscribes share the conn.
	wmu         sync.Mutex
	conn        *websocket.Conn
	approvalKey string
	connected   atomic.Bool
}

// NewStream creates a tick stream. Call Connect before Subscribe or Read.
func NewStream(websocketURL string, approvals ApprovalSource, handshakeTimeout, pingInterval time.Duration, log *logger.Logger, metrics drepo.Metrics) *Stream {
	return &Stream{
		websocketURL:     websocketURL,
		approvals:        approvals,
		handshakeTimeout: handshakeTimeout,
		pingInterval:     pingInterval,
		log:              log.Component("kis_stream"),
		metrics:          metrics,
	}
}

// Connect acquires an approval key and dials the WebSocket.
func (s *Stream) Connect(ctx context.Context) error {
	key, err := s.approvals.ApprovalKey(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.handshakeTimeout}
	dctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("kis connect: %w", err)
	}

	s.wmu.Lock()
	s.conn = conn
	s.approvalKey = key
	s.wmu.Unlock()
	s.connected.Store(true)
	s.log.Info("connected", logger.String("url", s.websocketURL))
	return nil
}

type subscribeMessage struct {
	Header subscribeHeader `json:"header"`
	Body   subscribeBody   `json:"body"`
}

type subscribeHeader struct {
	ApprovalKey string `json:"approval_key"`
	CustType    string `json:"custtype"`
	TrType      string `json:"tr_type"`
	ContentType string `json:"content-type"`
}

type subscribeBody struct {
	Input struct {
		TrID  string `json:"tr_id"`
		TrKey string `json:"tr_key"`
	} `json:"input"`
}

// Subscribe registers every code on the current connection.
func (s *Stream) Subscribe(ctx context.Context, codes []string) error {
	if !s.connected.Load() {
		return models.ErrNotConnected
	}
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}
		var msg subscribeMessage
		msg.Header = subscribeHeader{ApprovalKey: s.approvalKey, CustType: "P", TrType: "1", ContentType: "utf-8"}
		msg.Body.Input.TrID = trTick
		msg.Body.Input.TrKey = code
		if err := s.writeJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", code, err)
		}
	}
	s.log.Info("subscribed", logger.Int("codes", len(codes)))
	return nil
}

// Read streams decoded ticks and the terminal transport error. Both channels
// close when the connection ends or ctx is cancelled.
func (s *Stream) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	ticks := make(chan models.Tick, 1024)
	errs := make(chan error, 1)

	s.wmu.Lock()
	conn := s.conn
	s.wmu.Unlock()

	done := make(chan struct{})

	// ping loop
	if s.pingInterval > 0 {
		go func() {
			ticker := time.NewTicker(s.pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-ticker.C:
					_ = s.write(websocket.PingMessage, nil)
				}
			}
		}()
	}

	// unblock ReadMessage on cancel
	go func() {
		select {
		case <-ctx.Done():
			if conn != nil {
				_ = conn.Close()
			}
		case <-done:
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- models.ErrNotConnected
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				s.markClosed(conn)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("kis read: %w", err)
				}
				return
			}
			if !s.handle(ctx, b, ticks) {
				return
			}
		}
	}()

	return ticks, errs
}

// markClosed clears the connected flag unless a newer Connect replaced conn.
func (s *Stream) markClosed(conn *websocket.Conn) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == conn {
		s.connected.Store(false)
	}
}

// handle processes one frame; it returns false when ctx ended mid-delivery.
func (s *Stream) handle(ctx context.Context, raw []byte, ticks chan<- models.Tick) bool {
	f := DecodeFrame(raw)
	switch f.Kind {
	case FramePingPong:
		if err := s.write(websocket.TextMessage, raw); err != nil {
			s.log.Warn("pingpong echo failed", logger.Error(err))
		}
	case FrameControl:
		m := f.Control
		s.log.Debug("control frame",
			logger.String("tr_id", m.Header.TrID),
			logger.String("tr_key", m.Header.TrKey),
			logger.String("rt_cd", m.Body.RtCd),
			logger.String("msg", m.Body.Msg1))
		if m.Body.RtCd != "" && m.Body.RtCd != "0" {
			s.metrics.RecordError("kis_control")
		}
	case FrameData:
		if f.TrID == trTick && len(f.Ticks) == 0 {
			s.metrics.RecordDrop("malformed_frame")
		}
		for _, t := range f.Ticks {
			select {
			case ticks <- t:
			case <-ctx.Done():
				return false
			}
		}
	default:
		s.metrics.RecordDrop("unknown_frame")
	}
	return true
}

func (s *Stream) writeJSON(v any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == nil {
		return models.ErrNotConnected
	}
	return s.conn.WriteJSON(v)
}

func (s *Stream) write(messageType int, data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == nil {
		return models.ErrNotConnected
	}
	return s.conn.WriteMessage(messageType, data)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected.Store(false)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected.Load() }
