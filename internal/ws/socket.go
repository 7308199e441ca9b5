package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrConnClosed     = errors.New("ws: connection closed")
	ErrSendBufferFull = errors.New("ws: send buffer full")
)

// socket is a Conn over a gorilla connection. Writes go through a buffered channel
// drained by writePump so Send never blocks the caller.
type socket struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	writeWait time.Duration
	pingEvery time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	closed bool
	reason CloseReason
}

func newSocket(conn *websocket.Conn, buffer int, writeWait, pongWait time.Duration, log *zap.Logger) *socket {
	id := uuid.NewString()
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	return &socket{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, buffer),
		writeWait: writeWait,
		pingEvery: (pongWait * 9) / 10,
		log:       log.With(zap.String("conn_id", id)),
	}
}

func (s *socket) ID() string { return s.id }

func (s *socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrConnClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close queues a close frame behind any pending writes. Closing twice is a no-op.
func (s *socket) Close(reason CloseReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.reason = reason
	close(s.send)
	return nil
}

func (s *socket) closeReason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// writePump copies queued frames to the connection and keeps it alive with pings.
// It owns the underlying connection's lifetime: when it returns, the conn is closed
// and the read loop unblocks.
func (s *socket) writePump() {
	ticker := time.NewTicker(s.pingEvery)
	defer func() {
		ticker.Stop()
		_ = s.Close(ReasonGoingAway)
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if !ok {
				r := s.closeReason()
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(r.Code, r.Text))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
