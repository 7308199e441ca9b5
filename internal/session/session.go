// Package session keeps one notification socket open for a signed-in user,
// registering on every connect and reconnecting after unclean closes.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"socialpulse/pkg/wire"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNoUserID = errors.New("session: user id is required")

type State int

const (
	Disconnected State = iota
	Connecting
	AwaitingAck
	Active
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingAck:
		return "awaiting_ack"
	case Active:
		return "active"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Conn is the subset of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Config struct {
	URL    string
	UserID uint
	// AckTimeout bounds how long the session waits in AwaitingAck before treating
	// itself as active anyway.
	AckTimeout     time.Duration
	ReconnectDelay time.Duration
	// ReconnectMaxDelay > 0 switches from a fixed delay to exponential backoff
	// capped at this value.
	ReconnectMaxDelay time.Duration
	WriteWait         time.Duration
}

const (
	defaultAckTimeout     = 5 * time.Second
	defaultReconnectDelay = 3 * time.Second
	defaultWriteWait      = 5 * time.Second
)

// Session owns the socket lifecycle. Events other than the handshake frames are
// passed to the handler from the read goroutine, one at a time.
type Session struct {
	cfg     Config
	dialer  Dialer
	onEvent func(wire.Event)
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	attempt   int
	observers []func(from, to State)
}

func New(cfg Config, dialer Dialer, onEvent func(wire.Event), log *zap.Logger) *Session {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	return &Session{
		cfg:     cfg,
		dialer:  dialer,
		onEvent: onEvent,
		log:     log.Named("session").With(zap.Uint("user_id", cfg.UserID)),
	}
}

// OnStateChange registers an observer. Observers run under the session lock and
// must not call back into the Session.
func (s *Session) OnStateChange(fn func(from, to State)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.log.Debug("state", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, fn := range s.observers {
		fn(from, to)
	}
}

// promote moves AwaitingAck to Active for the given connection attempt only.
func (s *Session) promote(attempt int, why string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt || s.state != AwaitingAck {
		return
	}
	s.log.Debug("active", zap.String("via", why))
	s.transitionLocked(Active)
}

// NewBackOff returns the reconnect policy for cfg: a fixed delay unless a maximum
// delay is configured.
func NewBackOff(cfg Config) backoff.BackOff {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		return backoff.NewConstantBackOff(delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = max(cfg.ReconnectMaxDelay, delay)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run connects and keeps reconnecting until ctx is cancelled or the server closes
// the socket normally. Either way it returns with the session Disconnected.
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.UserID == 0 {
		return ErrNoUserID
	}
	defer s.setState(Disconnected)

	policy := NewBackOff(s.cfg)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.setState(Connecting)
		clean, wasActive := s.connectOnce(ctx)
		if clean || ctx.Err() != nil {
			return nil
		}
		if wasActive {
			policy.Reset()
		}
		s.setState(Reconnecting)
		delay := policy.NextBackOff()
		s.log.Info("connection lost, reconnecting", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// connectOnce runs one connection to completion. clean is true when the session
// should not reconnect.
func (s *Session) connectOnce(ctx context.Context) (clean, wasActive bool) {
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("dial failed", zap.Error(err))
		}
		return false, false
	}

	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.transitionLocked(AwaitingAck)
	s.mu.Unlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			_ = conn.Close()
		case <-done:
		}
	}()
	ackTimer := time.AfterFunc(s.cfg.AckTimeout, func() { s.promote(attempt, "ack timeout") })
	defer func() {
		ackTimer.Stop()
		close(done)
		wg.Wait()
		_ = conn.Close()
		wasActive = s.State() == Active
	}()

	hello, err := wire.Encode(wire.RegisterGlobal{UserID: s.cfg.UserID})
	if err != nil {
		s.log.Error("encode registration", zap.Error(err))
		return false, false
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		s.log.Warn("register failed", zap.Error(err))
		return ctx.Err() != nil, false
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return true, false
			case websocket.IsCloseError(err, websocket.CloseNormalClosure):
				s.log.Info("server closed the session", zap.Error(err))
				return true, false
			default:
				s.log.Warn("connection closed", zap.Error(err))
				return false, false
			}
		}
		s.promote(attempt, "first frame")

		evt, err := wire.Decode(raw)
		if err != nil {
			s.log.Warn("dropping frame", zap.Error(err))
			continue
		}
		switch f := evt.(type) {
		case wire.RegisteredGlobal:
			s.log.Debug("registration acknowledged", zap.Uint("ack_user_id", f.UserID))
		case wire.Connected:
			s.log.Debug("connected", zap.String("status", f.Status))
		case wire.Unknown:
			s.log.Debug("ignoring frame", zap.String("type", f.Type))
		default:
			if s.onEvent != nil {
				s.onEvent(evt)
			}
		}
	}
}
