package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"socialpulse/pkg/wire"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	inbound chan []byte
	readErr chan error
	closed  chan struct{}

	mu         sync.Mutex
	written    [][]byte
	closeCodes []int
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.inbound:
		return websocket.TextMessage, b, nil
	case err := <-c.readErr:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, io.ErrClosedPipe
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.mu.Lock()
		c.closeCodes = append(c.closeCodes, int(data[0])<<8|int(data[1]))
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, e wire.Event) {
	t.Helper()
	b, err := wire.Encode(e)
	require.NoError(t, err)
	c.inbound <- b
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) codes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closeCodes...)
}

// scriptedDialer hands out conns in order; nil entries fail the dial.
type scriptedDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *scriptedDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	if c == nil {
		return nil, errors.New("connection refused")
	}
	return c, nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type harness struct {
	sess   *Session
	events chan wire.Event
	states chan State
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, cfg Config, dialer Dialer) *harness {
	t.Helper()
	if cfg.UserID == 0 {
		cfg.UserID = 2
	}
	h := &harness{
		events: make(chan wire.Event, 16),
		states: make(chan State, 64),
		done:   make(chan error, 1),
	}
	h.sess = New(cfg, dialer, func(e wire.Event) { h.events <- e }, zaptest.NewLogger(t))
	h.sess.OnStateChange(func(_, to State) { h.states <- to })
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.done <- h.sess.Run(ctx) }()
	return h
}

func (h *harness) expectStates(t *testing.T, want ...State) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-h.states:
			require.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %s", w)
		}
	}
}

func (h *harness) expectDone(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRegistersAndDispatchesEvents(t *testing.T) {
	req := require.New(t)

	// Given a server that acks and then pushes a chat message
	conn := newFakeConn()
	conn.push(t, wire.RegisteredGlobal{UserID: 2})
	conn.push(t, wire.Connected{Status: "ready"})
	conn.push(t, wire.ChatMessage{ID: 1, ConversationID: 7, SenderID: 1, Content: "hi"})
	h := start(t, Config{AckTimeout: time.Hour}, &scriptedDialer{conns: []*fakeConn{conn}})

	// Then the session registers and becomes active on the ack
	h.expectStates(t, Connecting, AwaitingAck, Active)
	select {
	case e := <-h.events:
		req.Equal(wire.TypeChatMessage, e.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
	}
	hello, err := wire.Decode(conn.writes()[0])
	req.NoError(err)
	req.Equal(wire.RegisterGlobal{Type: wire.TypeRegisterGlobal, UserID: 2}, hello)

	// When the user logs out
	h.cancel()

	// Then the socket is closed normally and nothing reconnects
	req.NoError(h.expectDone(t))
	h.expectStates(t, Disconnected)
	req.Equal([]int{websocket.CloseNormalClosure}, conn.codes())
	req.Equal(Disconnected, h.sess.State())
	req.Len(h.events, 0)
}

func TestAckTimeoutPromotesToActive(t *testing.T) {
	conn := newFakeConn()
	h := start(t, Config{AckTimeout: 20 * time.Millisecond}, &scriptedDialer{conns: []*fakeConn{conn}})

	h.expectStates(t, Connecting, AwaitingAck, Active)
}

func TestEventsBeforeAckAreDispatched(t *testing.T) {
	conn := newFakeConn()
	conn.push(t, wire.Notice{Type: wire.TypeFollow, SenderID: 3, ReferenceID: 3})
	h := start(t, Config{AckTimeout: time.Hour}, &scriptedDialer{conns: []*fakeConn{conn}})

	h.expectStates(t, Connecting, AwaitingAck, Active)
	select {
	case e := <-h.events:
		require.Equal(t, wire.TypeFollow, e.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
	}
}

func TestMalformedAndUnknownFramesAreSkipped(t *testing.T) {
	req := require.New(t)
	conn := newFakeConn()
	conn.inbound <- []byte(`{not json`)
	conn.inbound <- []byte(`{"type":"typing","user_id":3}`)
	conn.push(t, wire.Notice{Type: wire.TypePostLike, SenderID: 3, ReferenceID: 9})
	h := start(t, Config{AckTimeout: time.Hour}, &scriptedDialer{conns: []*fakeConn{conn}})

	select {
	case e := <-h.events:
		req.Equal(wire.TypePostLike, e.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
	}
	req.Equal(1, len(conn.writes()))
}

func TestUncleanCloseReconnects(t *testing.T) {
	req := require.New(t)

	// Given a first socket that drops and a second that stays up
	first, second := newFakeConn(), newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{first, nil, second}}
	h := start(t, Config{AckTimeout: 10 * time.Millisecond, ReconnectDelay: 10 * time.Millisecond}, dialer)
	h.expectStates(t, Connecting, AwaitingAck, Active)

	// When the transport fails
	first.readErr <- io.ErrUnexpectedEOF

	// Then the session waits, retries through a failed dial, and registers again
	h.expectStates(t, Reconnecting, Connecting, Reconnecting, Connecting, AwaitingAck, Active)
	req.Equal(3, dialer.dialCount())
	req.Len(second.writes(), 1)

	h.cancel()
	req.NoError(h.expectDone(t))
}

func TestServerNormalCloseDoesNotReconnect(t *testing.T) {
	req := require.New(t)

	// Given a socket the hub closes because another tab took over
	conn := newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{conn, newFakeConn()}}
	h := start(t, Config{AckTimeout: 10 * time.Millisecond, ReconnectDelay: 10 * time.Millisecond}, dialer)
	h.expectStates(t, Connecting, AwaitingAck, Active)

	conn.readErr <- &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "superseded"}

	// Then the session stops without redialing
	req.NoError(h.expectDone(t))
	h.expectStates(t, Disconnected)
	req.Equal(1, dialer.dialCount())
}

func TestTryAgainLaterCloseReconnects(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{conn, newFakeConn()}}
	h := start(t, Config{AckTimeout: 10 * time.Millisecond, ReconnectDelay: 10 * time.Millisecond}, dialer)
	h.expectStates(t, Connecting, AwaitingAck, Active)

	conn.readErr <- &websocket.CloseError{Code: websocket.CloseTryAgainLater}

	h.expectStates(t, Reconnecting, Connecting, AwaitingAck)
}

func TestCancelDuringReconnectWait(t *testing.T) {
	req := require.New(t)
	h := start(t, Config{ReconnectDelay: time.Hour}, &scriptedDialer{})
	h.expectStates(t, Connecting, Reconnecting)

	h.cancel()

	req.NoError(h.expectDone(t))
	h.expectStates(t, Disconnected)
}

func TestRunWithoutUserID(t *testing.T) {
	s := New(Config{}, &scriptedDialer{}, nil, zaptest.NewLogger(t))
	require.ErrorIs(t, s.Run(context.Background()), ErrNoUserID)
}

func TestNewBackOff(t *testing.T) {
	req := require.New(t)

	// Fixed delay by default
	b := NewBackOff(Config{ReconnectDelay: 3 * time.Second})
	for range 5 {
		req.Equal(3*time.Second, b.NextBackOff())
	}

	// Exponential when capped
	b = NewBackOff(Config{ReconnectDelay: time.Second, ReconnectMaxDelay: 30 * time.Second})
	exp, ok := b.(*backoff.ExponentialBackOff)
	req.True(ok)
	req.Equal(time.Second, exp.InitialInterval)
	req.Equal(30*time.Second, exp.MaxInterval)
	for range 50 {
		d := b.NextBackOff()
		req.NotEqual(backoff.Stop, d)
		req.LessOrEqual(d, 45*time.Second)
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "awaiting_ack", AwaitingAck.String())
	require.Equal(t, "unknown", State(42).String())
}
