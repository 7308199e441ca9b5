package ws

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var connSeq atomic.Int64

type fakeConn struct {
	id      string
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	reason  CloseReason
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("fake-%d", connSeq.Add(1))}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return errors.New("closed")
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close(reason CloseReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.reason = reason
	return nil
}

func (f *fakeConn) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeConn) Closed() (bool, CloseReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.reason
}
