package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CloseReason is the close frame a socket is sent when the hub drops it.
type CloseReason struct {
	Code int
	Text string
}

var (
	// Clients treat a normal closure as final and do not reconnect, which is what a
	// superseded tab should do.
	ReasonSuperseded = CloseReason{Code: websocket.CloseNormalClosure, Text: "superseded"}
	ReasonSendFailed = CloseReason{Code: websocket.CloseTryAgainLater, Text: "send failed"}
	ReasonGoingAway  = CloseReason{Code: websocket.CloseGoingAway, Text: "going away"}
)

// Conn is one live socket bound to a user.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close(reason CloseReason) error
}

// Registry maps each user to their single live socket.
type Registry interface {
	// Register installs c for userID and closes the socket it replaces, if any.
	Register(userID uint, c Conn)
	// Lookup never blocks; ok is false when the user has no live socket.
	Lookup(userID uint) (Conn, bool)
	// Unregister removes the entry only while it still points at c.
	Unregister(userID uint, c Conn) bool
	Count() int
}

// MemoryRegistry is a Registry guarded by a single mutex.
type MemoryRegistry struct {
	mu     sync.Mutex
	byUser map[uint]Conn
	log    *zap.Logger
}

func NewMemoryRegistry(log *zap.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		byUser: make(map[uint]Conn),
		log:    log.Named("registry"),
	}
}

func (r *MemoryRegistry) Register(userID uint, c Conn) {
	r.mu.Lock()
	old := r.byUser[userID]
	r.byUser[userID] = c
	r.mu.Unlock()

	if old == nil || old == c {
		return
	}
	r.log.Info("connection superseded",
		zap.Uint("user_id", userID),
		zap.String("old_conn", old.ID()),
		zap.String("new_conn", c.ID()))
	if err := old.Close(ReasonSuperseded); err != nil {
		r.log.Debug("close superseded connection", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (r *MemoryRegistry) Lookup(userID uint) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *MemoryRegistry) Unregister(userID uint, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[userID]; !ok || cur != c {
		return false
	}
	delete(r.byUser, userID)
	return true
}

func (r *MemoryRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// CloseAll drops every socket; used on shutdown.
func (r *MemoryRegistry) CloseAll(reason CloseReason) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.byUser))
	for id, c := range r.byUser {
		conns = append(conns, c)
		delete(r.byUser, id)
	}
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close(reason)
	}
}
