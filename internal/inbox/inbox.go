// Package inbox holds the client's reconciled view of its notifications. Pushed
// frames and polled server pages both feed it; every mutation goes through one lock
// so the unread count cannot drift.
package inbox

import (
	"strconv"
	"sync"
	"time"

	"socialpulse/internal/domain"
	"socialpulse/pkg/wire"
)

const DefaultDedupWindow = 5 * time.Minute

type Config struct {
	// UserID is the signed-in user; their own actions arrive already read.
	UserID        uint
	DedupWindow   time.Duration
	InvitationTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot is an immutable copy of the state. Unread is always derived from Records.
type Snapshot struct {
	Records []Record
	Unread  int
}

type State struct {
	mu            sync.Mutex
	userID        uint
	records       []Record
	dedupWindow   time.Duration
	invitationTTL time.Duration
	now           func() time.Time
	observers     []func(Snapshot)
}

func New(cfg Config) *State {
	s := &State{
		userID:        cfg.UserID,
		dedupWindow:   cfg.DedupWindow,
		invitationTTL: cfg.InvitationTTL,
		now:           cfg.Now,
	}
	if s.dedupWindow <= 0 {
		s.dedupWindow = DefaultDedupWindow
	}
	if s.invitationTTL <= 0 {
		s.invitationTTL = domain.DefaultInvitationTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// OnChange registers fn to receive a snapshot after every change. Observers run
// under the state's lock, in mutation order, and must not call back into the State.
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// apply is the only place records change.
func (s *State) apply(mutate func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !mutate() {
		return false
	}
	if len(s.observers) > 0 {
		snap := s.snapshotLocked(s.now())
		for _, fn := range s.observers {
			fn(snap)
		}
	}
	return true
}

// ApplyPush records a frame received at now. It returns false for frames that are
// not notifications (handshakes, unknown types).
func (s *State) ApplyPush(e wire.Event, now time.Time) (Record, bool) {
	desc, ok := wire.Describe(e)
	if !ok {
		return Record{}, false
	}
	rec := Record{
		Type:        desc.Type,
		ReferenceID: desc.ReferenceID,
		Sender:      desc.Sender,
		Content:     desc.Content,
		IsRead:      desc.Sender.ID != 0 && desc.Sender.ID == s.userID,
		CreatedAt:   now,
	}
	s.apply(func() bool {
		rec.ID = s.uniqueID(pushID(desc.Type, sourceID(e, desc), now))
		s.records = append([]Record{rec}, s.records...)
		return true
	})
	return rec, true
}

func (s *State) uniqueID(id string) string {
	taken := func(candidate string) bool {
		for _, r := range s.records {
			if r.ID == candidate {
				return true
			}
		}
		return false
	}
	if !taken(id) {
		return id
	}
	for n := 1; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// ApplyPoll merges an authoritative server page. It returns the ids of server
// records the user has already read locally but the server still has as unread.
func (s *State) ApplyPoll(page []wire.StoredNotification) (unsynced []uint) {
	s.apply(func() bool {
		s.records, unsynced = merge(s.records, page, s.dedupWindow)
		return true
	})
	return unsynced
}

// ApplyOptimistic applies a local change ahead of the server.
func (s *State) ApplyOptimistic(op Op) bool {
	return s.apply(func() bool {
		return op.apply(s.records)
	})
}

// Sweep drops group invitations older than the TTL and returns how many went.
func (s *State) Sweep(now time.Time) int {
	removed := 0
	s.apply(func() bool {
		kept := s.records[:0]
		for _, r := range s.records {
			if s.expired(r, now) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		clear(s.records[len(kept):])
		s.records = kept
		return removed > 0
	})
	return removed
}

// Clear forgets everything, e.g. on logout.
func (s *State) Clear() {
	s.apply(func() bool {
		if len(s.records) == 0 {
			return false
		}
		s.records = nil
		return true
	})
}

// Lookup finds a visible record by ID.
func (s *State) Lookup(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, r := range s.records {
		if r.ID == id && !s.expired(r, now) {
			return r, true
		}
	}
	return Record{}, false
}

// Snapshot hides expired invitations even between sweeps.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

func (s *State) Unread() int {
	return s.Snapshot().Unread
}

func (s *State) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{Records: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		if s.expired(r, now) {
			continue
		}
		snap.Records = append(snap.Records, r)
		if !r.IsRead {
			snap.Unread++
		}
	}
	return snap
}

func (s *State) expired(r Record, now time.Time) bool {
	return r.Type == wire.TypeGroupInvitation && now.Sub(r.CreatedAt) > s.invitationTTL
}
