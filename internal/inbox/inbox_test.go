package inbox

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"socialpulse/pkg/wire"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newState(userID uint) (*State, *time.Time) {
	now := t0
	s := New(Config{UserID: userID, Now: func() time.Time { return now }})
	return s, &now
}

func chatFrame(msgID, conversationID, senderID uint) wire.ChatMessage {
	return wire.ChatMessage{ID: msgID, ConversationID: conversationID, SenderID: senderID, SenderName: "ann", Content: "hi"}
}

func stored(id uint, typ string, ref, sender uint, at time.Time, read bool) wire.StoredNotification {
	return wire.StoredNotification{
		ID: id, Type: typ, ReferenceID: ref, Sender: wire.Sender{ID: sender}, IsRead: read, CreatedAt: at,
	}
}

func TestApplyPush_ChatMessageIsPrependedAndUnread(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPoll([]wire.StoredNotification{stored(1, wire.TypeFollow, 9, 9, t0.Add(-time.Hour), false)})

	// When a chat message frame arrives
	rec, ok := s.ApplyPush(chatFrame(55, 7, 1), t0)

	// Then unread goes up by exactly one and the message is first
	req.True(ok)
	req.Equal("message-55-"+strconv.FormatInt(t0.UnixMilli(), 10), rec.ID)
	snap := s.Snapshot()
	req.Equal(2, snap.Unread)
	req.Equal(wire.NotificationMessage, snap.Records[0].Type)
	req.Equal(uint(7), snap.Records[0].ReferenceID)
	req.True(snap.Records[0].Pushed())
}

func TestApplyPush_IgnoresNonNotifications(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)

	for _, e := range []wire.Event{
		wire.Connected{Status: "ready"},
		wire.RegisteredGlobal{UserID: 2},
		wire.Unknown{Type: "typing"},
	} {
		_, ok := s.ApplyPush(e, t0)
		req.False(ok)
	}
	req.Empty(s.Snapshot().Records)
}

func TestApplyPush_OwnActionArrivesRead(t *testing.T) {
	req := require.New(t)
	s, _ := newState(1)

	s.ApplyPush(chatFrame(1, 7, 1), t0)

	req.Len(s.Snapshot().Records, 1)
	req.Zero(s.Unread())
}

func TestApplyPush_SameMillisecondGetsDistinctIDs(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)

	a, _ := s.ApplyPush(wire.Notice{Type: wire.TypePostLike, SenderID: 1, ReferenceID: 3}, t0)
	b, _ := s.ApplyPush(wire.Notice{Type: wire.TypePostLike, SenderID: 1, ReferenceID: 3}, t0)

	req.NotEqual(a.ID, b.ID)
	req.Equal(2, s.Unread())
}

// Applying the same page twice yields no duplicates and no unread drift.
func TestApplyPoll_Idempotent(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	page := []wire.StoredNotification{
		stored(3, wire.NotificationMessage, 7, 1, t0, false),
		stored(2, wire.TypePostLike, 4, 1, t0.Add(-time.Minute), true),
		stored(1, wire.TypeFollow, 1, 1, t0.Add(-2*time.Minute), false),
	}

	s.ApplyPoll(page)
	first := s.Snapshot()
	s.ApplyPoll(page)
	second := s.Snapshot()

	req.Len(second.Records, 3)
	req.Equal(2, second.Unread)
	req.Equal(first, second)
}

// A pushed record is replaced by its server copy; exactly one record remains.
func TestApplyPoll_ReplacesPushedRecord(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPush(chatFrame(55, 7, 1), t0.Add(2*time.Second))
	req.Equal(1, s.Unread())

	s.ApplyPoll([]wire.StoredNotification{stored(900, wire.NotificationMessage, 7, 1, t0, false)})

	snap := s.Snapshot()
	req.Len(snap.Records, 1)
	req.Equal("900", snap.Records[0].ID)
	req.Equal(uint(900), snap.Records[0].ServerID)
	req.Equal(t0, snap.Records[0].CreatedAt)
	req.Equal(1, snap.Unread)
}

func TestApplyPoll_OutsideWindowIsADifferentEvent(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPush(chatFrame(55, 7, 1), t0)

	s.ApplyPoll([]wire.StoredNotification{stored(900, wire.NotificationMessage, 7, 1, t0.Add(-10*time.Minute), false)})

	req.Len(s.Snapshot().Records, 2)
	req.Equal(2, s.Unread())
}

// Two messages in one conversation share a dedup key; each server row absorbs the
// closest push, so neither is lost nor duplicated.
func TestApplyPoll_PairsNearestOneToOne(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPush(chatFrame(1, 7, 1), t0)
	s.ApplyPush(chatFrame(2, 7, 1), t0.Add(time.Minute))

	s.ApplyPoll([]wire.StoredNotification{
		stored(11, wire.NotificationMessage, 7, 1, t0.Add(time.Minute-time.Second), false),
		stored(10, wire.NotificationMessage, 7, 1, t0.Add(-time.Second), false),
	})

	snap := s.Snapshot()
	req.Len(snap.Records, 2)
	req.Equal("11", snap.Records[0].ID)
	req.Equal("10", snap.Records[1].ID)
	req.Equal(2, snap.Unread)
}

// A push that arrives after the poll already returned its row still collapses on
// the next poll.
func TestApplyPoll_LatePushCollapsesIntoKnownRow(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	page := []wire.StoredNotification{stored(10, wire.NotificationMessage, 7, 1, t0, false)}
	s.ApplyPoll(page)
	s.ApplyPush(chatFrame(1, 7, 1), t0.Add(time.Second))
	req.Len(s.Snapshot().Records, 2)

	s.ApplyPoll(page)

	req.Len(s.Snapshot().Records, 1)
	req.Equal(1, s.Unread())
}

func TestApplyPoll_SortsNewestFirstAndKeepsUnmatchedPushes(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPush(wire.Notice{Type: wire.TypePostLike, SenderID: 3, ReferenceID: 4}, t0.Add(time.Hour))

	s.ApplyPoll([]wire.StoredNotification{
		stored(1, wire.TypeFollow, 1, 1, t0.Add(-time.Hour), false),
		stored(2, wire.TypeFollow, 5, 5, t0, false),
	})

	snap := s.Snapshot()
	req.Len(snap.Records, 3)
	req.True(snap.Records[0].Pushed())
	req.Equal("2", snap.Records[1].ID)
	req.Equal("1", snap.Records[2].ID)
	req.Equal(3, snap.Unread)
}

// Once read, a record stays read whatever later polls or pushes say.
func TestReadStateIsMonotonic(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	page := []wire.StoredNotification{stored(1, wire.TypeFollow, 1, 1, t0, false)}
	s.ApplyPoll(page)

	req.True(s.ApplyOptimistic(MarkRead{ID: "1"}))
	s.ApplyPoll(page)
	s.ApplyPush(wire.Notice{Type: wire.TypeFollow, SenderID: 4, ReferenceID: 4}, t0)

	rec, ok := s.Lookup("1")
	req.True(ok)
	req.True(rec.IsRead)
	req.Equal(1, s.Unread())
}

func TestReadStateSurvivesReplacement(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	rec, _ := s.ApplyPush(chatFrame(1, 7, 1), t0)
	s.ApplyOptimistic(MarkRead{ID: rec.ID})

	s.ApplyPoll([]wire.StoredNotification{stored(10, wire.NotificationMessage, 7, 1, t0, false)})

	got, ok := s.Lookup("10")
	req.True(ok)
	req.True(got.IsRead)
	req.Zero(s.Unread())
}

func TestApplyOptimistic(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPoll([]wire.StoredNotification{
		stored(1, wire.TypeFollow, 1, 1, t0, false),
		stored(2, wire.TypeFollow, 3, 3, t0, false),
	})

	req.False(s.ApplyOptimistic(MarkRead{ID: "missing"}))
	req.True(s.ApplyOptimistic(MarkRead{ID: "1"}))
	req.False(s.ApplyOptimistic(MarkRead{ID: "1"}))
	req.Equal(1, s.Unread())

	req.True(s.ApplyOptimistic(MarkAllRead{}))
	req.False(s.ApplyOptimistic(MarkAllRead{}))
	req.Zero(s.Unread())
}

// An invitation is visible just before the TTL and gone just after.
func TestInvitationExpiry(t *testing.T) {
	req := require.New(t)
	s, now := newState(2)
	s.ApplyPush(wire.Notice{Type: wire.TypeGroupInvitation, SenderID: 1, ReferenceID: 4}, t0)

	*now = t0.Add(59 * time.Second)
	req.Zero(s.Sweep(*now))
	req.Len(s.Snapshot().Records, 1)
	req.Equal(1, s.Unread())

	// Hidden on read even before the sweep runs
	*now = t0.Add(61 * time.Second)
	req.Empty(s.Snapshot().Records)
	req.Zero(s.Unread())

	req.Equal(1, s.Sweep(*now))
	req.Zero(s.Sweep(*now))
}

func TestSweepKeepsOtherTypes(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	s.ApplyPoll([]wire.StoredNotification{stored(1, wire.TypeFollow, 1, 1, t0.Add(-time.Hour), false)})

	req.Zero(s.Sweep(t0))
	req.Len(s.Snapshot().Records, 1)
}

func TestClearAndObservers(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	var unread []int
	s.OnChange(func(snap Snapshot) { unread = append(unread, snap.Unread) })

	s.ApplyPush(chatFrame(1, 7, 1), t0)
	s.ApplyPush(chatFrame(2, 8, 1), t0)
	s.ApplyOptimistic(MarkRead{ID: "nope"})
	s.Clear()
	s.Clear()

	req.Equal([]int{1, 2, 0}, unread)
}

// Pushes and polls racing from different goroutines never lose an unread increment.
func TestConcurrentPushAndPoll(t *testing.T) {
	req := require.New(t)
	s := New(Config{UserID: 2})
	page := []wire.StoredNotification{stored(1, wire.TypeFollow, 1, 1, time.Now(), false)}

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ApplyPush(wire.Notice{Type: wire.TypePostLike, SenderID: 3, ReferenceID: uint(i + 1)}, time.Now())
		}()
		go func() {
			defer wg.Done()
			s.ApplyPoll(page)
		}()
	}
	wg.Wait()

	req.Len(s.Snapshot().Records, 101)
	req.Equal(101, s.Unread())
}

func TestApplyPoll_ReportsReadsTheServerMissed(t *testing.T) {
	req := require.New(t)
	s, _ := newState(2)
	rec, _ := s.ApplyPush(chatFrame(1, 7, 1), t0)
	s.ApplyOptimistic(MarkRead{ID: rec.ID})

	unsynced := s.ApplyPoll([]wire.StoredNotification{
		stored(10, wire.NotificationMessage, 7, 1, t0, false),
		stored(11, wire.TypeFollow, 3, 3, t0, true),
	})

	req.Equal([]uint{10}, unsynced)
}
