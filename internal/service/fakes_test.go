package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"socialpulse/internal/domain"
	"socialpulse/internal/models"

	"gorm.io/gorm"
)

type memNotifications struct {
	mu     sync.Mutex
	nextID uint
	rows   []models.Notification
	err    error
}

func (m *memNotifications) CreateBatch(_ context.Context, list []models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, n := range list {
		m.nextID++
		n.ID = m.nextID
		m.rows = append(m.rows, n)
	}
	return nil
}

func (m *memNotifications) ListByUserID(_ context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for i := range m.rows {
		if m.rows[i].UserID == userID && !m.rows[i].IsRead {
			m.rows[i].IsRead = true
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) DeleteOlderThan(_ context.Context, userID uint, notifType string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []models.Notification
	var removed int64
	for _, n := range m.rows {
		if n.Type == notifType && n.CreatedAt.Before(cutoff) && (userID == 0 || n.UserID == userID) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	m.rows = kept
	return removed, nil
}

func (m *memNotifications) forUser(userID uint) []models.Notification {
	out, _ := m.ListByUserID(context.Background(), userID, 1000, 0)
	return out
}

type memUsers struct {
	mu    sync.Mutex
	users map[uint]*models.User
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: make(map[uint]*models.User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByIDs(_ context.Context, ids []uint) (map[uint]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint]*models.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memUsers) UpdateFCMToken(_ context.Context, id uint, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.FCMToken = token
	return nil
}

type memAudience struct {
	participants map[uint][]uint
	groupConv    map[uint]bool
	members      map[uint][]uint
	follows      map[[2]uint]bool
	messages     []models.ChatMessage
}

func newMemAudience() *memAudience {
	return &memAudience{
		participants: make(map[uint][]uint),
		groupConv:    make(map[uint]bool),
		members:      make(map[uint][]uint),
		follows:      make(map[[2]uint]bool),
	}
}

func (m *memAudience) ParticipantIDs(_ context.Context, conversationID uint) ([]uint, error) {
	return m.participants[conversationID], nil
}

func (m *memAudience) IsGroupConversation(_ context.Context, conversationID uint) (bool, error) {
	return m.groupConv[conversationID], nil
}

func (m *memAudience) MemberIDs(_ context.Context, groupID uint) ([]uint, error) {
	return m.members[groupID], nil
}

func (m *memAudience) FollowerIDs(_ context.Context, userID uint) ([]uint, error) {
	var out []uint
	for edge := range m.follows {
		if edge[1] == userID {
			out = append(out, edge[0])
		}
	}
	return out, nil
}

func (m *memAudience) AddFollow(_ context.Context, followerID, followeeID uint) (bool, error) {
	key := [2]uint{followerID, followeeID}
	if m.follows[key] {
		return false, nil
	}
	m.follows[key] = true
	return true, nil
}

func (m *memAudience) CreateMessage(_ context.Context, msg *models.ChatMessage) error {
	msg.ID = uint(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return nil
}

// recordingPublisher stands in for the router.
type recordingPublisher struct {
	mu        sync.Mutex
	events    []domain.Event
	delivered int
}

func (p *recordingPublisher) Publish(_ context.Context, evt domain.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.delivered
}

type recordingPusher struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (p *recordingPusher) SendToUser(_ context.Context, token, _, _, _ string, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	return p.err
}

// capturingPublisher stands in for the notification service.
type capturingPublisher struct {
	events []domain.Event
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, evt domain.Event) (int, error) {
	p.events = append(p.events, evt)
	return len(evt.Recipients()), p.err
}

var errStore = errors.New("store unavailable")
