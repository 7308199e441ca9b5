package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"socialpulse/config"
	"socialpulse/internal/domain"
	"socialpulse/internal/models"
	"socialpulse/internal/ws"
	"socialpulse/pkg/wire"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// NotificationService persists a notification for every recipient of an event and
// then hands the event to the router. Rows are written before the push so a client
// that misses the push still finds the notification on its next poll.
type NotificationService struct {
	repo          NotificationStore
	users         UserStore
	publisher     ws.Publisher
	push          Pusher
	invitationTTL time.Duration
	pageSize      int
	now           func() time.Time
	log           *zap.Logger
}

// NewNotificationService wires the service. push may be nil when mobile push is not
// configured.
func NewNotificationService(repo NotificationStore, users UserStore, publisher ws.Publisher, push Pusher, cfg config.HubConfig, log *zap.Logger) *NotificationService {
	s := &NotificationService{
		repo:          repo,
		users:         users,
		publisher:     publisher,
		push:          push,
		invitationTTL: cfg.InvitationTTL,
		pageSize:      cfg.NotificationsPage,
		now:           time.Now,
		log:           log.Named("notifications"),
	}
	if s.invitationTTL <= 0 {
		s.invitationTTL = domain.DefaultInvitationTTL
	}
	if s.pageSize <= 0 {
		s.pageSize = domain.DefaultNotificationsPage
	}
	return s
}

// Publish stores one row per recipient, pushes to whoever is online and returns how
// many sockets accepted the frame.
func (s *NotificationService) Publish(ctx context.Context, evt domain.Event) (int, error) {
	desc, ok := wire.Describe(evt.Frame)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotNotification, evt.Type)
	}
	recipients := evt.Recipients()
	if len(recipients) == 0 {
		return 0, nil
	}
	createdAt := s.now()
	rows := lo.Map(recipients, func(userID uint, _ int) models.Notification {
		return models.Notification{
			UserID:       userID,
			Type:         desc.Type,
			ReferenceID:  desc.ReferenceID,
			SenderID:     desc.Sender.ID,
			SenderName:   desc.Sender.Name,
			SenderAvatar: desc.Sender.Avatar,
			Content:      desc.Content,
			CreatedAt:    createdAt,
		}
	})
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("persist notifications: %w", err)
	}

	delivered := s.publisher.Publish(ctx, evt)
	s.pushMobile(ctx, recipients, desc)
	return delivered, nil
}

func (s *NotificationService) pushMobile(ctx context.Context, recipients []uint, desc wire.Descriptor) {
	if s.push == nil || s.users == nil {
		return
	}
	users, err := s.users.GetByIDs(ctx, recipients)
	if err != nil {
		s.log.Warn("load push recipients", zap.Error(err))
		return
	}
	title := pushTitle(desc)
	data := map[string]string{
		"reference_id": strconv.FormatUint(uint64(desc.ReferenceID), 10),
		"sender_id":    strconv.FormatUint(uint64(desc.Sender.ID), 10),
	}
	for _, userID := range recipients {
		u, ok := users[userID]
		if !ok || u.FCMToken == "" {
			continue
		}
		if err := s.push.SendToUser(ctx, u.FCMToken, desc.Type, title, desc.Content, data); err != nil {
			s.log.Debug("mobile push failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
}

func pushTitle(desc wire.Descriptor) string {
	name := desc.Sender.Name
	if name == "" {
		name = "Someone"
	}
	switch desc.Type {
	case wire.NotificationMessage:
		return "New message from " + name
	case wire.NotificationGroupPost:
		return name + " posted in your group"
	case wire.NotificationGroupEvent:
		return name + " created an event"
	case wire.NotificationGroupComment:
		return name + " commented in your group"
	case wire.TypeGroupInvitation:
		return name + " invited you to a group"
	case wire.TypeSystem:
		return "Notice"
	}
	return "New notification"
}

// List returns the newest notifications first. Expired group invitations are hidden
// even before the purge job removes them.
func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]wire.StoredNotification, error) {
	switch {
	case limit <= 0:
		limit = s.pageSize
	case limit > domain.MaxNotificationsPage:
		limit = domain.MaxNotificationsPage
	}
	rows, err := s.repo.ListByUserID(ctx, userID, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	cutoff := s.now().Add(-s.invitationTTL)
	return lo.FilterMap(rows, func(n models.Notification, _ int) (wire.StoredNotification, bool) {
		if n.Type == wire.TypeGroupInvitation && n.CreatedAt.Before(cutoff) {
			return wire.StoredNotification{}, false
		}
		return n.ToWire(), true
	}), nil
}

func (s *NotificationService) Unread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	found, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !found {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// CleanupExpired removes the caller's group invitations older than the TTL.
func (s *NotificationService) CleanupExpired(ctx context.Context, userID uint) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, userID, wire.TypeGroupInvitation, s.now().Add(-s.invitationTTL))
}

// PurgeExpired is CleanupExpired for every user.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, 0, wire.TypeGroupInvitation, s.now().Add(-s.invitationTTL))
}

// RegisterDevice stores the user's FCM token; an empty token turns mobile push off.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uint, token string) error {
	return s.users.UpdateFCMToken(ctx, userID, token)
}
