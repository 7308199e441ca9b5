package service

import (
	"context"
	"time"

	"socialpulse/internal/models"
)

// NotificationStore is the persistence the notification service needs;
// repository.NotificationRepository implements it.
type NotificationStore interface {
	CreateBatch(ctx context.Context, list []models.Notification) error
	ListByUserID(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) (bool, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	DeleteOlderThan(ctx context.Context, userID uint, notifType string, cutoff time.Time) (int64, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.User, error)
	UpdateFCMToken(ctx context.Context, id uint, token string) error
}

type AudienceStore interface {
	ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error)
	IsGroupConversation(ctx context.Context, conversationID uint) (bool, error)
	MemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	AddFollow(ctx context.Context, followerID, followeeID uint) (bool, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.ChatMessage) error
}

// Pusher delivers a mobile push; FCMService implements it.
type Pusher interface {
	SendToUser(ctx context.Context, fcmToken, notifType, title, body string, data map[string]string) error
}
