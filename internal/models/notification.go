package models

import (
	"time"

	"socialpulse/pkg/wire"

	"gorm.io/gorm"
)

// Notification is one recipient's copy of a domain event. Rows are written in the
// same request that publishes the push, so polling always finds them.
type Notification struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type         string         `gorm:"size:50;not null;index" json:"type"`
	ReferenceID  uint           `gorm:"index" json:"reference_id"`
	SenderID     uint           `gorm:"index" json:"sender_id"`
	SenderName   string         `gorm:"size:255" json:"sender_name"`
	SenderAvatar string         `gorm:"size:512" json:"sender_avatar"`
	Content      string         `gorm:"type:text" json:"content"`
	IsRead       bool           `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt    time.Time      `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) ToWire() wire.StoredNotification {
	return wire.StoredNotification{
		ID:          n.ID,
		Type:        n.Type,
		ReferenceID: n.ReferenceID,
		Sender:      wire.Sender{ID: n.SenderID, Name: n.SenderName, Avatar: n.SenderAvatar},
		Content:     n.Content,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}
