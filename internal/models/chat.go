package models

import (
	"time"

	"gorm.io/gorm"
)

type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;index" json:"user_id"`
	IsGroup        bool      `json:"is_group"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

type ChatMessage struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index" json:"sender_id"`
	Content        string         `gorm:"type:text" json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Sender User `gorm:"foreignKey:SenderID" json:"-"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
