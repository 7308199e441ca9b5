package models

import (
	"time"

	"gorm.io/gorm"
)

// User holds the profile fields notifications need: display name, avatar and the
// device token for mobile push. Accounts are owned by the account service.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:64;not null;default:''" json:"username"`
	AvatarURL string         `gorm:"size:512" json:"avatar_url"`
	FCMToken  string         `gorm:"size:512" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName falls back to a neutral label for users without a username.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return "Someone"
	}
	return u.Username
}
