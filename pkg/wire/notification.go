package wire

import "time"

// Notification types as stored by the server and shown by clients.
const (
	NotificationMessage      = "message"
	NotificationGroupPost    = "group_post"
	NotificationGroupEvent   = "group_event"
	NotificationGroupComment = "group_comment"
)

type Sender struct {
	ID     uint   `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Descriptor is the notification-facing view of a pushed event. The server persists
// it and the client synthesizes a record from it, so (Type, ReferenceID, Sender.ID)
// names the same underlying event on both sides.
type Descriptor struct {
	Type        string
	ReferenceID uint
	Sender      Sender
	Content     string
}

// Describe maps a domain event onto its notification. Handshake frames and unknown
// types are not notifications.
func Describe(e Event) (Descriptor, bool) {
	switch f := e.(type) {
	case ChatMessage:
		return Descriptor{
			Type:        NotificationMessage,
			ReferenceID: f.ConversationID,
			Sender:      Sender{ID: f.SenderID, Name: f.SenderName, Avatar: f.SenderAvatar},
			Content:     f.Content,
		}, true
	case GroupActivity:
		d := Descriptor{
			Sender:  Sender{ID: f.CreatedBy, Name: f.CreatorName},
			Content: f.Content,
		}
		switch f.Type {
		case TypePostCreated:
			d.Type, d.ReferenceID = NotificationGroupPost, f.PostID
		case TypeEventCreated:
			d.Type, d.ReferenceID = NotificationGroupEvent, f.EventID
			if d.Content == "" {
				d.Content = f.Title
			}
		case TypeCommentCreated:
			d.Type, d.ReferenceID = NotificationGroupComment, f.PostID
		default:
			return Descriptor{}, false
		}
		return d, true
	case Notice:
		if !IsNotice(f.Type) {
			return Descriptor{}, false
		}
		return Descriptor{
			Type:        f.Type,
			ReferenceID: f.ReferenceID,
			Sender:      Sender{ID: f.SenderID, Name: f.SenderName, Avatar: f.SenderAvatar},
			Content:     f.Content,
		}, true
	}
	return Descriptor{}, false
}

// StoredNotification is the REST representation of a persisted notification.
type StoredNotification struct {
	ID          uint      `json:"id"`
	Type        string    `json:"type"`
	ReferenceID uint      `json:"reference_id"`
	Sender      Sender    `json:"sender"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type NotificationList struct {
	Notifications []StoredNotification `json:"notifications"`
}

type UnreadCount struct {
	Count int64 `json:"count"`
}

type CleanupResult struct {
	Removed int64 `json:"removed"`
}
