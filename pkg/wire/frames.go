// Package wire defines the JSON frames exchanged over the per-user notification socket.
//
// Every frame is an object whose "type" field selects the variant. Decode turns raw
// frames into one of the concrete Event types below; types it does not know decode to
// Unknown so that newer servers can talk to older clients.
package wire

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame types.
const (
	TypeRegisterGlobal   = "register_global"
	TypeRegisteredGlobal = "registered_global"
	TypeConnected        = "connected"

	TypeChatMessage     = "chat_message"
	TypePostCreated     = "post_created"
	TypeEventCreated    = "event_created"
	TypeCommentCreated  = "comment_created"
	TypeFollow          = "follow"
	TypeFollowRequest   = "follow_request"
	TypeFollowAccepted  = "follow_accepted"
	TypePostLike        = "post_like"
	TypePostComment     = "post_comment"
	TypeGroupInvitation = "group_invitation"
	TypeSystem          = "system"
)

var (
	ErrMalformed   = errors.New("wire: malformed frame")
	ErrMissingType = errors.New("wire: frame has no type")
	ErrUnknownKind = errors.New("wire: unsupported kind for variant")
)

// Event is one decoded frame.
type Event interface {
	EventType() string
}

// RegisterGlobal is the first frame a client sends after the socket opens.
type RegisterGlobal struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
}

func (RegisterGlobal) EventType() string { return TypeRegisterGlobal }

// RegisteredGlobal acknowledges a RegisterGlobal.
type RegisteredGlobal struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
}

func (RegisteredGlobal) EventType() string { return TypeRegisteredGlobal }

type Connected struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (Connected) EventType() string { return TypeConnected }

type ChatMessage struct {
	Type           string `json:"type"`
	ID             uint   `json:"id"`
	ConversationID uint   `json:"conversation_id"`
	SenderID       uint   `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	SenderAvatar   string `json:"sender_avatar,omitempty"`
	Content        string `json:"content"`
	IsGroup        bool   `json:"is_group"`
}

func (ChatMessage) EventType() string { return TypeChatMessage }

// GroupActivity covers post_created, event_created and comment_created. Type carries
// the kind; only the id fields relevant to that kind are set.
type GroupActivity struct {
	Type        string `json:"type"`
	CreatedBy   uint   `json:"created_by"`
	CreatorName string `json:"creator_name,omitempty"`
	GroupID     uint   `json:"group_id"`
	PostID      uint   `json:"post_id,omitempty"`
	EventID     uint   `json:"event_id,omitempty"`
	CommentID   uint   `json:"comment_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
}

func (g GroupActivity) EventType() string { return g.Type }

// Notice covers the single-recipient social notifications (follows, likes,
// invitations, system messages).
type Notice struct {
	Type         string `json:"type"`
	SenderID     uint   `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
	ReferenceID  uint   `json:"reference_id,omitempty"`
	Content      string `json:"content,omitempty"`
}

func (n Notice) EventType() string { return n.Type }

// Unknown is what Decode returns for a type it does not recognise.
type Unknown struct {
	Type string
}

func (u Unknown) EventType() string { return u.Type }

// IsGroupActivity reports whether t is one of the group broadcast kinds.
func IsGroupActivity(t string) bool {
	switch t {
	case TypePostCreated, TypeEventCreated, TypeCommentCreated:
		return true
	}
	return false
}

// IsNotice reports whether t is one of the kinds carried by Notice.
func IsNotice(t string) bool {
	switch t {
	case TypeFollow, TypeFollowRequest, TypeFollowAccepted, TypePostLike,
		TypePostComment, TypeGroupInvitation, TypeSystem:
		return true
	}
	return false
}

// Encode serializes e with its "type" field filled in.
func Encode(e Event) ([]byte, error) {
	var v any
	switch f := e.(type) {
	case RegisterGlobal:
		f.Type = TypeRegisterGlobal
		v = f
	case RegisteredGlobal:
		f.Type = TypeRegisteredGlobal
		v = f
	case Connected:
		f.Type = TypeConnected
		v = f
	case ChatMessage:
		f.Type = TypeChatMessage
		v = f
	case GroupActivity:
		if !IsGroupActivity(f.Type) {
			return nil, fmt.Errorf("%w: group activity %q", ErrUnknownKind, f.Type)
		}
		v = f
	case Notice:
		if !IsNotice(f.Type) {
			return nil, fmt.Errorf("%w: notice %q", ErrUnknownKind, f.Type)
		}
		v = f
	case nil:
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, e)
	}
	return json.Marshal(v)
}

// Decode parses one frame. A frame with an unrecognised type is not an error; it
// comes back as Unknown.
func Decode(data []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case env.Type == "":
		return nil, ErrMissingType
	case env.Type == TypeRegisterGlobal:
		return decodeAs[RegisterGlobal](data)
	case env.Type == TypeRegisteredGlobal:
		return decodeAs[RegisteredGlobal](data)
	case env.Type == TypeConnected:
		return decodeAs[Connected](data)
	case env.Type == TypeChatMessage:
		return decodeAs[ChatMessage](data)
	case IsGroupActivity(env.Type):
		return decodeAs[GroupActivity](data)
	case IsNotice(env.Type):
		return decodeAs[Notice](data)
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
