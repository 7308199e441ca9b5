package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"socialpulse/internal/domain"
	"socialpulse/internal/models"
	"socialpulse/pkg/wire"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher is satisfied by NotificationService.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event) (int, error)
}

// Types NotifyUser accepts. Follow goes through Follow so the edge is stored.
var directNoticeTypes = []string{
	wire.TypeFollowRequest,
	wire.TypeFollowAccepted,
	wire.TypePostLike,
	wire.TypePostComment,
	wire.TypeGroupInvitation,
	wire.TypeSystem,
}

// ActivityService turns domain actions into events: it resolves who should hear
// about an action and builds the frame they are pushed.
type ActivityService struct {
	audience  AudienceStore
	messages  MessageStore
	users     UserStore
	publisher EventPublisher
	log       *zap.Logger
}

func NewActivityService(audience AudienceStore, messages MessageStore, users UserStore, publisher EventPublisher, log *zap.Logger) *ActivityService {
	return &ActivityService{
		audience:  audience,
		messages:  messages,
		users:     users,
		publisher: publisher,
		log:       log.Named("activity"),
	}
}

// SendMessage stores a chat message and notifies the other participants.
func (s *ActivityService) SendMessage(ctx context.Context, senderID, conversationID uint, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	participants, err := s.audience.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if !lo.Contains(participants, senderID) {
		return nil, ErrNotParticipant
	}
	isGroup, err := s.audience.IsGroupConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	msg := &models.ChatMessage{ConversationID: conversationID, SenderID: senderID, Content: content}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	sender := s.actor(ctx, senderID)
	frame := wire.ChatMessage{
		ID:             msg.ID,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     sender.DisplayName(),
		SenderAvatar:   sender.AvatarURL,
		Content:        content,
		IsGroup:        isGroup,
	}
	s.publish(ctx, domain.NewEvent(senderID, participants, frame))
	return msg, nil
}

// AnnounceGroupActivity notifies group members of a new post, event or comment. A
// zero GroupID announces to the actor's followers instead.
func (s *ActivityService) AnnounceGroupActivity(ctx context.Context, actorID uint, activity wire.GroupActivity) (int, error) {
	if !wire.IsGroupActivity(activity.Type) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, activity.Type)
	}
	var (
		recipients []uint
		err        error
	)
	if activity.GroupID == 0 {
		recipients, err = s.audience.FollowerIDs(ctx, actorID)
		if err != nil {
			return 0, fmt.Errorf("load followers: %w", err)
		}
	} else {
		recipients, err = s.audience.MemberIDs(ctx, activity.GroupID)
		if err != nil {
			return 0, fmt.Errorf("load group members: %w", err)
		}
		if !lo.Contains(recipients, actorID) {
			return 0, ErrNotMember
		}
	}
	actor := s.actor(ctx, actorID)
	activity.CreatedBy = actorID
	activity.CreatorName = actor.DisplayName()
	return s.publish(ctx, domain.NewEvent(actorID, recipients, activity)), nil
}

// Follow stores the follow edge and notifies the followee. Following twice does
// not notify twice.
func (s *ActivityService) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followeeID == 0 || followeeID == followerID {
		return false, ErrInvalidTarget
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("load followee: %w", err)
	}
	created, err := s.audience.AddFollow(ctx, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("store follow: %w", err)
	}
	if !created {
		return false, nil
	}
	follower := s.actor(ctx, followerID)
	s.publish(ctx, domain.NewEvent(followerID, []uint{followeeID}, wire.Notice{
		Type:         wire.TypeFollow,
		SenderID:     followerID,
		SenderName:   follower.DisplayName(),
		SenderAvatar: follower.AvatarURL,
		ReferenceID:  followerID,
		Content:      follower.DisplayName() + " started following you",
	}))
	return true, nil
}

// NotifyUser sends one of the single-recipient notices.
func (s *ActivityService) NotifyUser(ctx context.Context, actorID, targetID uint, notifType string, referenceID uint, content string) (int, error) {
	if !lo.Contains(directNoticeTypes, notifType) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, notifType)
	}
	if targetID == 0 || targetID == actorID {
		return 0, ErrInvalidTarget
	}
	actor := s.actor(ctx, actorID)
	if strings.TrimSpace(content) == "" {
		content = defaultNoticeContent(notifType, actor.DisplayName())
	}
	return s.publish(ctx, domain.NewEvent(actorID, []uint{targetID}, wire.Notice{
		Type:         notifType,
		SenderID:     actorID,
		SenderName:   actor.DisplayName(),
		SenderAvatar: actor.AvatarURL,
		ReferenceID:  referenceID,
		Content:      content,
	})), nil
}

func defaultNoticeContent(notifType, name string) string {
	switch notifType {
	case wire.TypeFollowRequest:
		return name + " requested to follow you"
	case wire.TypeFollowAccepted:
		return name + " accepted your follow request"
	case wire.TypePostLike:
		return name + " liked your post"
	case wire.TypePostComment:
		return name + " commented on your post"
	case wire.TypeGroupInvitation:
		return name + " invited you to a group"
	}
	return ""
}

// actor loads display data; a missing profile still produces a notification.
func (s *ActivityService) actor(ctx context.Context, userID uint) *models.User {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Debug("actor profile unavailable", zap.Uint("user_id", userID), zap.Error(err))
		return &models.User{ID: userID}
	}
	return u
}

// publish is fire-and-forget for the caller: the domain action already succeeded.
func (s *ActivityService) publish(ctx context.Context, evt domain.Event) int {
	delivered, err := s.publisher.Publish(ctx, evt)
	if err != nil {
		s.log.Error("publish event", zap.String("type", evt.Type), zap.Error(err))
	}
	return delivered
}
