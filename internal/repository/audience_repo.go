package repository

import (
	"context"

	"socialpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AudienceRepository answers "who should see this": conversation participants, group
// members and followers.
type AudienceRepository struct {
	db *gorm.DB
}

func NewAudienceRepository(db *gorm.DB) *AudienceRepository {
	return &AudienceRepository{db: db}
}

func (r *AudienceRepository) ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsGroupConversation reports whether the conversation was created as a group chat.
func (r *AudienceRepository) IsGroupConversation(ctx context.Context, conversationID uint) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND is_group = ?", conversationID, true).
		Count(&c).Error
	return c > 0, err
}

func (r *AudienceRepository) MemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// FollowerIDs lists the users following userID.
func (r *AudienceRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// AddFollow reports false when the edge already existed.
func (r *AudienceRepository) AddFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
	return res.RowsAffected > 0, res.Error
}
