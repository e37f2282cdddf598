package repository

import (
	"context"

	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string, role models.GroupRole) error {
	member := models.GroupMember{
		GroupID: groupID,
		UserID:  userID,
		Role:    role,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

// RemoveMember drops userID from the group together with the user's unread
// counter and mute for it.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		where := "group_id = ? AND user_id = ?"
		if err := tx.Where(where, groupID, userID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where(where, groupID, userID).Delete(&models.GroupUnread{}).Error; err != nil {
			return err
		}
		return tx.Where(where, groupID, userID).Delete(&models.GroupMute{}).Error
	})
}

// Delete removes the group with its messages, members, counters and mutes.
func (r *GroupRepository) Delete(ctx context.Context, groupID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.GroupMessage{},
			&models.GroupUnread{},
			&models.GroupMute{},
			&models.GroupMember{},
		} {
			if err := tx.Where("group_id = ?", groupID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", groupID).Delete(&models.Group{}).Error
	})
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GroupRepository) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *GroupRepository) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Preload("Members").
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

// FindMute returns nil, nil when the user has no mute record.
func (r *GroupRepository) FindMute(ctx context.Context, groupID, userID string) (*models.GroupMute, error) {
	var mutes []models.GroupMute
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Limit(1).
		Find(&mutes).Error
	if err != nil || len(mutes) == 0 {
		return nil, err
	}
	return &mutes[0], nil
}

func (r *GroupRepository) UpsertMute(ctx context.Context, mute *models.GroupMute) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"until"}),
	}).Create(mute).Error
}

func (r *GroupRepository) DeleteMute(ctx context.Context, groupID, userID string) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMute{}).Error
}
