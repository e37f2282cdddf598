package repository

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/metrics"
	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupUnreadRepository struct {
	db *gorm.DB
}

func NewGroupUnreadRepository(db *gorm.DB) *GroupUnreadRepository {
	return &GroupUnreadRepository{db: db}
}

// incrementGroupUnread adds one to the counter of every member of groupID
// except exceptUserID, creating rows that do not exist yet. tx may be a
// transaction so the bump commits together with the message it counts.
func incrementGroupUnread(tx *gorm.DB, groupID, exceptUserID string) error {
	err := tx.Exec(`
		INSERT INTO group_unreads (user_id, group_id, unread_count, updated_at)
		SELECT user_id, group_id, 1, ? FROM group_members
		WHERE group_id = ? AND user_id <> ?
		ON CONFLICT (user_id, group_id) DO UPDATE
		SET unread_count = group_unreads.unread_count + 1,
			updated_at = excluded.updated_at
	`, time.Now(), groupID, exceptUserID).Error
	if err == nil {
		metrics.GroupCounterUpdates.WithLabelValues("increment").Inc()
	}
	return err
}

func (r *GroupUnreadRepository) IncrementForMembers(ctx context.Context, groupID, exceptUserID string) error {
	return incrementGroupUnread(r.db.WithContext(ctx), groupID, exceptUserID)
}

func (r *GroupUnreadRepository) Get(ctx context.Context, userID, groupID string) (int64, error) {
	var rows []models.GroupUnread
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].UnreadCount, nil
}

func (r *GroupUnreadRepository) ListForUser(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []models.GroupUnread
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupID] = row.UnreadCount
	}
	return out, nil
}

// Reset sets userID's counter for groupID to zero, leaving other members alone.
func (r *GroupUnreadRepository) Reset(ctx context.Context, userID, groupID string) error {
	row := models.GroupUnread{UserID: userID, GroupID: groupID, UnreadCount: 0, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"unread_count": 0, "updated_at": row.UpdatedAt}),
	}).Create(&row).Error
	if err == nil {
		metrics.GroupCounterUpdates.WithLabelValues("reset").Inc()
	}
	return err
}
