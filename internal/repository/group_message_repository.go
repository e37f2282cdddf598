package repository

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
)

type GroupMessageRepository struct {
	db *gorm.DB
}

func NewGroupMessageRepository(db *gorm.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

// CreateWithUnread inserts message and, when it is already dispatched, bumps
// the unread counters of the other members in the same transaction.
// Scheduled messages are counted when they are dispatched instead.
func (r *GroupMessageRepository) CreateWithUnread(ctx context.Context, message *models.GroupMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		if !message.Dispatched {
			return nil
		}
		return incrementGroupUnread(tx, message.GroupID, message.SenderID)
	})
}

func (r *GroupMessageRepository) FindByID(ctx context.Context, id string) (*models.GroupMessage, error) {
	var message models.GroupMessage
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// ListDispatched returns the newest limit dispatched messages, oldest first.
func (r *GroupMessageRepository) ListDispatched(ctx context.Context, groupID string, limit int) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	q := r.db.WithContext(ctx).
		Where("group_id = ? AND dispatched = ?", groupID, true).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *GroupMessageRepository) LastDispatched(ctx context.Context, groupID string) (*models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND dispatched = ?", groupID, true).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

func (r *GroupMessageRepository) FindDue(ctx context.Context, now time.Time, senderID string, limit int) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	q := r.db.WithContext(ctx).
		Where("dispatched = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", false, now)
	if senderID != "" {
		q = q.Where("sender_id = ?", senderID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("scheduled_at ASC").Find(&messages).Error
	return messages, err
}

// DispatchWithUnread flips dispatched and bumps counters atomically. It
// returns false without touching counters if another caller won the flip.
func (r *GroupMessageRepository) DispatchWithUnread(ctx context.Context, id string) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.GroupMessage
		if err := tx.First(&message, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&models.GroupMessage{}).
			Where("id = ? AND dispatched = ?", id, false).
			Update("dispatched", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		won = true
		return incrementGroupUnread(tx, message.GroupID, message.SenderID)
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// Delete removes a message. Counters are not decremented; a reader's next
// reset clears them.
func (r *GroupMessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.GroupMessage{}, "id = ?", id).Error
}
