package repository

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		// Touch the chat so list ordering follows activity.
		return tx.Model(&models.Chat{}).Where("id = ?", message.ChatID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// visibleTo restricts a messages query to rows viewerID may see: not hidden
// for them, and either dispatched or their own pending sends.
func visibleTo(db *gorm.DB, viewerID string) *gorm.DB {
	return db.
		Where("(messages.dispatched = ? OR messages.sender_id = ?)", true, viewerID).
		Where("NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id = messages.id AND h.user_id = ?)", viewerID)
}

// ListForViewer returns the newest limit visible messages in ascending order.
func (r *MessageRepository) ListForViewer(ctx context.Context, chatID, viewerID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := visibleTo(r.db.WithContext(ctx).Where("messages.chat_id = ?", chatID), viewerID).
		Order("messages.created_at DESC").Order("messages.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) LastVisible(ctx context.Context, chatID, viewerID string) (*models.Message, error) {
	var message models.Message
	err := visibleTo(r.db.WithContext(ctx).Where("messages.chat_id = ?", chatID), viewerID).
		Order("messages.created_at DESC").
		First(&message).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// MarkRead sets read_at only if it is still null. Exactly one concurrent
// caller observes true.
func (r *MessageRepository) MarkRead(ctx context.Context, id, receiverID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND receiver_id = ? AND dispatched = ? AND read_at IS NULL", id, receiverID, true).
		Update("read_at", at)
	return res.RowsAffected == 1, res.Error
}

// MarkAllRead flips every unread, dispatched message addressed to receiverID
// in the chat with one statement and returns how many changed.
func (r *MessageRepository) MarkAllRead(ctx context.Context, chatID, receiverID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND receiver_id = ? AND dispatched = ? AND read_at IS NULL", chatID, receiverID, true).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

// CountUnread derives the 1:1 unread count at read time.
func (r *MessageRepository) CountUnread(ctx context.Context, chatID, receiverID string) (int64, error) {
	var count int64
	err := visibleTo(r.db.WithContext(ctx).Model(&models.Message{}), receiverID).
		Where("messages.chat_id = ? AND messages.receiver_id = ? AND messages.dispatched = ? AND messages.read_at IS NULL",
			chatID, receiverID, true).
		Count(&count).Error
	return count, err
}

func (r *MessageRepository) Hide(ctx context.Context, messageID, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.MessageHidden{MessageID: messageID, UserID: userID}).Error
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.MessageHidden{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Message{}, "id = ?", id).Error
	})
}

// FindDue lists undispatched messages whose schedule has passed. An empty
// senderID matches every sender.
func (r *MessageRepository) FindDue(ctx context.Context, now time.Time, senderID string, limit int) ([]models.Message, error) {
	var messages []models.Message
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

// MarkDispatched flips dispatched false -> true. Only the winning caller
// sees true and is responsible for fan-out.
func (r *MessageRepository) MarkDispatched(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND dispatched = ?", id, false).
		Update("dispatched", true)
	return res.RowsAffected == 1, res.Error
}
