package repository

import (
	"context"

	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create stores chat with its participants in storage order.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	chat.UserAID, chat.UserBID = models.OrderedPair(chat.UserAID, chat.UserBID)
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *ChatRepository) FindByID(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (r *ChatRepository) FindByPair(ctx context.Context, userA, userB string) (*models.Chat, error) {
	a, b := models.OrderedPair(userA, userB)
	var chat models.Chat
	if err := r.db.WithContext(ctx).Where("user_a_id = ? AND user_b_id = ?", a, b).First(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// ListVisible returns the user's chats that they have not hidden, newest first.
func (r *ChatRepository) ListVisible(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?)", userID, userID).
		Where("NOT EXISTS (SELECT 1 FROM chat_hidden h WHERE h.chat_id = chats.id AND h.user_id = ?)", userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *ChatRepository) IsHidden(ctx context.Context, chatID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatHidden{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) Hide(ctx context.Context, chatID, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ChatHidden{ChatID: chatID, UserID: userID}).Error
}

// Unhide restores the chat for both participants.
func (r *ChatRepository) Unhide(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.ChatHidden{}).Error
}

func (r *ChatRepository) DeleteWithHistory(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM message_hidden WHERE message_id IN (SELECT id FROM messages WHERE chat_id = ?)", chat.ID,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			chat.UserAID, chat.UserBID, chat.UserBID, chat.UserAID,
		).Delete(&models.ChatRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.ChatHidden{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, "id = ?", chat.ID).Error
	})
}
