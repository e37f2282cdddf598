package repository

import (
	"context"
	"errors"

	"github.com/noteduco342/om-relay/internal/models"
	"gorm.io/gorm"
)

type ChatRequestRepository struct {
	db *gorm.DB
}

func NewChatRequestRepository(db *gorm.DB) *ChatRequestRepository {
	return &ChatRequestRepository{db: db}
}

func betweenPair(db *gorm.DB, a, b string) *gorm.DB {
	return db.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
}

// Create stores request. A pending request fails with ErrConflict when the
// pair already has one in either direction; the partial unique index on
// pair_key backs the check against concurrent creates.
func (r *ChatRequestRepository) Create(ctx context.Context, request *models.ChatRequest) error {
	request.PairKey = models.RequestPairKey(request.SenderID, request.ReceiverID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if request.Status == models.RequestPending {
			var pending int64
			err := betweenPair(tx.Model(&models.ChatRequest{}), request.SenderID, request.ReceiverID).
				Where("status = ?", models.RequestPending).
				Count(&pending).Error
			if err != nil {
				return err
			}
			if pending > 0 {
				return ErrConflict
			}
		}
		return tx.Create(request).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// AcceptWithChat moves a pending request to accepted and opens the chat for
// its pair in the same transaction. An existing chat is restored for both
// sides; otherwise chat is created. Returns ErrConflict when the request is
// no longer pending.
func (r *ChatRequestRepository) AcceptWithChat(ctx context.Context, id string, chat *models.Chat) (*models.Chat, error) {
	var opened *models.Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChatRequest{}).
			Where("id = ? AND status = ?", id, models.RequestPending).
			Update("status", models.RequestAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConflict
		}

		chats := NewChatRepository(tx)
		existing, err := chats.FindByPair(ctx, chat.UserAID, chat.UserBID)
		switch {
		case err == nil:
			opened = existing
			return chats.Unhide(ctx, existing.ID)
		case errors.Is(err, ErrNotFound):
			opened = chat
			return chats.Create(ctx, chat)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

func (r *ChatRequestRepository) FindByID(ctx context.Context, id string) (*models.ChatRequest, error) {
	var request models.ChatRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

// FindPendingBetween looks in both directions.
func (r *ChatRequestRepository) FindPendingBetween(ctx context.Context, userA, userB string) (*models.ChatRequest, error) {
	var request models.ChatRequest
	err := betweenPair(r.db.WithContext(ctx), userA, userB).
		Where("status = ?", models.RequestPending).
		First(&request).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

// DeleteResolvedBetween purges accepted and rejected requests so the pair
// can start over.
func (r *ChatRequestRepository) DeleteResolvedBetween(ctx context.Context, userA, userB string) error {
	return betweenPair(r.db.WithContext(ctx), userA, userB).
		Where("status IN ?", []models.ChatRequestStatus{models.RequestAccepted, models.RequestRejected}).
		Delete(&models.ChatRequest{}).Error
}

// TransitionStatus moves a request from one status to another only if it is
// still in from.
func (r *ChatRequestRepository) TransitionStatus(ctx context.Context, id string, from, to models.ChatRequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ChatRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// ListForUser returns every request sent or received by userID, newest first.
func (r *ChatRequestRepository) ListForUser(ctx context.Context, userID string) ([]models.ChatRequest, error) {
	var requests []models.ChatRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}
