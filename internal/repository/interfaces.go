package repository

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
)

// UserRepositoryInterface defines the contract for user lookups. Accounts
// are created by the auth service; Upsert exists for seeding and tests.
type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// ChatRepositoryInterface defines the contract for 1:1 conversations
type ChatRepositoryInterface interface {
	Create(ctx context.Context, chat *models.Chat) error
	FindByID(ctx context.Context, id string) (*models.Chat, error)
	FindByPair(ctx context.Context, userA, userB string) (*models.Chat, error)
	ListVisible(ctx context.Context, userID string) ([]models.Chat, error)
	IsHidden(ctx context.Context, chatID, userID string) (bool, error)
	Hide(ctx context.Context, chatID, userID string) error
	Unhide(ctx context.Context, chatID string) error
	// DeleteWithHistory removes the chat, its messages and the chat requests
	// between its participants in one transaction.
	DeleteWithHistory(ctx context.Context, chat *models.Chat) error
}

// MessageRepositoryInterface defines the contract for direct messages.
// MarkRead and MarkDispatched are conditional: they report true only for
// the single caller that changed the row.
type MessageRepositoryInterface interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListForViewer(ctx context.Context, chatID, viewerID string, limit int) ([]models.Message, error)
	LastVisible(ctx context.Context, chatID, viewerID string) (*models.Message, error)
	MarkRead(ctx context.Context, id, receiverID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, chatID, receiverID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, chatID, receiverID string) (int64, error)
	Hide(ctx context.Context, messageID, userID string) error
	Delete(ctx context.Context, id string) error
	FindDue(ctx context.Context, now time.Time, senderID string, limit int) ([]models.Message, error)
	MarkDispatched(ctx context.Context, id string) (bool, error)
}

// GroupRepositoryInterface defines the contract for group membership and mutes
type GroupRepositoryInterface interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id string) (*models.Group, error)
	AddMember(ctx context.Context, groupID, userID string, role models.GroupRole) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	Delete(ctx context.Context, groupID string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]models.Group, error)
	FindMute(ctx context.Context, groupID, userID string) (*models.GroupMute, error)
	UpsertMute(ctx context.Context, mute *models.GroupMute) error
	DeleteMute(ctx context.Context, groupID, userID string) error
}

// GroupMessageRepositoryInterface defines the contract for group messages.
// Writes that make a message visible also bump unread counters for every
// member except the sender, in the same transaction.
type GroupMessageRepositoryInterface interface {
	CreateWithUnread(ctx context.Context, message *models.GroupMessage) error
	FindByID(ctx context.Context, id string) (*models.GroupMessage, error)
	ListDispatched(ctx context.Context, groupID string, limit int) ([]models.GroupMessage, error)
	LastDispatched(ctx context.Context, groupID string) (*models.GroupMessage, error)
	FindDue(ctx context.Context, now time.Time, senderID string, limit int) ([]models.GroupMessage, error)
	DispatchWithUnread(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// GroupUnreadRepositoryInterface defines the contract for explicit group counters
type GroupUnreadRepositoryInterface interface {
	Get(ctx context.Context, userID, groupID string) (int64, error)
	ListForUser(ctx context.Context, userID string) (map[string]int64, error)
	Reset(ctx context.Context, userID, groupID string) error
	IncrementForMembers(ctx context.Context, groupID, exceptUserID string) error
}

// ChatRequestRepositoryInterface defines the contract for chat requests
type ChatRequestRepositoryInterface interface {
	Create(ctx context.Context, request *models.ChatRequest) error
	FindByID(ctx context.Context, id string) (*models.ChatRequest, error)
	FindPendingBetween(ctx context.Context, userA, userB string) (*models.ChatRequest, error)
	DeleteResolvedBetween(ctx context.Context, userA, userB string) error
	TransitionStatus(ctx context.Context, id string, from, to models.ChatRequestStatus) (bool, error)
	AcceptWithChat(ctx context.Context, id string, chat *models.Chat) (*models.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]models.ChatRequest, error)
}
