package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

const defaultPageSize = 200

type MessageService struct {
	chatRepo    repository.ChatRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	notifier    realtime.Notifier
	pageSize    int
	now         func() time.Time
}

func NewMessageService(
	chatRepo repository.ChatRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	notifier realtime.Notifier,
) *MessageService {
	return &MessageService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		notifier:    notifier,
		pageSize:    defaultPageSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithPageSize caps how many messages List returns. Non-positive values
// keep the default.
func (s *MessageService) WithPageSize(n int) *MessageService {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

type SendMessageInput struct {
	ChatID      string             `json:"chatId" validate:"required"`
	ReceiverID  string             `json:"receiverId" validate:"required"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"messageType" validate:"omitempty,oneof=text image file voice video"`
	FileURL     string             `json:"fileUrl,omitempty" validate:"omitempty,max=2048"`
	FileName    string             `json:"fileName,omitempty" validate:"omitempty,max=255"`
	FileSize    int64              `json:"fileSize,omitempty" validate:"gte=0"`
	FileType    string             `json:"fileType,omitempty" validate:"omitempty,max=100"`
	Duration    int                `json:"duration,omitempty" validate:"gte=0"`
	ReplyToID   *string            `json:"replyToId,omitempty"`
	ScheduledAt *time.Time         `json:"scheduledAt,omitempty"`
}

func (in SendMessageInput) attachment() models.Attachment {
	return models.Attachment{
		FileURL:  in.FileURL,
		FileName: in.FileName,
		FileSize: in.FileSize,
		FileType: in.FileType,
		Duration: in.Duration,
	}
}

// SendResult reports what happened to a send. Delivered means the receiver
// had live channels; it says nothing about receipt.
type SendResult struct {
	Message   *models.Message
	Scheduled bool
	Delivered bool
}

// resolveContent applies the placeholder text used for attachments sent
// without a caption.
func resolveContent(content string, kind models.MessageType) (string, error) {
	if content != "" {
		return content, nil
	}
	switch kind {
	case models.VoiceMessage:
		return "Voice message", nil
	case models.FileMessage:
		return "File", nil
	case models.VideoMessage:
		return "Video", nil
	default:
		return "", invalidf("message content is required")
	}
}

// scheduleFor keeps scheduledAt only when it lies in the future.
func scheduleFor(scheduledAt *time.Time, now time.Time) *time.Time {
	if scheduledAt == nil || models.ShouldDispatchNow(scheduledAt, now) {
		return nil
	}
	at := scheduledAt.UTC()
	return &at
}

func (s *MessageService) Send(ctx context.Context, senderID string, in SendMessageInput) (*SendResult, error) {
	chat, err := s.chatRepo.FindByID(ctx, in.ChatID)
	if err != nil {
		return nil, lookup(err, "chat")
	}
	if !chat.HasParticipant(senderID) {
		return nil, forbiddenf("you are not a participant of this chat")
	}
	if in.ReceiverID != chat.Other(senderID) {
		return nil, invalidf("receiver is not the other participant of this chat")
	}

	kind := in.MessageType
	if kind == "" {
		kind = models.TextMessage
	}
	content, err := resolveContent(in.Content, kind)
	if err != nil {
		return nil, err
	}

	now := s.now()
	scheduledAt := scheduleFor(in.ScheduledAt, now)
	message := &models.Message{
		ID:          uuid.NewString(),
		ChatID:      chat.ID,
		SenderID:    senderID,
		ReceiverID:  in.ReceiverID,
		Content:     content,
		MessageType: kind,
		Attachment:  in.attachment(),
		ReplyToID:   in.ReplyToID,
		CreatedAt:   now,
		ScheduledAt: scheduledAt,
		Dispatched:  scheduledAt == nil,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	// A new message brings a chat back for a participant who hid it.
	if err := s.chatRepo.Unhide(ctx, chat.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("chat_id", chat.ID).Msg("failed to restore hidden chat")
	}

	result := &SendResult{Message: message, Scheduled: !message.Dispatched}
	if message.Dispatched {
		result.Delivered = s.notifier.Deliver(ctx, message.ReceiverID, realtime.NewMessage{MessageResponse: message.ToResponse()})
	}
	return result, nil
}

// MarkRead records that readerID has read messageID. The read timestamp is
// set once; later calls return the message unchanged and emit nothing.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID string) (*models.Message, error) {
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, lookup(err, "message")
	}
	if message.ReceiverID != readerID {
		return nil, forbiddenf("only the receiver can mark a message as read")
	}
	if !message.Dispatched {
		return nil, notFoundf("message not found")
	}
	if message.ReadAt != nil {
		return message, nil
	}

	at := s.now()
	won, err := s.messageRepo.MarkRead(ctx, message.ID, readerID, at)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another request flipped it first; report its timestamp.
		return s.messageRepo.FindByID(ctx, messageID)
	}

	message.ReadAt = &at
	s.notifier.Deliver(ctx, message.SenderID, realtime.MessageRead{MessageID: message.ID, ReadAt: at})
	return message, nil
}

// MarkAllRead marks every unread message addressed to userID in the chat and
// notifies the other participant once with the count.
func (s *MessageService) MarkAllRead(ctx context.Context, userID, chatID string) (int64, error) {
	chat, err := s.participantChat(ctx, userID, chatID)
	if err != nil {
		return 0, err
	}

	count, err := s.messageRepo.MarkAllRead(ctx, chat.ID, userID, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.notifier.Deliver(ctx, chat.Other(userID), realtime.MessagesRead{ConversationID: chat.ID, Count: count})
	}
	return count, nil
}

// List returns the chat as userID should see it. Safe to call repeatedly;
// clients treat the result as authoritative.
func (s *MessageService) List(ctx context.Context, userID, chatID string, limit int) ([]models.Message, error) {
	if _, err := s.participantChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	return s.messageRepo.ListForViewer(ctx, chatID, userID, limit)
}

// UnreadCount is derived on every call.
func (s *MessageService) UnreadCount(ctx context.Context, userID, chatID string) (int64, error) {
	if _, err := s.participantChat(ctx, userID, chatID); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, chatID, userID)
}

type DeleteMode string

const (
	DeleteForMe   DeleteMode = "me"
	DeleteForBoth DeleteMode = "both"
)

func ParseDeleteMode(raw string) (DeleteMode, error) {
	switch DeleteMode(raw) {
	case "", DeleteForMe:
		return DeleteForMe, nil
	case DeleteForBoth:
		return DeleteForBoth, nil
	default:
		return "", invalidf("delete type must be me or both")
	}
}

// Delete hides a message for userID, or removes it for both participants
// when the sender asks.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string, mode DeleteMode) error {
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return lookup(err, "message")
	}
	if message.SenderID != userID && message.ReceiverID != userID {
		return forbiddenf("you cannot delete this message")
	}
	if message.ReceiverID == userID && !message.Dispatched {
		return notFoundf("message not found")
	}
	return s.deleteOne(ctx, userID, message, mode)
}

func (s *MessageService) deleteOne(ctx context.Context, userID string, message *models.Message, mode DeleteMode) error {
	if mode != DeleteForBoth {
		return s.messageRepo.Hide(ctx, message.ID, userID)
	}
	if message.SenderID != userID {
		return forbiddenf("only the sender can delete a message for both")
	}
	if err := s.messageRepo.Delete(ctx, message.ID); err != nil {
		return err
	}
	if message.Dispatched {
		s.notifier.Deliver(ctx, message.ReceiverID, realtime.MessageDeleted{MessageID: message.ID, ChatID: message.ChatID})
	}
	return nil
}

// BulkDelete applies Delete to each id. Every message must involve userID.
// For DeleteForBoth, messages userID did not send are skipped. Unknown ids
// are ignored. Returns the number of messages affected.
func (s *MessageService) BulkDelete(ctx context.Context, userID string, messageIDs []string, mode DeleteMode) (int, error) {
	if len(messageIDs) == 0 {
		return 0, invalidf("no messages selected")
	}

	messages := make([]*models.Message, 0, len(messageIDs))
	for _, id := range messageIDs {
		message, err := s.messageRepo.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if message.SenderID != userID && message.ReceiverID != userID {
			return 0, forbiddenf("you cannot delete some of these messages")
		}
		if message.ReceiverID == userID && !message.Dispatched {
			continue
		}
		messages = append(messages, message)
	}

	affected := 0
	for _, message := range messages {
		if mode == DeleteForBoth && message.SenderID != userID {
			continue
		}
		if err := s.deleteOne(ctx, userID, message, mode); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}

func (s *MessageService) participantChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, lookup(err, "chat")
	}
	if !chat.HasParticipant(userID) {
		return nil, forbiddenf("you are not a participant of this chat")
	}
	return chat, nil
}
