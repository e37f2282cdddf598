package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

// PresenceChecker reports whether a user has live channels. Satisfied by
// *realtime.Registry.
type PresenceChecker interface {
	Online(userID string) bool
}

type ChatService struct {
	chatRepo    repository.ChatRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	notifier    realtime.Notifier
	presence    PresenceChecker
}

func NewChatService(
	chatRepo repository.ChatRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	notifier realtime.Notifier,
	presence PresenceChecker,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		presence:    presence,
	}
}

// List returns the chats userID has not hidden, each with a derived unread
// count and the newest message userID can see.
func (s *ChatService) List(ctx context.Context, userID string) ([]models.ChatResponse, error) {
	chats, err := s.chatRepo.ListVisible(ctx, userID)
	if err != nil {
		return nil, err
	}

	others := make([]string, 0, len(chats))
	for i := range chats {
		others = append(others, chats[i].Other(userID))
	}
	profiles, err := s.profiles(ctx, others)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatResponse, 0, len(chats))
	for i := range chats {
		chat := &chats[i]
		resp := models.ChatResponse{
			ID:          chat.ID,
			Participant: profiles[chat.Other(userID)],
			CreatedAt:   chat.CreatedAt,
		}
		if last, err := s.messageRepo.LastVisible(ctx, chat.ID, userID); err == nil {
			lr := last.ToResponse()
			resp.LastMessage = &lr
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if resp.UnreadCount, err = s.messageRepo.CountUnread(ctx, chat.ID, userID); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// Open returns the chat between userID and participantID, restoring it if
// either side had hidden it, or creates it.
func (s *ChatService) Open(ctx context.Context, userID, participantID string) (*models.ChatResponse, error) {
	if participantID == "" || participantID == userID {
		return nil, invalidf("a different participant is required")
	}
	if s.userRepo != nil {
		if _, err := s.userRepo.FindByID(ctx, participantID); err != nil {
			return nil, lookup(err, "user")
		}
	}

	chat, err := s.ensureChat(ctx, userID, participantID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, []string{participantID})
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{
		ID:          chat.ID,
		Participant: profiles[participantID],
		CreatedAt:   chat.CreatedAt,
	}, nil
}

func (s *ChatService) ensureChat(ctx context.Context, a, b string) (*models.Chat, error) {
	chat, err := s.chatRepo.FindByPair(ctx, a, b)
	switch {
	case err == nil:
		if err := s.chatRepo.Unhide(ctx, chat.ID); err != nil {
			return nil, err
		}
		return chat, nil
	case errors.Is(err, repository.ErrNotFound):
		chat = &models.Chat{ID: uuid.NewString(), UserAID: a, UserBID: b}
		if err := s.chatRepo.Create(ctx, chat); err != nil {
			return nil, err
		}
		return chat, nil
	default:
		return nil, err
	}
}

type ChatDeleteMode string

const (
	ChatDeleteForMe       ChatDeleteMode = "me"
	ChatDeleteForBoth     ChatDeleteMode = "both"
	ChatDeleteForReceiver ChatDeleteMode = "receiver"
)

func ParseChatDeleteMode(raw string) (ChatDeleteMode, error) {
	switch ChatDeleteMode(raw) {
	case "", ChatDeleteForMe:
		return ChatDeleteForMe, nil
	case ChatDeleteForBoth, ChatDeleteForReceiver:
		return ChatDeleteMode(raw), nil
	default:
		return "", invalidf("delete type must be me, both or receiver")
	}
}

// Delete hides the chat for one side, or removes it with its history and
// any chat requests between the pair so they can request again.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string, mode ChatDeleteMode) error {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return lookup(err, "chat")
	}
	if !chat.HasParticipant(userID) {
		return forbiddenf("you cannot delete this chat")
	}
	other := chat.Other(userID)

	switch mode {
	case ChatDeleteForBoth:
		if err := s.chatRepo.DeleteWithHistory(ctx, chat); err != nil {
			return err
		}
		s.notifier.Deliver(ctx, other, realtime.ChatDeleted{ChatID: chat.ID})
		return nil
	case ChatDeleteForReceiver:
		if err := s.chatRepo.Hide(ctx, chat.ID, other); err != nil {
			return err
		}
		s.notifier.Deliver(ctx, other, realtime.ChatDeleted{ChatID: chat.ID})
		return nil
	default:
		return s.chatRepo.Hide(ctx, chat.ID, userID)
	}
}

// profiles resolves user ids to responses. Users missing from the local
// table still get an entry carrying their id.
func (s *ChatService) profiles(ctx context.Context, ids []string) (map[string]models.UserResponse, error) {
	out := make(map[string]models.UserResponse, len(ids))
	for _, id := range ids {
		out[id] = models.UserResponse{ID: id}
	}
	if s.userRepo != nil && len(ids) > 0 {
		users, err := s.userRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range users {
			out[users[i].ID] = users[i].ToResponse()
		}
	}
	if s.presence != nil {
		for id, resp := range out {
			resp.IsOnline = s.presence.Online(id)
			out[id] = resp
		}
	}
	return out, nil
}
