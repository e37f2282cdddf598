package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

type ChatRequestService struct {
	requestRepo repository.ChatRequestRepositoryInterface
	chatRepo    repository.ChatRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	chats       *ChatService
	notifier    realtime.Notifier
}

func NewChatRequestService(
	requestRepo repository.ChatRequestRepositoryInterface,
	chatRepo repository.ChatRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	chats *ChatService,
	notifier realtime.Notifier,
) *ChatRequestService {
	return &ChatRequestService{
		requestRepo: requestRepo,
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		chats:       chats,
		notifier:    notifier,
	}
}

// Create sends a chat request from senderID to receiverID.
func (s *ChatRequestService) Create(ctx context.Context, senderID, receiverID string) (*models.ChatRequestResponse, error) {
	if receiverID == "" || receiverID == senderID {
		return nil, invalidf("a different receiver is required")
	}
	if s.userRepo != nil {
		if _, err := s.userRepo.FindByID(ctx, receiverID); err != nil {
			return nil, lookup(err, "user")
		}
	}

	if _, err := s.requestRepo.FindPendingBetween(ctx, senderID, receiverID); err == nil {
		return nil, conflictf("a chat request is already pending")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.requestRepo.DeleteResolvedBetween(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	if chat, err := s.chatRepo.FindByPair(ctx, senderID, receiverID); err == nil {
		hidden, err := s.chatRepo.IsHidden(ctx, chat.ID, senderID)
		if err != nil {
			return nil, err
		}
		if !hidden {
			return nil, conflictf("a chat with this user already exists")
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	request := &models.ChatRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestPending,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflictf("a chat request is already pending")
		}
		return nil, err
	}

	s.notifier.Deliver(ctx, receiverID, realtime.ChatRequestCreated{ChatRequest: *request})
	return s.withProfiles(ctx, request)
}

func (s *ChatRequestService) List(ctx context.Context, userID string) ([]models.ChatRequestResponse, error) {
	requests, err := s.requestRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatRequestResponse, 0, len(requests))
	for i := range requests {
		resp, err := s.withProfiles(ctx, &requests[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Accept moves a pending request to accepted and creates or restores the
// chat in one write. Only the receiver may accept.
func (s *ChatRequestService) Accept(ctx context.Context, userID, requestID string) (*models.Chat, error) {
	request, err := s.pendingForReceiver(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	chat, err := s.requestRepo.AcceptWithChat(ctx, request.ID, &models.Chat{
		ID:      uuid.NewString(),
		UserAID: request.SenderID,
		UserBID: request.ReceiverID,
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, conflictf("this request was already processed")
	}
	if err != nil {
		return nil, err
	}

	s.notifier.Deliver(ctx, request.SenderID, realtime.ChatRequestAccepted{RequestID: request.ID, Chat: *chat})
	return chat, nil
}

func (s *ChatRequestService) Reject(ctx context.Context, userID, requestID string) error {
	request, err := s.pendingForReceiver(ctx, userID, requestID)
	if err != nil {
		return err
	}
	ok, err := s.requestRepo.TransitionStatus(ctx, request.ID, models.RequestPending, models.RequestRejected)
	if err != nil {
		return err
	}
	if !ok {
		return conflictf("this request was already processed")
	}
	return nil
}

func (s *ChatRequestService) pendingForReceiver(ctx context.Context, userID, requestID string) (*models.ChatRequest, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookup(err, "chat request")
	}
	if request.ReceiverID != userID {
		return nil, forbiddenf("only the receiver can answer this request")
	}
	if request.Status != models.RequestPending {
		return nil, conflictf("this request was already processed")
	}
	return request, nil
}

func (s *ChatRequestService) withProfiles(ctx context.Context, request *models.ChatRequest) (*models.ChatRequestResponse, error) {
	profiles, err := s.chats.profiles(ctx, []string{request.SenderID, request.ReceiverID})
	if err != nil {
		return nil, err
	}
	sender := profiles[request.SenderID]
	receiver := profiles[request.ReceiverID]
	return &models.ChatRequestResponse{ChatRequest: *request, Sender: &sender, Receiver: &receiver}, nil
}
