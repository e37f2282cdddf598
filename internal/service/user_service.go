package service

import (
	"context"
	"strings"

	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/repository"
)

const maxPresenceBatch = 100

type UserService struct {
	userRepo repository.UserRepositoryInterface
	presence PresenceChecker
}

func NewUserService(userRepo repository.UserRepositoryInterface, presence PresenceChecker) *UserService {
	return &UserService{userRepo: userRepo, presence: presence}
}

// GetUserByID returns the profile with live presence applied.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, "user")
	}
	resp := user.ToResponse()
	if s.presence != nil {
		resp.IsOnline = s.presence.Online(user.ID)
	}
	return &resp, nil
}

// Presence reports which of the given users hold at least one live channel.
func (s *UserService) Presence(ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if len(out) >= maxPresenceBatch {
			return nil, invalidf("at most %d users per request", maxPresenceBatch)
		}
		out[id] = s.presence != nil && s.presence.Online(id)
	}
	return out, nil
}
