package server

import (
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
	"github.com/noteduco342/om-relay/internal/service"
	"gorm.io/gorm"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Users      *service.UserService
	Chats      *service.ChatService
	Requests   *service.ChatRequestService
	Messages   *service.MessageService
	Groups     *service.GroupService
	Dispatcher *service.Dispatcher
	// Sweeper is nil when the background sweeper is disabled.
	Sweeper *service.Sweeper
}

// NewServices builds the repositories and services on db. members may be a
// nil-backed cache; presence is answered by the registry.
func NewServices(db *gorm.DB, cfg *config.Config, registry *realtime.Registry, notifier realtime.Notifier, members service.MemberCache) Services {
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	requestRepo := repository.NewChatRequestRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMessageRepo := repository.NewGroupMessageRepository(db)
	groupUnreadRepo := repository.NewGroupUnreadRepository(db)

	chats := service.NewChatService(chatRepo, messageRepo, userRepo, notifier, registry)
	groups := service.NewGroupService(groupRepo, groupMessageRepo, groupUnreadRepo, members, notifier).
		WithPageSize(cfg.Limits.PageSize)
	dispatcher := service.NewDispatcher(messageRepo, groupMessageRepo, groups, notifier, cfg.Scheduler.BatchSize)

	svc := Services{
		Users:      service.NewUserService(userRepo, registry),
		Chats:      chats,
		Requests:   service.NewChatRequestService(requestRepo, chatRepo, userRepo, chats, notifier),
		Messages:   service.NewMessageService(chatRepo, messageRepo, notifier).WithPageSize(cfg.Limits.PageSize),
		Groups:     groups,
		Dispatcher: dispatcher,
	}
	if cfg.Scheduler.Enabled {
		svc.Sweeper = service.NewSweeper(dispatcher, cfg.Scheduler)
	}
	return svc
}
