package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

// MemberCache holds group member lists for fan-out. Satisfied by
// *cache.MemberCache; a miss falls back to the database.
type MemberCache interface {
	Get(ctx context.Context, groupID string) ([]string, bool)
	Set(ctx context.Context, groupID string, memberIDs []string) error
	Invalidate(ctx context.Context, groupID string) error
}

type GroupService struct {
	groupRepo   repository.GroupRepositoryInterface
	messageRepo repository.GroupMessageRepositoryInterface
	unreadRepo  repository.GroupUnreadRepositoryInterface
	members     MemberCache
	notifier    realtime.Notifier
	pageSize    int
	now         func() time.Time
}

func NewGroupService(
	groupRepo repository.GroupRepositoryInterface,
	messageRepo repository.GroupMessageRepositoryInterface,
	unreadRepo repository.GroupUnreadRepositoryInterface,
	members MemberCache,
	notifier realtime.Notifier,
) *GroupService {
	return &GroupService{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		unreadRepo:  unreadRepo,
		members:     members,
		notifier:    notifier,
		pageSize:    defaultPageSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithPageSize caps how many messages Messages returns.
func (s *GroupService) WithPageSize(n int) *GroupService {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// Create makes a group owned by ownerID with the given extra members.
func (s *GroupService) Create(ctx context.Context, ownerID, name string, memberIDs []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("group name is required")
	}
	group := &models.Group{ID: uuid.NewString(), Name: name, OwnerID: ownerID}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}
	if err := s.groupRepo.AddMember(ctx, group.ID, ownerID, models.RoleOwner); err != nil {
		return nil, err
	}
	for _, id := range memberIDs {
		if id == "" || id == ownerID {
			continue
		}
		if err := s.groupRepo.AddMember(ctx, group.ID, id, models.RoleMember); err != nil {
			return nil, err
		}
	}
	return s.groupRepo.FindByID(ctx, group.ID)
}

// AddMember lets the owner add userID. Adding an existing member is a no-op.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, userID string) error {
	if _, err := s.ownedGroup(ctx, actorID, groupID); err != nil {
		return err
	}
	if err := s.groupRepo.AddMember(ctx, groupID, userID, models.RoleMember); err != nil {
		return err
	}
	s.invalidateMembers(ctx, groupID)
	return nil
}

// RemoveMember lets the owner take memberID out of the group. The member
// stops receiving its messages and loses the unread counter for it.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, memberID string) error {
	group, err := s.ownedGroup(ctx, actorID, groupID)
	if err != nil {
		return err
	}
	if memberID == group.OwnerID {
		return invalidf("the group owner cannot be removed")
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, memberID); err != nil {
		return err
	}
	s.invalidateMembers(ctx, groupID)
	return nil
}

// Leave takes userID out of the group. When the owner leaves, the group and
// its messages are deleted; deleted reports that case.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) (deleted bool, err error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return false, lookup(err, "group")
	}
	ok, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, invalidf("you are not a member of this group")
	}

	if group.OwnerID == userID {
		if err := s.groupRepo.Delete(ctx, groupID); err != nil {
			return false, err
		}
		deleted = true
	} else if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return false, err
	}
	s.invalidateMembers(ctx, groupID)
	return deleted, nil
}

// List returns userID's groups with their unread counters and newest
// dispatched message.
func (s *GroupService) List(ctx context.Context, userID string) ([]models.GroupResponse, error) {
	groups, err := s.groupRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.unreadRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.GroupResponse, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		memberIDs, err := s.memberIDs(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		resp := models.GroupResponse{
			ID:          g.ID,
			Name:        g.Name,
			OwnerID:     g.OwnerID,
			MemberIDs:   memberIDs,
			UnreadCount: unread[g.ID],
		}
		if last, err := s.messageRepo.LastDispatched(ctx, g.ID); err == nil {
			lr := last.ToResponse()
			resp.LastMessage = &lr
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

type GroupSendInput struct {
	GroupID     string             `json:"groupId" validate:"required"`
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

type GroupSendResult struct {
	Message   *models.GroupMessage
	Scheduled bool
	// Reached is the number of members with live channels.
	Reached int
}

// Send stores a group message. Immediate messages bump every other member's
// unread counter and are pushed right away. Muted members may only schedule.
func (s *GroupService) Send(ctx context.Context, senderID string, in GroupSendInput) (*GroupSendResult, error) {
	if err := s.requireMember(ctx, in.GroupID, senderID); err != nil {
		return nil, err
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
	if scheduledAt == nil {
		mute, err := s.groupRepo.FindMute(ctx, in.GroupID, senderID)
		if err != nil {
			return nil, err
		}
		if mute.Active(now) {
			minutes := int(math.Ceil(mute.Until.Sub(now).Minutes()))
			return nil, forbiddenf("you are muted in this group for %d more minute(s); scheduled messages are still allowed", minutes)
		}
	}

	message := &models.GroupMessage{
		ID:          uuid.NewString(),
		GroupID:     in.GroupID,
		SenderID:    senderID,
		Content:     content,
		MessageType: kind,
		Attachment: models.Attachment{
			FileURL:  in.FileURL,
			FileName: in.FileName,
			FileSize: in.FileSize,
			FileType: in.FileType,
			Duration: in.Duration,
		},
		ReplyToID:   in.ReplyToID,
		CreatedAt:   now,
		ScheduledAt: scheduledAt,
		Dispatched:  scheduledAt == nil,
	}
	if err := s.messageRepo.CreateWithUnread(ctx, message); err != nil {
		return nil, err
	}

	result := &GroupSendResult{Message: message, Scheduled: !message.Dispatched}
	if message.Dispatched {
		result.Reached = s.fanOut(ctx, message)
	}
	return result, nil
}

// fanOut pushes message to every member except its sender.
func (s *GroupService) fanOut(ctx context.Context, message *models.GroupMessage) int {
	memberIDs, err := s.memberIDs(ctx, message.GroupID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("group_id", message.GroupID).Msg("failed to load group members for fan-out")
		return 0
	}
	recipients := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != message.SenderID {
			recipients = append(recipients, id)
		}
	}
	return s.notifier.DeliverMany(ctx, recipients, realtime.NewGroupMessage{GroupMessageResponse: message.ToResponse()})
}

// Messages returns dispatched messages. Scheduled group messages stay
// invisible to everyone, including the sender, until dispatch.
func (s *GroupService) Messages(ctx context.Context, userID, groupID string, limit int) ([]models.GroupMessage, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	return s.messageRepo.ListDispatched(ctx, groupID, limit)
}

func (s *GroupService) UnreadCount(ctx context.Context, userID, groupID string) (int64, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return 0, err
	}
	return s.unreadRepo.Get(ctx, userID, groupID)
}

// MarkRead zeroes userID's counter for the group. Other members are untouched.
func (s *GroupService) MarkRead(ctx context.Context, userID, groupID string) error {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}
	return s.unreadRepo.Reset(ctx, userID, groupID)
}

// Mute blocks memberID's immediate sends for the given number of minutes.
func (s *GroupService) Mute(ctx context.Context, actorID, groupID, memberID string, minutes int) (*models.GroupMute, error) {
	group, err := s.ownedGroup(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	if minutes < 1 {
		return nil, invalidf("minutes must be at least 1")
	}
	if memberID == group.OwnerID {
		return nil, invalidf("the group owner cannot be muted")
	}
	if err := s.requireMember(ctx, groupID, memberID); err != nil {
		return nil, err
	}

	mute := &models.GroupMute{
		GroupID: groupID,
		UserID:  memberID,
		Until:   s.now().Add(time.Duration(minutes) * time.Minute),
	}
	if err := s.groupRepo.UpsertMute(ctx, mute); err != nil {
		return nil, err
	}
	return mute, nil
}

func (s *GroupService) Unmute(ctx context.Context, actorID, groupID, memberID string) error {
	if _, err := s.ownedGroup(ctx, actorID, groupID); err != nil {
		return err
	}
	return s.groupRepo.DeleteMute(ctx, groupID, memberID)
}

// DeleteMessage removes a group message. Only its sender may delete it.
// Counters already bumped are left alone; the next MarkRead clears them.
func (s *GroupService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return lookup(err, "message")
	}
	if message.SenderID != userID {
		return forbiddenf("only the sender can delete this message")
	}
	return s.messageRepo.Delete(ctx, message.ID)
}

func (s *GroupService) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
			return lookup(err, "group")
		}
		return forbiddenf("you are not a member of this group")
	}
	return nil
}

func (s *GroupService) ownedGroup(ctx context.Context, actorID, groupID string) (*models.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, lookup(err, "group")
	}
	if group.OwnerID != actorID {
		return nil, forbiddenf("only the group owner can do this")
	}
	return group, nil
}

func (s *GroupService) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	if s.members != nil {
		if ids, ok := s.members.Get(ctx, groupID); ok {
			return ids, nil
		}
	}
	ids, err := s.groupRepo.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if s.members != nil {
		if err := s.members.Set(ctx, groupID, ids); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("group_id", groupID).Msg("member cache set failed")
		}
	}
	return ids, nil
}

func (s *GroupService) invalidateMembers(ctx context.Context, groupID string) {
	if s.members == nil {
		return
	}
	if err := s.members.Invalidate(ctx, groupID); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("group_id", groupID).Msg("member cache invalidate failed")
	}
}
