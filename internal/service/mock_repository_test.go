package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
)

// The mocks below are in-memory, mutex-guarded and mirror the conditional
// semantics of the gorm repositories.

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMockUserRepository(ids ...string) *mockUserRepository {
	m := &mockUserRepository{users: make(map[string]*models.User)}
	for _, id := range ids {
		m.users[id] = &models.User{ID: id, Username: id}
	}
	return m
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepository) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepository) Upsert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

type mockChatRepository struct {
	mu      sync.Mutex
	chats   map[string]*models.Chat
	hidden  map[string]map[string]bool
	deleted []string
}

func newMockChatRepository() *mockChatRepository {
	return &mockChatRepository{
		chats:  make(map[string]*models.Chat),
		hidden: make(map[string]map[string]bool),
	}
}

func (m *mockChatRepository) add(id, a, b string) *models.Chat {
	chat := &models.Chat{ID: id, UserAID: a, UserBID: b}
	_ = m.Create(context.Background(), chat)
	return chat
}

func (m *mockChatRepository) Create(_ context.Context, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat.UserAID, chat.UserBID = models.OrderedPair(chat.UserAID, chat.UserBID)
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *mockChatRepository) FindByID(_ context.Context, id string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockChatRepository) FindByPair(_ context.Context, a, b string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, b = models.OrderedPair(a, b)
	for _, c := range m.chats {
		if c.UserAID == a && c.UserBID == b {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockChatRepository) ListVisible(_ context.Context, userID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, c := range m.chats {
		if c.HasParticipant(userID) && !m.hidden[c.ID][userID] {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockChatRepository) IsHidden(_ context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hidden[chatID][userID], nil
}

func (m *mockChatRepository) Hide(_ context.Context, chatID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hidden[chatID] == nil {
		m.hidden[chatID] = make(map[string]bool)
	}
	m.hidden[chatID][userID] = true
	return nil
}

func (m *mockChatRepository) Unhide(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hidden, chatID)
	return nil
}

func (m *mockChatRepository) DeleteWithHistory(_ context.Context, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chat.ID)
	delete(m.hidden, chat.ID)
	m.deleted = append(m.deleted, chat.ID)
	return nil
}

type mockMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	hidden   map[string]map[string]bool
	failDue  error
}

func newMockMessageRepository() *mockMessageRepository {
	return &mockMessageRepository{
		messages: make(map[string]*models.Message),
		hidden:   make(map[string]map[string]bool),
	}
}

func (m *mockMessageRepository) get(id string) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil
	}
	cp := *msg
	return &cp
}

func (m *mockMessageRepository) Create(_ context.Context, message *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *message
	m.messages[message.ID] = &cp
	return nil
}

func (m *mockMessageRepository) FindByID(_ context.Context, id string) (*models.Message, error) {
	if msg := m.get(id); msg != nil {
		return msg, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockMessageRepository) visible(msg *models.Message, viewerID string) bool {
	return (msg.Dispatched || msg.SenderID == viewerID) && !m.hidden[msg.ID][viewerID]
}

func (m *mockMessageRepository) ListForViewer(_ context.Context, chatID, viewerID string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID && m.visible(msg, viewerID) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockMessageRepository) LastVisible(ctx context.Context, chatID, viewerID string) (*models.Message, error) {
	list, _ := m.ListForViewer(ctx, chatID, viewerID, 0)
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[len(list)-1], nil
}

func (m *mockMessageRepository) MarkRead(_ context.Context, id, receiverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.ReceiverID != receiverID || !msg.Dispatched || msg.ReadAt != nil {
		return false, nil
	}
	msg.ReadAt = &at
	return true, nil
}

func (m *mockMessageRepository) MarkAllRead(_ context.Context, chatID, receiverID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ReceiverID == receiverID && msg.Dispatched && msg.ReadAt == nil {
			t := at
			msg.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (m *mockMessageRepository) CountUnread(_ context.Context, chatID, receiverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ReceiverID == receiverID && msg.Dispatched && msg.ReadAt == nil && !m.hidden[msg.ID][receiverID] {
			n++
		}
	}
	return n, nil
}

func (m *mockMessageRepository) Hide(_ context.Context, messageID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hidden[messageID] == nil {
		m.hidden[messageID] = make(map[string]bool)
	}
	m.hidden[messageID][userID] = true
	return nil
}

func (m *mockMessageRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	delete(m.hidden, id)
	return nil
}

func (m *mockMessageRepository) FindDue(_ context.Context, now time.Time, senderID string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDue != nil {
		return nil, m.failDue
	}
	var out []models.Message
	for _, msg := range m.messages {
		if msg.Dispatched || msg.ScheduledAt == nil || msg.ScheduledAt.After(now) {
			continue
		}
		if senderID != "" && msg.SenderID != senderID {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockMessageRepository) MarkDispatched(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Dispatched {
		return false, nil
	}
	msg.Dispatched = true
	return true, nil
}

type mockGroupRepository struct {
	mu      sync.Mutex
	groups  map[string]*models.Group
	members map[string]map[string]models.GroupRole
	mutes   map[string]*models.GroupMute
	// unread, when set, loses a member's counter on removal.
	unread *mockGroupUnreadRepository
}

func newMockGroupRepository() *mockGroupRepository {
	return &mockGroupRepository{
		groups:  make(map[string]*models.Group),
		members: make(map[string]map[string]models.GroupRole),
		mutes:   make(map[string]*models.GroupMute),
	}
}

func (m *mockGroupRepository) seed(id, owner string, members ...string) {
	ctx := context.Background()
	_ = m.Create(ctx, &models.Group{ID: id, Name: id, OwnerID: owner})
	_ = m.AddMember(ctx, id, owner, models.RoleOwner)
	for _, u := range members {
		_ = m.AddMember(ctx, id, u, models.RoleMember)
	}
}

func (m *mockGroupRepository) Create(_ context.Context, group *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *mockGroupRepository) FindByID(_ context.Context, id string) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	cp.Members = nil
	for uid, role := range m.members[id] {
		cp.Members = append(cp.Members, models.GroupMember{GroupID: id, UserID: uid, Role: role})
	}
	return &cp, nil
}

func (m *mockGroupRepository) AddMember(_ context.Context, groupID, userID string, role models.GroupRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[groupID] == nil {
		m.members[groupID] = make(map[string]models.GroupRole)
	}
	if _, ok := m.members[groupID][userID]; !ok {
		m.members[groupID][userID] = role
	}
	return nil
}

func (m *mockGroupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	delete(m.members[groupID], userID)
	delete(m.mutes, muteKey(groupID, userID))
	unread := m.unread
	m.mu.Unlock()
	if unread != nil {
		unread.drop(groupID, userID)
	}
	return nil
}

func (m *mockGroupRepository) Delete(_ context.Context, groupID string) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.members[groupID]))
	for uid := range m.members[groupID] {
		ids = append(ids, uid)
		delete(m.mutes, muteKey(groupID, uid))
	}
	delete(m.members, groupID)
	delete(m.groups, groupID)
	unread := m.unread
	m.mu.Unlock()
	if unread != nil {
		for _, uid := range ids {
			unread.drop(groupID, uid)
		}
	}
	return nil
}

func (m *mockGroupRepository) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[groupID][userID]
	return ok, nil
}

func (m *mockGroupRepository) MemberIDs(_ context.Context, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.members[groupID]))
	for uid := range m.members[groupID] {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockGroupRepository) ListForUser(_ context.Context, userID string) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for id, g := range m.groups {
		if _, ok := m.members[id][userID]; ok {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func muteKey(groupID, userID string) string { return groupID + "/" + userID }

func (m *mockGroupRepository) FindMute(_ context.Context, groupID, userID string) (*models.GroupMute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mute, ok := m.mutes[muteKey(groupID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *mute
	return &cp, nil
}

func (m *mockGroupRepository) UpsertMute(_ context.Context, mute *models.GroupMute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mute
	m.mutes[muteKey(mute.GroupID, mute.UserID)] = &cp
	return nil
}

func (m *mockGroupRepository) DeleteMute(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mutes, muteKey(groupID, userID))
	return nil
}

type mockGroupUnreadRepository struct {
	mu     sync.Mutex
	groups *mockGroupRepository
	counts map[string]int64
}

func newMockGroupUnreadRepository(groups *mockGroupRepository) *mockGroupUnreadRepository {
	return &mockGroupUnreadRepository{groups: groups, counts: make(map[string]int64)}
}

func (m *mockGroupUnreadRepository) IncrementForMembers(ctx context.Context, groupID, exceptUserID string) error {
	ids, _ := m.groups.MemberIDs(ctx, groupID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if id != exceptUserID {
			m.counts[muteKey(groupID, id)]++
		}
	}
	return nil
}

func (m *mockGroupUnreadRepository) Get(_ context.Context, userID, groupID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[muteKey(groupID, userID)], nil
}

func (m *mockGroupUnreadRepository) ListForUser(_ context.Context, userID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for key, n := range m.counts {
		if gid, uid, _ := strings.Cut(key, "/"); uid == userID {
			out[gid] = n
		}
	}
	return out, nil
}

func (m *mockGroupUnreadRepository) drop(groupID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, muteKey(groupID, userID))
}

func (m *mockGroupUnreadRepository) Reset(_ context.Context, userID, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[muteKey(groupID, userID)] = 0
	return nil
}

type mockGroupMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*models.GroupMessage
	unread   *mockGroupUnreadRepository
}

func newMockGroupMessageRepository(unread *mockGroupUnreadRepository) *mockGroupMessageRepository {
	return &mockGroupMessageRepository{messages: make(map[string]*models.GroupMessage), unread: unread}
}

func (m *mockGroupMessageRepository) CreateWithUnread(ctx context.Context, message *models.GroupMessage) error {
	m.mu.Lock()
	cp := *message
	m.messages[message.ID] = &cp
	m.mu.Unlock()
	if message.Dispatched {
		return m.unread.IncrementForMembers(ctx, message.GroupID, message.SenderID)
	}
	return nil
}

func (m *mockGroupMessageRepository) FindByID(_ context.Context, id string) (*models.GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *mockGroupMessageRepository) ListDispatched(_ context.Context, groupID string, limit int) ([]models.GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GroupMessage
	for _, msg := range m.messages {
		if msg.GroupID == groupID && msg.Dispatched {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockGroupMessageRepository) LastDispatched(ctx context.Context, groupID string) (*models.GroupMessage, error) {
	list, _ := m.ListDispatched(ctx, groupID, 0)
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[len(list)-1], nil
}

func (m *mockGroupMessageRepository) FindDue(_ context.Context, now time.Time, senderID string, limit int) ([]models.GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GroupMessage
	for _, msg := range m.messages {
		if msg.Dispatched || msg.ScheduledAt == nil || msg.ScheduledAt.After(now) {
			continue
		}
		if senderID != "" && msg.SenderID != senderID {
			continue
		}
		out = append(out, *msg)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockGroupMessageRepository) DispatchWithUnread(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	msg, ok := m.messages[id]
	if !ok || msg.Dispatched {
		m.mu.Unlock()
		return false, nil
	}
	msg.Dispatched = true
	groupID, senderID := msg.GroupID, msg.SenderID
	m.mu.Unlock()
	return true, m.unread.IncrementForMembers(ctx, groupID, senderID)
}

func (m *mockGroupMessageRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	return nil
}

type mockChatRequestRepository struct {
	mu       sync.Mutex
	requests map[string]*models.ChatRequest
	chats    *mockChatRepository
	// chatErr fails the chat half of AcceptWithChat; the status change is
	// then rolled back.
	chatErr error
}

func newMockChatRequestRepository(chats *mockChatRepository) *mockChatRequestRepository {
	return &mockChatRequestRepository{requests: make(map[string]*models.ChatRequest), chats: chats}
}

func (m *mockChatRequestRepository) Create(_ context.Context, request *models.ChatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request.Status == models.RequestPending {
		for _, r := range m.requests {
			if r.Involves(request.SenderID, request.ReceiverID) && r.Status == models.RequestPending {
				return repository.ErrConflict
			}
		}
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	cp := *request
	m.requests[request.ID] = &cp
	return nil
}

func (m *mockChatRequestRepository) FindByID(_ context.Context, id string) (*models.ChatRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockChatRequestRepository) FindPendingBetween(_ context.Context, a, b string) (*models.ChatRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Involves(a, b) && r.Status == models.RequestPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockChatRequestRepository) DeleteResolvedBetween(_ context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if r.Involves(a, b) && r.Status != models.RequestPending {
			delete(m.requests, id)
		}
	}
	return nil
}

func (m *mockChatRequestRepository) TransitionStatus(_ context.Context, id string, from, to models.ChatRequestStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

func (m *mockChatRequestRepository) AcceptWithChat(ctx context.Context, id string, chat *models.Chat) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.RequestPending {
		return nil, repository.ErrConflict
	}
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	r.Status = models.RequestAccepted

	existing, err := m.chats.FindByPair(ctx, chat.UserAID, chat.UserBID)
	if err == nil {
		return existing, m.chats.Unhide(ctx, existing.ID)
	}
	return chat, m.chats.Create(ctx, chat)
}

func (m *mockChatRequestRepository) ListForUser(_ context.Context, userID string) ([]models.ChatRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatRequest
	for _, r := range m.requests {
		if r.SenderID == userID || r.ReceiverID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// recordingNotifier captures deliveries. Users listed in online report as
// reached.
type recordingNotifier struct {
	mu        sync.Mutex
	online    map[string]bool
	delivered []delivery
}

type delivery struct {
	userID string
	event  realtime.Event
}

func newRecordingNotifier(online ...string) *recordingNotifier {
	n := &recordingNotifier{online: make(map[string]bool)}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (n *recordingNotifier) Deliver(_ context.Context, userID string, event realtime.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, delivery{userID, event})
	return n.online[userID]
}

func (n *recordingNotifier) DeliverMany(ctx context.Context, userIDs []string, event realtime.Event) int {
	reached := 0
	for _, id := range userIDs {
		if n.Deliver(ctx, id, event) {
			reached++
		}
	}
	return reached
}

// to returns the events delivered to userID with the given name.
func (n *recordingNotifier) to(userID string, name realtime.EventName) []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []realtime.Event
	for _, d := range n.delivered {
		if d.userID == userID && d.event.EventName() == name {
			out = append(out, d.event)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

var errStoreDown = errors.New("store unavailable")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
