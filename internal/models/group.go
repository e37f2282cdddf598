package models

import "time"

type GroupRole string

const (
	RoleOwner  GroupRole = "owner"
	RoleMember GroupRole = "member"
)

type Group struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	OwnerID   string    `gorm:"type:varchar(36);not null" json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

type GroupMember struct {
	GroupID  string    `gorm:"primaryKey;type:varchar(36)" json:"groupId"`
	UserID   string    `gorm:"primaryKey;type:varchar(36);index" json:"userId"`
	Role     GroupRole `gorm:"type:varchar(20);default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// GroupMute blocks immediate sends until Until. Scheduled sends are allowed.
type GroupMute struct {
	GroupID string    `gorm:"primaryKey;type:varchar(36)" json:"groupId"`
	UserID  string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	Until   time.Time `gorm:"not null" json:"until"`
}

func (m *GroupMute) Active(now time.Time) bool {
	return m != nil && now.Before(m.Until)
}

type GroupMessage struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GroupID     string      `gorm:"type:varchar(36);not null;index:idx_group_messages_group_created,priority:1" json:"groupId"`
	SenderID    string      `gorm:"type:varchar(36);not null;index" json:"senderId"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"type:varchar(20);default:'text'" json:"messageType"`
	Attachment  `gorm:"embedded"`
	ReplyToID   *string    `gorm:"type:varchar(36)" json:"replyToId,omitempty"`
	CreatedAt   time.Time  `gorm:"index:idx_group_messages_group_created,priority:2" json:"createdAt"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Dispatched  bool       `gorm:"not null;index" json:"dispatched"`
}

// GroupUnread is the explicit per-(user, group) counter.
type GroupUnread struct {
	UserID      string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	GroupID     string    `gorm:"primaryKey;type:varchar(36)" json:"groupId"`
	UnreadCount int64     `gorm:"not null;default:0;check:unread_count >= 0" json:"unreadCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type GroupResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	OwnerID     string                `json:"ownerId"`
	MemberIDs   []string              `json:"memberIds"`
	LastMessage *GroupMessageResponse `json:"lastMessage,omitempty"`
	UnreadCount int64                 `json:"unreadCount"`
}

type GroupMessageResponse struct {
	ID          string      `json:"id"`
	GroupID     string      `json:"groupId"`
	SenderID    string      `json:"senderId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	Attachment
	ReplyToID   *string    `json:"replyToId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	IsScheduled bool       `json:"isScheduled"`
}

func (m *GroupMessage) ToResponse() GroupMessageResponse {
	return GroupMessageResponse{
		ID:          m.ID,
		GroupID:     m.GroupID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		MessageType: m.MessageType,
		Attachment:  m.Attachment,
		ReplyToID:   m.ReplyToID,
		CreatedAt:   m.CreatedAt,
		ScheduledAt: m.ScheduledAt,
		IsScheduled: !m.Dispatched,
	}
}
