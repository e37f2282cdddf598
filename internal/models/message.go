package models

import "time"

type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
	FileMessage  MessageType = "file"
	VoiceMessage MessageType = "voice"
	VideoMessage MessageType = "video"
)

// DeliveryState is derived from Dispatched and ReadAt, never stored.
type DeliveryState string

const (
	StatePending DeliveryState = "pending"
	StateSent    DeliveryState = "sent"
	StateRead    DeliveryState = "read"
)

// Attachment fields are shared by direct and group messages. Upload itself
// happens elsewhere; only the reference is kept.
type Attachment struct {
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type Message struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatID      string      `gorm:"type:varchar(36);not null;index:idx_messages_chat_created,priority:1" json:"chatId"`
	SenderID    string      `gorm:"type:varchar(36);not null;index" json:"senderId"`
	ReceiverID  string      `gorm:"type:varchar(36);not null;index" json:"receiverId"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"type:varchar(20);default:'text'" json:"messageType"`
	Attachment  `gorm:"embedded"`
	ReplyToID   *string    `gorm:"type:varchar(36)" json:"replyToId,omitempty"`
	CreatedAt   time.Time  `gorm:"index:idx_messages_chat_created,priority:2" json:"createdAt"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	// Dispatched flips false -> true exactly once. No default tag: gorm
	// would replace an explicit false with it.
	Dispatched bool       `gorm:"not null;index" json:"dispatched"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

// ShouldDispatchNow reports whether a message created at now with the given
// schedule is delivered immediately.
func ShouldDispatchNow(scheduledAt *time.Time, now time.Time) bool {
	return scheduledAt == nil || !scheduledAt.After(now)
}

func (m *Message) State() DeliveryState {
	switch {
	case m.ReadAt != nil:
		return StateRead
	case m.Dispatched:
		return StateSent
	default:
		return StatePending
	}
}

// MessageHidden is a per-user soft delete.
type MessageHidden struct {
	MessageID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time
}

func (MessageHidden) TableName() string { return "message_hidden" }

type MessageResponse struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chatId"`
	SenderID    string      `json:"senderId"`
	ReceiverID  string      `json:"receiverId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	Attachment
	ReplyToID   *string       `json:"replyToId,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
	IsScheduled bool          `json:"isScheduled"`
	IsRead      bool          `json:"isRead"`
	ReadAt      *time.Time    `json:"readAt,omitempty"`
	Status      DeliveryState `json:"status"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: m.MessageType,
		Attachment:  m.Attachment,
		ReplyToID:   m.ReplyToID,
		CreatedAt:   m.CreatedAt,
		ScheduledAt: m.ScheduledAt,
		IsScheduled: !m.Dispatched,
		IsRead:      m.ReadAt != nil,
		ReadAt:      m.ReadAt,
		Status:      m.State(),
	}
}
