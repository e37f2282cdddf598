package models

import "time"

// Chat is a 1:1 conversation. UserAID < UserBID so a pair maps to one row.
type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserAID   string    `gorm:"column:user_a_id;type:varchar(36);not null;uniqueIndex:idx_chat_pair,priority:1" json:"userAId"`
	UserBID   string    `gorm:"column:user_b_id;type:varchar(36);not null;uniqueIndex:idx_chat_pair,priority:2;index" json:"userBId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatHidden marks a chat as deleted for one participant only.
type ChatHidden struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

func (ChatHidden) TableName() string { return "chat_hidden" }

// OrderedPair returns the two ids in storage order.
func OrderedPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *Chat) HasParticipant(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Other returns the participant that is not userID.
func (c *Chat) Other(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

type ChatResponse struct {
	ID          string           `json:"id"`
	Participant UserResponse     `json:"participant"`
	LastMessage *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount int64            `json:"unreadCount"`
	CreatedAt   time.Time        `json:"createdAt"`
}
