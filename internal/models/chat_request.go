package models

import "time"

type ChatRequestStatus string

const (
	RequestPending  ChatRequestStatus = "pending"
	RequestAccepted ChatRequestStatus = "accepted"
	RequestRejected ChatRequestStatus = "rejected"
)

type ChatRequest struct {
	ID         string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID   string            `gorm:"type:varchar(36);not null;index" json:"senderId"`
	ReceiverID string            `gorm:"type:varchar(36);not null;index" json:"receiverId"`
	Status     ChatRequestStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	// PairKey is the ordered participant pair. At most one pending request
	// may exist per pair.
	PairKey    string            `gorm:"type:varchar(80);not null;default:'';uniqueIndex:idx_chat_requests_pending_pair,where:status = 'pending'" json:"-"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type ChatRequestResponse struct {
	ChatRequest
	Sender   *UserResponse `json:"sender,omitempty"`
	Receiver *UserResponse `json:"receiver,omitempty"`
}

func RequestPairKey(a, b string) string {
	a, b = OrderedPair(a, b)
	return a + ":" + b
}

// Involves reports whether the request is between a and b in either direction.
func (r *ChatRequest) Involves(a, b string) bool {
	return (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
}
