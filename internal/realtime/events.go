package realtime

import (
	"time"

	"github.com/noteduco342/om-relay/internal/models"
)

// EventName tags a server-to-client event on the wire.
type EventName string

const (
	EventNewMessage          EventName = "new_message"
	EventMessageRead         EventName = "message_read"
	EventMessageDeleted      EventName = "message_deleted"
	EventMessagesRead        EventName = "messages_read"
	EventChatRequest         EventName = "chat_request"
	EventChatRequestAccepted EventName = "chat_request_accepted"
	EventChatDeleted         EventName = "chat_deleted"
	EventNewGroupMessage     EventName = "new_group_message"

	// Transport level.
	EventConnected EventName = "connected"
	EventPong      EventName = "pong"
	EventError     EventName = "error"
)

// Event is the closed set of payloads a channel can carry. Each payload type
// knows its own name, so a name can never be paired with the wrong shape.
type Event interface {
	EventName() EventName
	isEvent()
}

// Frame is the envelope written to the wire.
type Frame struct {
	Type    EventName `json:"type"`
	Payload Event     `json:"payload,omitempty"`
}

func NewFrame(e Event) Frame {
	return Frame{Type: e.EventName(), Payload: e}
}

type NewMessage struct {
	models.MessageResponse
}

type MessageRead struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	Count          int64  `json:"count"`
}

type ChatRequestCreated struct {
	models.ChatRequest
}

type ChatRequestAccepted struct {
	RequestID string      `json:"requestId"`
	Chat      models.Chat `json:"chat"`
}

type ChatDeleted struct {
	ChatID string `json:"chatId"`
}

type NewGroupMessage struct {
	models.GroupMessageResponse
}

type Connected struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

type ErrorEvent struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (NewMessage) EventName() EventName          { return EventNewMessage }
func (MessageRead) EventName() EventName         { return EventMessageRead }
func (MessageDeleted) EventName() EventName      { return EventMessageDeleted }
func (MessagesRead) EventName() EventName        { return EventMessagesRead }
func (ChatRequestCreated) EventName() EventName  { return EventChatRequest }
func (ChatRequestAccepted) EventName() EventName { return EventChatRequestAccepted }
func (ChatDeleted) EventName() EventName         { return EventChatDeleted }
func (NewGroupMessage) EventName() EventName     { return EventNewGroupMessage }
func (Connected) EventName() EventName           { return EventConnected }
func (Pong) EventName() EventName                { return EventPong }
func (ErrorEvent) EventName() EventName          { return EventError }

func (NewMessage) isEvent()          {}
func (MessageRead) isEvent()         {}
func (MessageDeleted) isEvent()      {}
func (MessagesRead) isEvent()        {}
func (ChatRequestCreated) isEvent()  {}
func (ChatRequestAccepted) isEvent() {}
func (ChatDeleted) isEvent()         {}
func (NewGroupMessage) isEvent()     {}
func (Connected) isEvent()           {}
func (Pong) isEvent()                {}
func (ErrorEvent) isEvent()          {}
