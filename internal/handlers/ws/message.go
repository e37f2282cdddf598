package ws

import (
	"fmt"

	"github.com/goccy/go-json"
)

// MessageContext is what inbound messages may act on.
type MessageContext struct {
	Client *Client
}

// Message is an inbound client frame.
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the inbound wire wrapper.
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func Deserialize(data []byte) (Message, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	kind, ok := inboundTypes[wrapper.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %q", wrapper.Type)
	}
	msg := kind.build()
	if len(wrapper.Payload) > 0 && string(wrapper.Payload) != "null" {
		if err := json.Unmarshal(wrapper.Payload, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
