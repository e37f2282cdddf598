package ws

import (
	"time"

	"github.com/noteduco342/om-relay/internal/realtime"
)

// MessageJoin identifies the connection. It must be the first meaningful
// frame; nothing is delivered before it succeeds.
type MessageJoin struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (msg *MessageJoin) GetType() string {
	return "join"
}

func (msg *MessageJoin) Process(ctx *MessageContext) error {
	return ctx.Client.Join(msg.UserID, msg.Token)
}

// MessagePing is a keepalive ping from client
type MessagePing struct {
}

func (msg *MessagePing) GetType() string {
	return "ping"
}

func (msg *MessagePing) Process(ctx *MessageContext) error {
	return ctx.Client.Write(realtime.Pong{Timestamp: time.Now().UnixMilli()})
}

// MessagePong is a pong response (in case client wants to track latency)
type MessagePong struct {
}

func (msg *MessagePong) GetType() string {
	return "pong"
}

func (msg *MessagePong) Process(ctx *MessageContext) error {
	return nil
}
