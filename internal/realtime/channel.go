package realtime

import "errors"

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// Channel is one live push connection belonging to a single user. A user
// may hold several (one per tab or device). Send must not block on network
// I/O; transports queue the event and write it from their own goroutine.
type Channel interface {
	ID() string
	UserID() string
	Send(Event) error
	Close()
	// Alive is false once the transport has observed a dead peer.
	Alive() bool
}
