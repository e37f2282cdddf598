package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueueChannel is a Channel backed by a bounded in-memory queue. Transports
// drain Events() from their writer goroutine; Send never blocks.
type QueueChannel struct {
	id     string
	userID string
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	lastSeen  atomic.Int64
	staleIn   time.Duration
}

// NewQueueChannel creates a channel for userID. staleAfter is how long the
// channel may go without Touch before Alive reports false; zero disables it.
func NewQueueChannel(userID string, size int, staleAfter time.Duration) *QueueChannel {
	if size <= 0 {
		size = 64
	}
	q := &QueueChannel{
		id:      uuid.NewString(),
		userID:  userID,
		events:  make(chan Event, size),
		done:    make(chan struct{}),
		staleIn: staleAfter,
	}
	q.Touch()
	return q
}

func (q *QueueChannel) ID() string     { return q.id }
func (q *QueueChannel) UserID() string { return q.userID }

func (q *QueueChannel) Send(e Event) error {
	if q.closed.Load() {
		return ErrChannelClosed
	}
	select {
	case <-q.done:
		return ErrChannelClosed
	case q.events <- e:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close is idempotent. Queued events are discarded.
func (q *QueueChannel) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}

func (q *QueueChannel) Alive() bool {
	if q.closed.Load() {
		return false
	}
	if q.staleIn <= 0 {
		return true
	}
	return time.Since(time.Unix(0, q.lastSeen.Load())) < q.staleIn
}

// Touch records peer activity, e.g. a pong or any inbound frame.
func (q *QueueChannel) Touch() {
	q.lastSeen.Store(time.Now().UnixNano())
}

// Events yields queued events in order.
func (q *QueueChannel) Events() <-chan Event { return q.events }

// Done is closed when the channel is closed.
func (q *QueueChannel) Done() <-chan struct{} { return q.done }
