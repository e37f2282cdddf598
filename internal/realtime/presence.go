package realtime

import "sync"

type transition struct {
	userID string
	online bool
}

// presenceQueue hands presence transitions to the observer outside the
// registry's shard locks. Transitions are queued while the shard lock is held,
// so they reach the observer in the order the registry applied them. At most
// one goroutine drains the queue at a time.
type presenceQueue struct {
	observer PresenceObserver

	mu       sync.Mutex
	idle     *sync.Cond
	pending  []transition
	draining bool
}

func newPresenceQueue(observer PresenceObserver) *presenceQueue {
	q := &presenceQueue{observer: observer}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// push never blocks on the observer.
func (q *presenceQueue) push(t transition) {
	q.mu.Lock()
	q.pending = append(q.pending, t)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	go q.drain()
}

func (q *presenceQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, t := range batch {
			if t.online {
				q.observer.UserOnline(t.userID)
			} else {
				q.observer.UserOffline(t.userID)
			}
		}
	}
}

// wait blocks until every queued transition has been delivered.
func (q *presenceQueue) wait() {
	q.mu.Lock()
	for q.draining {
		q.idle.Wait()
	}
	q.mu.Unlock()
}
