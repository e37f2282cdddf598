package realtime

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/metrics"
)

const DefaultShards = 32

// PresenceObserver is told when a user goes from zero to one channel and back.
// Calls arrive in order on a goroutine that holds no registry lock, so an
// observer may block on I/O without stalling delivery.
type PresenceObserver interface {
	UserOnline(userID string)
	UserOffline(userID string)
}

type shard struct {
	mu    sync.RWMutex
	users map[string]map[string]Channel
}

// Registry maps user ids to their live channels. Users are spread across
// shards so unrelated users never contend; operations on one user are
// serialized by that user's shard.
type Registry struct {
	shards   []*shard
	presence *presenceQueue

	channels atomic.Int64
	online   atomic.Int64
}

// NewRegistry creates a registry. observer may be nil.
func NewRegistry(shards int, observer PresenceObserver) *Registry {
	if shards <= 0 {
		shards = DefaultShards
	}
	r := &Registry{shards: make([]*shard, shards)}
	if observer != nil {
		r.presence = newPresenceQueue(observer)
	}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]map[string]Channel)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *Registry) notify(userID string, online bool) {
	if r.presence != nil {
		r.presence.push(transition{userID: userID, online: online})
	}
}

// WaitPresence blocks until the observer has seen every transition queued so
// far. Used on shutdown so the last offline marks are written.
func (r *Registry) WaitPresence() {
	if r.presence != nil {
		r.presence.wait()
	}
}

// Register adds ch to userID's set. Registering the same channel id twice
// replaces the earlier entry.
func (r *Registry) Register(userID string, ch Channel) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, exists := s.users[userID]
	if !exists {
		set = make(map[string]Channel, 1)
		s.users[userID] = set
		r.online.Add(1)
		metrics.OnlineUsers.Inc()
		r.notify(userID, true)
	}
	if _, dup := set[ch.ID()]; !dup {
		r.channels.Add(1)
		metrics.LiveChannels.Inc()
	}
	set[ch.ID()] = ch

	logging.Debug().
		Str("user_id", userID).
		Str("channel_id", ch.ID()).
		Int("user_channels", len(set)).
		Msg("channel registered")
}

// Unregister removes ch. It is safe to call for a channel that was never
// registered or was already removed. Returns true if something was removed.
func (r *Registry) Unregister(userID string, ch Channel) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, exists := s.users[userID]
	if !exists {
		return false
	}
	if _, ok := set[ch.ID()]; !ok {
		return false
	}
	delete(set, ch.ID())
	r.channels.Add(-1)
	metrics.LiveChannels.Dec()

	if len(set) == 0 {
		delete(s.users, userID)
		r.online.Add(-1)
		metrics.OnlineUsers.Dec()
		r.notify(userID, false)
	}

	logging.Debug().
		Str("user_id", userID).
		Str("channel_id", ch.ID()).
		Int("user_channels", len(set)).
		Msg("channel unregistered")
	return true
}

// ChannelsFor returns a snapshot of userID's channels. Unknown users yield
// an empty slice.
func (r *Registry) ChannelsFor(userID string) []Channel {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.users[userID]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) Online(userID string) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// Users returns every user with at least one channel.
func (r *Registry) Users() []string {
	users := make([]string, 0, r.online.Load())
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.users {
			users = append(users, id)
		}
		s.mu.RUnlock()
	}
	return users
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	return int(r.channels.Load())
}

// UserCount returns the number of online users.
func (r *Registry) UserCount() int {
	return int(r.online.Load())
}

// Sweep unregisters and closes every channel that reports !Alive().
func (r *Registry) Sweep() int {
	type entry struct {
		userID string
		ch     Channel
	}
	var dead []entry
	for _, s := range r.shards {
		s.mu.RLock()
		for userID, set := range s.users {
			for _, ch := range set {
				if !ch.Alive() {
					dead = append(dead, entry{userID, ch})
				}
			}
		}
		s.mu.RUnlock()
	}

	reaped := 0
	for _, e := range dead {
		if r.Unregister(e.userID, e.ch) {
			reaped++
		}
		e.ch.Close()
	}
	if reaped > 0 {
		metrics.ChannelsReaped.Add(float64(reaped))
		logging.Info().Int("reaped", reaped).Msg("removed dead channels")
	}
	return reaped
}

// CloseAll closes every channel and empties the registry. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, s := range r.shards {
		s.mu.RLock()
		var all []Channel
		for _, set := range s.users {
			for _, ch := range set {
				all = append(all, ch)
			}
		}
		s.mu.RUnlock()
		for _, ch := range all {
			r.Unregister(ch.UserID(), ch)
			ch.Close()
		}
	}
}
