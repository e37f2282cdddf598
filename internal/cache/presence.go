package cache

import (
	"context"
	"time"

	"github.com/noteduco342/om-relay/internal/logging"
)

const (
	onlineUsersKey = "online:users"
	// OnlineTTL matches the pong timeout so a crashed process does not leave
	// users marked online forever.
	OnlineTTL = 90 * time.Second
)

// PresenceCache mirrors registry presence into Redis for other readers
// (admin tooling, the poll endpoints). The in-process registry stays the
// source of truth for routing.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func onlineKey(userID string) string {
	return "online:" + userID
}

// UserOnline implements realtime.PresenceObserver.
func (pc *PresenceCache) UserOnline(userID string) {
	if pc == nil || pc.redis == nil {
		return
	}
	if err := pc.redis.SetAddWithMarker(context.Background(), onlineUsersKey, userID, onlineKey(userID), OnlineTTL); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("presence: mark online failed")
	}
}

// UserOffline implements realtime.PresenceObserver.
func (pc *PresenceCache) UserOffline(userID string) {
	if pc == nil || pc.redis == nil {
		return
	}
	if err := pc.redis.SetRemoveWithMarker(context.Background(), onlineUsersKey, userID, onlineKey(userID)); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("presence: mark offline failed")
	}
}

// Refresh extends the TTL for a user who is still connected.
func (pc *PresenceCache) Refresh(ctx context.Context, userID string) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Set(ctx, onlineKey(userID), []byte("1"), OnlineTTL)
}

func (pc *PresenceCache) IsOnline(ctx context.Context, userID string) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(ctx, onlineKey(userID))
}

func (pc *PresenceCache) OnlineUsers(ctx context.Context) ([]string, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	return pc.redis.SetMembers(ctx, onlineUsersKey)
}

func (pc *PresenceCache) OnlineCount(ctx context.Context) (int64, error) {
	if pc == nil || pc.redis == nil {
		return 0, nil
	}
	return pc.redis.SetCard(ctx, onlineUsersKey)
}

// UserLister is satisfied by realtime.Registry.
type UserLister interface {
	Users() []string
}

// PresenceRefresher keeps online markers alive for users that are still
// connected. Markers expire after OnlineTTL, so it ticks at a third of that.
type PresenceRefresher struct {
	presence *PresenceCache
	users    UserLister
	interval time.Duration
}

func NewPresenceRefresher(presence *PresenceCache, users UserLister) *PresenceRefresher {
	return &PresenceRefresher{presence: presence, users: users, interval: OnlineTTL / 3}
}

func (r *PresenceRefresher) String() string { return "presence-refresher" }

// Serve implements suture.Service.
func (r *PresenceRefresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll extends every connected user's marker and returns how many
// refreshes failed.
func (r *PresenceRefresher) RefreshAll(ctx context.Context) int {
	failed := 0
	for _, id := range r.users.Users() {
		if err := r.presence.Refresh(ctx, id); err != nil {
			failed++
		}
	}
	if failed > 0 {
		logging.Warn().Int("failed", failed).Msg("presence: refresh failed")
	}
	return failed
}
