package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MemberListTTL bounds how stale a cached member list may be.
const MemberListTTL = 1 * time.Minute

// MemberCache caches group member id lists used to address fan-out.
// Unread counters never read from it; they join against the members table.
type MemberCache struct {
	redis *RedisCache
}

func NewMemberCache(redis *RedisCache) *MemberCache {
	return &MemberCache{redis: redis}
}

func groupMembersKey(groupID string) string {
	return "group:" + groupID + ":members"
}

// Get returns the cached member ids, or false on miss.
func (mc *MemberCache) Get(ctx context.Context, groupID string) ([]string, bool) {
	if mc == nil || mc.redis == nil {
		return nil, false
	}
	data, err := mc.redis.Get(ctx, groupMembersKey(groupID))
	if err != nil || data == nil {
		return nil, false
	}
	var ids []string
	if err := msgpack.Unmarshal(data, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (mc *MemberCache) Set(ctx context.Context, groupID string, memberIDs []string) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(memberIDs)
	if err != nil {
		return err
	}
	return mc.redis.Set(ctx, groupMembersKey(groupID), data, MemberListTTL)
}

func (mc *MemberCache) Invalidate(ctx context.Context, groupID string) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	return mc.redis.Delete(ctx, groupMembersKey(groupID))
}
