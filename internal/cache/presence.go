// Package cache mirrors presence into Redis so last-seen lookups for offline
// peers do not hit the document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hugomanns/realtime-chat/internal/model"
)

// presenceKeyPrefix: chat:presence:{userId} -> Presence JSON
const presenceKeyPrefix = "chat:presence:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient creates a go-redis client.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
}

// PresenceCache stores the latest presence of each user with a TTL.
type PresenceCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewPresenceCache creates a PresenceCache. A zero ttl keeps entries forever.
func NewPresenceCache(rdb redis.Cmdable, ttl time.Duration) *PresenceCache {
	return &PresenceCache{rdb: rdb, ttl: ttl}
}

func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}

// Store writes p under the user's presence key.
func (c *PresenceCache) Store(ctx context.Context, p model.Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if err := c.rdb.Set(ctx, presenceKey(p.UserID), string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("store presence %s: %w", p.UserID, err)
	}
	return nil
}

// Load returns the cached presence, or nil when nothing is cached.
func (c *PresenceCache) Load(ctx context.Context, userID string) (*model.Presence, error) {
	data, err := c.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p model.Presence
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal presence: %w", err)
	}
	return &p, nil
}

// Ping checks the Redis connection.
func (c *PresenceCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
