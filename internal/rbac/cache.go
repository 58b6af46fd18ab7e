package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "rbac:version"

// DecisionCache caches resolved control functions per (role, kind, action)
// in Redis. Invalidation bumps a global version key instead of tracking
// individual entries, so every policy write flushes the whole cache at once.
//
// Only resolved control functions are stored. Conditional outcomes depend on
// the acting user and are re-evaluated on every request.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewDecisionCache instantiates the cache helper. A nil client disables it.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func (c *DecisionCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *DecisionCache) key(ctx context.Context, roleID uuid.UUID, kind ActionKind, name string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	joined := strings.Join([]string{"rbac", "fn", roleID.String(), string(kind), name}, ":")
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// Get returns the cached control function for the tuple, if present.
func (c *DecisionCache) Get(ctx context.Context, roleID uuid.UUID, kind ActionKind, name string) (ControlFunction, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	key, err := c.key(ctx, roleID, kind, name)
	if err != nil {
		return "", false, err
	}
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ControlFunction(raw), true, nil
}

// Set stores the resolved control function for the tuple. Concurrent writers
// of the same key collapse into one Redis round trip.
func (c *DecisionCache) Set(ctx context.Context, roleID uuid.UUID, kind ActionKind, name string, fn ControlFunction) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, roleID, kind, name)
	if err != nil {
		return err
	}
	_, err, _ = c.group.Do(key, func() (any, error) {
		return nil, c.client.Set(ctx, key, string(fn), c.ttl).Err()
	})
	return err
}

// Bump invalidates all cached entries by incrementing the version key.
func (c *DecisionCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
