package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

const decisionKeyPrefix = "authz:dec:"

// DecisionCache is a read-through Redis cache for single-check decisions.
// Keys carry the user id first so invalidation can stay scoped to one user.
// A nil *DecisionCache is valid and passes every call through to the loader.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewDecisionCache instantiates the cache helper.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func decisionKey(userID uuid.UUID, permission string, scope catalog.Scope) string {
	return fmt.Sprintf("%s%s:%s:%s", decisionKeyPrefix, userID, permission, scope)
}

// Fetch loads a cached decision or resolves it via loader. Concurrent
// misses on the same key share one resolution through singleflight. Cache
// write failures degrade to uncached reads, never to a wrong answer.
func (c *DecisionCache) Fetch(ctx context.Context, userID uuid.UUID, permission string, scope catalog.Scope, loader func(context.Context) (bool, error)) (bool, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := decisionKey(userID, permission, scope)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if err != redis.Nil {
		return loader(ctx)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		allowed, err := loader(ctx)
		if err != nil {
			return false, err
		}
		payload := "0"
		if allowed {
			payload = "1"
		}
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
		return allowed, nil
	})
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// InvalidateUser synchronously drops every cached decision for the user.
// Called by the assignment store after each successful mutation.
func (c *DecisionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := decisionKeyPrefix + userID.String() + ":*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("authz: cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("authz: cache del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
