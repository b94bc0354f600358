package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds staleness when no TTL is configured.
const DefaultCacheTTL = 30 * time.Second

// CachedResolver memoizes UserPermissions in Redis with a short TTL. It is a
// deployment optimization layered over Resolver; the core contract that a
// resolution call reflects current store state holds whenever this decorator
// is not installed. Cache failures degrade to a direct resolution, never to
// an error.
type CachedResolver struct {
	resolver *Resolver
	client   *redis.Client
	ttl      time.Duration
}

// NewCachedResolver wraps a Resolver with a Redis-backed read-through cache.
// A non-positive ttl falls back to DefaultCacheTTL.
func NewCachedResolver(resolver *Resolver, client *redis.Client, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedResolver{resolver: resolver, client: client, ttl: ttl}
}

// UserPermissions returns the cached permission set when present, resolving
// and filling the cache otherwise.
func (c *CachedResolver) UserPermissions(ctx context.Context, userID, tenantID string) ([]string, error) {
	key := cacheKey(userID, tenantID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var perms []string
		if err := json.Unmarshal([]byte(raw), &perms); err == nil {
			return perms, nil
		}
		// Undecodable entry: drop it and fall through to a fresh
		// resolution.
		_ = c.client.Del(ctx, key).Err()
	}

	perms, err := c.resolver.UserPermissions(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(perms); err == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}
	return perms, nil
}

// Invalidate drops the cached set for a user/scope pair. Wired into the
// assignment service so grant mutations take effect immediately.
func (c *CachedResolver) Invalidate(ctx context.Context, userID, tenantID string) error {
	return c.client.Del(ctx, cacheKey(userID, tenantID)).Err()
}

func cacheKey(userID, tenantID string) string {
	return fmt.Sprintf("rbac:perms:%s:%s", tenantID, userID)
}

// FlushPermissions drops every cached permission set. Run after role or
// catalog changes that affect users across the board, such as seeding the
// system roles.
func FlushPermissions(ctx context.Context, client *redis.Client) error {
	iter := client.Scan(ctx, 0, "rbac:perms:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
