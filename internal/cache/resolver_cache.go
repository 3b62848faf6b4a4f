package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ResolverCache memoizes owner-key to numeric-vendor-id resolutions. Only the
// resolved reference is cached; product rows themselves are never cached
// across requests. A nil *ResolverCache is valid and disables caching.
type ResolverCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewResolverCache creates a ResolverCache with the given TTL.
func NewResolverCache(redis *RedisClient, ttl time.Duration) *ResolverCache {
	return &ResolverCache{redis: redis, ttl: ttl}
}

func (c *ResolverCache) key(ownerKey string) string {
	return fmt.Sprintf("resolver:owner:%s", ownerKey)
}

// Get returns a previously cached resolution for the owner key.
func (c *ResolverCache) Get(ctx context.Context, ownerKey string) (int64, bool) {
	if c == nil || c.redis == nil {
		return 0, false
	}
	raw, err := c.redis.Get(ctx, c.key(ownerKey))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Put stores a resolution. Failures are logged and swallowed; caching is
// never allowed to fail a lookup.
func (c *ResolverCache) Put(ctx context.Context, ownerKey string, id int64) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(ownerKey), strconv.FormatInt(id, 10), c.ttl); err != nil {
		log.Warn().Err(err).Str("owner_key", ownerKey).Msg("resolver cache write failed")
	}
}

// Invalidate drops a cached resolution, e.g. after a vendor row changes.
func (c *ResolverCache) Invalidate(ctx context.Context, ownerKey string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, c.key(ownerKey)); err != nil {
		log.Warn().Err(err).Str("owner_key", ownerKey).Msg("resolver cache invalidation failed")
	}
}
