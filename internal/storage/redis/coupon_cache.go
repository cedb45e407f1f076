// Package redis provides a read-through Redis cache in front of the coupon
// repository.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/bookproof/bookproof/internal/domain/coupon"
)

var _ coupon.Finder = (*CouponCache)(nil)
var _ coupon.Invalidator = (*CouponCache)(nil)

const keyPrefix = "bookproof:coupon:"

// CouponCache caches coupon lookups by code. A hit skips the database; a miss
// falls through to the wrapped Finder and stores the result with a TTL.
// Missing coupons are not negatively cached since validation already treats
// an unknown code as a cheap, terminal answer.
type CouponCache struct {
	client *redis.Client
	next   coupon.Finder
	ttl    time.Duration
}

// NewCouponCache connects to Redis and wraps next with a cache layer.
func NewCouponCache(ctx context.Context, addr string, next coupon.Finder, ttl time.Duration) (*CouponCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &CouponCache{client: client, next: next, ttl: ttl}, nil
}

// NewCouponCacheWithClient wraps next using an existing client. Used in tests.
func NewCouponCacheWithClient(client *redis.Client, next coupon.Finder, ttl time.Duration) *CouponCache {
	return &CouponCache{client: client, next: next, ttl: ttl}
}

func cacheKey(code string) string {
	return keyPrefix + strings.ToUpper(code)
}

// FindByCode returns the cached coupon when present, loading and caching it
// otherwise. Cache errors degrade to a plain repository lookup.
func (c *CouponCache) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	raw, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err == nil {
		var cached coupon.Coupon
		if uerr := json.Unmarshal(raw, &cached); uerr == nil {
			return &cached, nil
		}
		// Corrupt entry, drop it and reload.
		_ = c.client.Del(ctx, cacheKey(code)).Err()
	} else if !errors.Is(err, redis.Nil) {
		return c.next.FindByCode(ctx, code)
	}

	found, err := c.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if raw, merr := json.Marshal(found); merr == nil {
		_ = c.client.Set(ctx, cacheKey(code), raw, c.ttl).Err()
	}
	return found, nil
}

// Invalidate evicts the cache entry for a code.
func (c *CouponCache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		return fmt.Errorf("invalidating coupon cache for %q: %w", code, err)
	}
	return nil
}

// Ping reports whether the Redis connection is alive.
func (c *CouponCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (c *CouponCache) Close() error {
	return c.client.Close()
}
