// Package cache implements the cache-aside layer in front of the
// classification pipeline: a canonical key codec and a TTL memoizer over a
// pluggable key/value store.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = 300 * time.Second

// Store is the backend contract: get, set-with-expiry and a liveness probe.
// Expiry is enforced by the backend; an expired key reads as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Cache memoizes idempotent operations keyed by fingerprint.
type Cache struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Cache {
	return &Cache{store: store, log: log}
}

// GetOrCompute returns the cached value for key if present and unexpired.
// Otherwise it invokes compute, stores the result for ttl, and returns it.
//
// The lookup-compute-store sequence is not atomic across callers: two
// concurrent misses on the same key both compute and the second write wins.
// Every operation behind this cache is idempotent, so we accept the
// duplicate work rather than coalesce in-flight computations.
//
// Compute errors propagate unchanged and nothing is written. A store read
// failure surfaces as ErrCacheUnavailable without invoking compute, so the
// caller can decide to bypass the cache. A store write failure after a
// successful compute is logged and the fresh value is still returned.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", apperrors.ErrCacheUnavailable, key, err)
	}
	if ok {
		return cached, nil
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}

	if err := c.store.SetEx(ctx, key, value, ttl); err != nil {
		c.log.Warn("cache write failed, returning fresh value",
			zap.String("key", key),
			zap.Error(err))
	}
	return value, nil
}

// Ping probes the backend.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}
	return nil
}
