package cachemanager

import (
	"context"
	"time"

	"github.com/bookverse/platform/internal/log"
)

const stalePrefix = "stale:"

// ReadThrough wraps a Manager with a loader function. A fresh entry is
// served from cache; on a miss the loader runs and its result is cached for
// ttl. Every successful load also pins a stale copy that is served when a
// later refresh fails, so consumers keep working through upstream outages.
type ReadThrough[V any, I any] struct {
	cache Manager[V]
	fn    func(ctx context.Context, input I) (V, error)
}

// NewReadThrough creates a read-through cache over the loader fn.
func NewReadThrough[V any, I any](
	cache Manager[V],
	fn func(ctx context.Context, input I) (V, error),
) *ReadThrough[V, I] {
	return &ReadThrough[V, I]{cache: cache, fn: fn}
}

// Get returns the cached value for key, loading and caching it when absent.
// A failed load falls back to the last successfully loaded value when one
// exists; otherwise the load error is returned.
func (r *ReadThrough[V, I]) Get(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		if stale, ok := r.cache.Get(ctx, stalePrefix+key); ok {
			log.Warn(log.CatCache, "refresh failed, serving stale entry", "key", key, "error", err)
			return stale, nil
		}
		return value, err
	}

	r.cache.Set(ctx, key, value, ttl)
	r.cache.Set(ctx, stalePrefix+key, value, NeverExpire)
	return value, nil
}

// Invalidate drops both the fresh and stale copies of key.
func (r *ReadThrough[V, I]) Invalidate(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key, stalePrefix+key)
}
