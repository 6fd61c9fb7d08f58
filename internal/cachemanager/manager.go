// Package cachemanager provides typed TTL caches over go-cache. Caches are
// constructed explicitly and passed to their consumers; there is no package
// level cache state.
package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NeverExpire pins an entry in the cache until explicitly deleted.
const NeverExpire = gocache.NoExpiration

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// Manager is a typed TTL key/value cache.
type Manager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}
