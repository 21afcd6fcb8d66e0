package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache loads values through fn on a miss and caches successful results.
// When enabled reports false every call goes straight to fn.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache   CacheManager[K, V]
	fn      func(ctx context.Context, input I) (V, error)
	enabled func() bool
}

// NewReadThroughCache creates a ReadThroughCache. A nil enabled means always enabled.
func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	enabled func() bool,
) *ReadThroughCache[K, V, I] {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &ReadThroughCache[K, V, I]{
		cache:   cache,
		fn:      fn,
		enabled: enabled,
	}
}

// Get returns the cached value for key or loads it from input. Errors are never cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if !r.enabled() {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}

// Invalidate drops key so that the next Get loads it again.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context, key K) {
	r.cache.Delete(ctx, key)
}
