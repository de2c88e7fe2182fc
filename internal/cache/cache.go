// Package cache holds the string-keyed cache stores and the read-through helper used for
// derived views such as the upcoming-concerts list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/observability"
	"go.uber.org/zap"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a string-valued key/value cache with absolute expiration.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetOrCompute returns the cached value under key when it decodes into T. Otherwise it calls
// compute, stores the JSON encoding for ttl and returns the fresh value. The boolean reports
// whether the value was served from the cache. Cache failures are logged and never returned;
// only compute errors reach the caller.
func GetOrCompute[T any](ctx context.Context, store Store, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	if store != nil {
		raw, err := store.Get(ctx, key)
		switch {
		case err == nil:
			var cached T
			if json.Unmarshal([]byte(raw), &cached) == nil {
				observability.IncrementCacheEvent(key, "hit")
				return cached, true, nil
			}
			observability.IncrementCacheEvent(key, "decode_error")
			zap.L().Warn("cache entry could not be decoded", zap.String("key", key))
		case errors.Is(err, ErrMiss):
			observability.IncrementCacheEvent(key, "miss")
		default:
			observability.IncrementCacheEvent(key, "error")
			zap.L().Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if store != nil {
		Put(ctx, store, key, value, ttl)
	}
	return value, false, nil
}

// Put stores the JSON encoding of value under key.
func Put[T any](ctx context.Context, store Store, key string, value T, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		observability.IncrementCacheEvent(key, "error")
		zap.L().Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes key. A failed removal is logged; the entry then lives until its TTL.
func Invalidate(ctx context.Context, store Store, key string) {
	if store == nil {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		observability.IncrementCacheEvent(key, "error")
		zap.L().Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.IncrementCacheEvent(key, "invalidated")
}
