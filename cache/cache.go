// Package cache provides the key-value contract backing the session store and
// the login transaction store: get, set with TTL, and drop.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal key-value surface the gateway needs. Implementations
// must return errors.ErrNotFound from Get for a missing or expired key and
// must treat Drop of a missing key as a no-op.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Drop(ctx context.Context, key string) error
}
