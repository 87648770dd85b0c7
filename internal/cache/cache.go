// Package cache holds the fast, non-authoritative alias lookup layer.
// Entries may vanish at any time; callers fall back to the store.
package cache

import (
	"context"
	"time"
)

// Cache is a string key-value store with optional expiry.
// A ttl of zero stores the entry without expiry.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
}
