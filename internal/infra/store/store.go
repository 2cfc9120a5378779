// Package store defines the durable key/value capability the caches, locks
// and quota windows are built on. Any engine offering TTL expiry,
// insert-if-absent and atomic increment satisfies it.
package store

import (
	"context"
	"time"
)

// Store is the durable store capability.
//
// Get returns (nil, nil) for a missing or expired key. SetNX inserts only
// if the key is absent and reports whether the insert happened. IncrBy
// atomically adds delta to an integer key, creating it at zero first, and
// refreshes the key's TTL on every call.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}
