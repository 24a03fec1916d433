package cache

import (
	"context"
	"time"
)

// Cache is the key-value surface used for session snapshots.
type Cache interface {
	// Get returns (nil, nil) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value. ttl <= 0 keeps the key forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
