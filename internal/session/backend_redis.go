package session

import (
	"context"
	"time"

	"sandgate/internal/common/cache"
	appErr "sandgate/pkg/errors"
)

const defaultRedisPrefix = "sandgate:session:"

// RedisBackend stores snapshots as redis strings.
type RedisBackend struct {
	cache  cache.Cache
	prefix string
	ttl    time.Duration
}

// NewRedisBackend uses prefix (default "sandgate:session:") and ttl (0 keeps
// keys forever).
func NewRedisBackend(c cache.Cache, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{cache: c, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.cache.Get(ctx, b.prefix+key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "redis get session %q failed", key)
	}
	if data == nil {
		return nil, notFound(key)
	}
	return data, nil
}

func (b *RedisBackend) Store(ctx context.Context, key string, data []byte) error {
	if err := b.cache.Set(ctx, b.prefix+key, data, b.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "redis set session %q failed", key)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.cache.Del(ctx, b.prefix+key); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "redis del session %q failed", key)
	}
	return nil
}
