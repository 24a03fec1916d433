package session

import (
	"context"
	"time"

	"sandgate/internal/common/cache"
	"sandgate/internal/common/db"
	"sandgate/internal/common/storage"
	appErr "sandgate/pkg/errors"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMinIO  = "minio"
	BackendMySQL  = "mysql"
)

// Config selects and configures the session backend.
type Config struct {
	Backend  string              `yaml:"backend"`
	Dir      string              `yaml:"dir"`
	Compress bool                `yaml:"compress"`
	TTL      time.Duration       `yaml:"ttl"`
	Prefix   string              `yaml:"prefix"`
	Redis    cache.RedisConfig   `yaml:"redis"`
	MinIO    storage.MinIOConfig `yaml:"minio"`
	MySQL    MySQLConfig         `yaml:"mysql"`

	// CacheLimit and CacheTTL bound the in-process cache; see NewManager.
	CacheLimit int           `yaml:"cacheLimit"`
	CacheTTL   time.Duration `yaml:"cacheTTL"`
}

// MySQLConfig configures the mysql backend.
type MySQLConfig struct {
	db.MySQLConfig `yaml:",inline"`
	Table          string `yaml:"table"`
}

// Open builds a Manager for cfg. The returned close func releases backend
// connections and is never nil.
func Open(ctx context.Context, cfg Config) (*Manager, func(), error) {
	codec, err := NewCodec(cfg.Compress)
	if err != nil {
		return nil, nil, err
	}
	noop := func() {}
	opts := []ManagerOption{WithCacheLimit(cfg.CacheLimit), WithCacheTTL(cfg.CacheTTL)}

	switch cfg.Backend {
	case "", BackendMemory:
		return NewManager(NewMemoryBackend(), codec, opts...), noop, nil
	case BackendFile:
		b, err := NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return NewManager(b, codec, opts...), noop, nil
	case BackendRedis:
		redisCfg := cfg.Redis
		if redisCfg.Addr == "" {
			redisCfg = *cache.DefaultRedisConfig()
		}
		c, err := cache.NewRedisCacheWithConfig(&redisCfg)
		if err != nil {
			return nil, nil, appErr.Wrapf(err, appErr.CacheError, "connect session redis failed: %v", err)
		}
		return NewManager(NewRedisBackend(c, cfg.Prefix, cfg.TTL), codec, opts...), func() { _ = c.Close() }, nil
	case BackendMinIO:
		s, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return nil, nil, appErr.Wrapf(err, appErr.StorageError, "create session storage failed: %v", err)
		}
		if cfg.MinIO.Bucket == "" {
			return nil, nil, appErr.InvalidParam("session.minio.bucket", "is required")
		}
		if err := s.EnsureBucket(ctx, cfg.MinIO.Bucket); err != nil {
			return nil, nil, appErr.Wrapf(err, appErr.StorageError, "prepare session bucket failed: %v", err)
		}
		return NewManager(NewObjectBackend(s, cfg.MinIO.Bucket, cfg.Prefix), codec, opts...), noop, nil
	case BackendMySQL:
		conn, err := db.NewMySQLWithConfig(&cfg.MySQL.MySQLConfig)
		if err != nil {
			return nil, nil, appErr.Wrapf(err, appErr.StorageError, "connect session mysql failed: %v", err)
		}
		b, err := NewMySQLBackend(conn, cfg.MySQL.Table)
		if err == nil {
			err = b.EnsureSchema(ctx)
		}
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return NewManager(b, codec, opts...), func() { _ = conn.Close() }, nil
	default:
		return nil, nil, appErr.Newf(appErr.ConfigInvalid, "unknown session backend %q", cfg.Backend)
	}
}
