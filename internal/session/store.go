package session

import (
	"context"
	"time"

	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"github.com/zeromicro/go-zero/core/collection"
	"go.uber.org/zap"
)

const (
	DefaultCacheLimit = 1024
	DefaultCacheTTL   = 5 * time.Minute
)

// Store is the session surface used by the agent proxy.
type Store interface {
	// Get returns (nil, nil) when no session exists for key.
	Get(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// Backend persists encoded snapshots. Load returns a SessionNotFound
// error for unknown keys.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// ManagerOption tunes the in-process cache of a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	limit int
	ttl   time.Duration
}

// WithCacheLimit bounds the number of cached sessions, least recently used
// first out. Zero keeps the default; negative disables the cache.
func WithCacheLimit(n int) ManagerOption {
	return func(o *managerOptions) {
		if n != 0 {
			o.limit = n
		}
	}
}

// WithCacheTTL sets how long a cached session is served without reading
// the backend. Zero keeps the default.
func WithCacheTTL(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// Manager caches sessions in memory in front of a Backend. The cache is
// bounded by size and TTL; gateways sharing one backend see each other's
// writes once the TTL has passed.
type Manager struct {
	cache   *collection.Cache // nil when disabled
	backend Backend
	codec   *Codec
}

func NewManager(backend Backend, codec *Codec, opts ...ManagerOption) *Manager {
	o := managerOptions{limit: DefaultCacheLimit, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager{backend: backend, codec: codec}
	if o.limit > 0 {
		c, err := collection.NewCache(o.ttl, collection.WithLimit(o.limit), collection.WithName("sessions"))
		if err != nil {
			logger.Warn(context.Background(), "session cache disabled", zap.Error(err))
		}
		m.cache = c
	}
	return m
}

func (m *Manager) cached(key string) (*Session, bool) {
	if m.cache == nil {
		return nil, false
	}
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func (m *Manager) remember(s *Session) {
	if m.cache != nil {
		m.cache.Set(s.Key, s)
	}
}

func (m *Manager) Get(ctx context.Context, key string) (*Session, error) {
	if s, ok := m.cached(key); ok {
		return s.Clone(), nil
	}

	data, err := m.backend.Load(ctx, key)
	if err != nil {
		if appErr.Is(err, appErr.SessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s, err := m.codec.Decode(data)
	if err != nil {
		logger.Warn(ctx, "discarding corrupted session", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if s.Key != key {
		return nil, appErr.Newf(appErr.SessionKeyMismatch,
			"stored session key %q does not match %q", s.Key, key)
	}

	m.remember(s)
	return s.Clone(), nil
}

// GetOrCreate returns the stored session or a fresh one. The fresh session
// is not persisted until Save.
func (m *Manager) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	s, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = New(key)
	}
	return s, nil
}

func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Key == "" {
		return appErr.InvalidParam("session.key", "is required")
	}
	data, err := m.codec.Encode(s)
	if err != nil {
		return err
	}
	if err := m.backend.Store(ctx, s.Key, data); err != nil {
		return appErr.Wrapf(err, appErr.SessionSaveFailed, "save session %q failed: %v", s.Key, err)
	}
	m.remember(s.Clone())
	return nil
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.cache != nil {
		m.cache.Del(key)
	}
	return m.backend.Delete(ctx, key)
}

func notFound(key string) error {
	return appErr.Newf(appErr.SessionNotFound, "session %q not found", key)
}
