package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) Store(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	b.data[key] = append([]byte(nil), data...)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.data, key)
	b.mu.Unlock()
	return nil
}
