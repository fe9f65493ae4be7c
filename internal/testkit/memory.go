package testkit

import (
	"context"
	"sort"
	"sync"
)

type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend returns a map-backed kv.Backend for tests that need to
// tamper with stored bytes or wrap a cheap backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Name() string { return "memory" }
func (m *MemoryBackend) Close() error { return nil }

func (m *MemoryBackend) Put(ctx context.Context, key string, val []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := append([]byte(nil), val...)

	m.mu.Lock()
	m.data[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	val, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

// Iterate visits keys in sorted order over a snapshot of the key set.
func (m *MemoryBackend) Iterate(ctx context.Context, fn func(key string, val []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, ok, _ := m.Get(ctx, k)
		if !ok {
			continue
		}
		if err := fn(k, val); err != nil {
			return err
		}
	}
	return nil
}
