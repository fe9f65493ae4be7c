package testkit

import (
	"bytes"
	"context"
	"sync/atomic"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/agenthands/edgecas/pkg/kv"
)

// CountingBackend records how often the store touched the backend.
type CountingBackend struct {
	kv.Backend
	puts atomic.Int64
	gets atomic.Int64
}

func NewCountingBackend(b kv.Backend) *CountingBackend {
	return &CountingBackend{Backend: b}
}

func (c *CountingBackend) Put(ctx context.Context, key string, val []byte) error {
	c.puts.Add(1)
	return c.Backend.Put(ctx, key, val)
}

func (c *CountingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets.Add(1)
	return c.Backend.Get(ctx, key)
}

// Iterate forwards to the wrapped backend when it can list.
func (c *CountingBackend) Iterate(ctx context.Context, fn func(key string, val []byte) error) error {
	l, ok := c.Backend.(kv.Lister)
	if !ok {
		return core.ErrNotSupported
	}
	return l.Iterate(ctx, fn)
}

func (c *CountingBackend) Puts() int64 { return c.puts.Load() }
func (c *CountingBackend) Gets() int64 { return c.gets.Load() }

// CountRecords returns the number of keys a listing backend holds.
func CountRecords(ctx context.Context, l kv.Lister) (int, error) {
	n := 0
	err := l.Iterate(ctx, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

// CorruptBody flips a byte of body inside a stored record, leaving the
// record structurally decodable. Falls back to flipping the last byte when
// body does not appear verbatim.
func CorruptBody(stored, body []byte) []byte {
	out := make([]byte, len(stored))
	copy(out, stored)
	if len(out) == 0 {
		return out
	}
	i := bytes.Index(out, body)
	if i < 0 || len(body) == 0 {
		out[len(out)-1] ^= 0xFF
		return out
	}
	out[i+len(body)/2] ^= 0x01
	return out
}
