// Package kv holds the durable key-value backends behind the object store.
//
// Backends are the single source of truth. Put must be idempotent: writing
// the same key with the same value any number of times, concurrently or
// not, leaves the store unchanged after the first write.
package kv

import (
	"context"
)

// Backend is a durable key-value store. Implementations must be safe for
// concurrent use.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, val []byte) error
	// Get returns ok=false for absent keys.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Close() error
}

// Lister is implemented by backends that can enumerate their contents.
type Lister interface {
	Iterate(ctx context.Context, fn func(key string, val []byte) error) error
}
