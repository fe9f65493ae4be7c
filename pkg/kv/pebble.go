package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var PrefixObject = []byte("obj:")

type pebbleBackend struct {
	db *pebble.DB
}

// OpenPebble opens a Pebble-backed store in dir.
func OpenPebble(dir string) (Backend, error) {
	return openPebble(dir, &pebble.Options{})
}

// OpenPebbleInMemory opens a Pebble store on an in-memory filesystem.
func OpenPebbleInMemory() (Backend, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (Backend, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &pebbleBackend{db: db}, nil
}

func (p *pebbleBackend) Name() string { return "pebble" }

func (p *pebbleBackend) Close() error {
	return p.db.Close()
}

func (p *pebbleBackend) Put(ctx context.Context, key string, val []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.Set(encodeKey(key), val, pebble.Sync)
}

func (p *pebbleBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	val, closer, err := p.db.Get(encodeKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	res := make([]byte, len(val))
	copy(res, val)
	return res, true, nil
}

func (p *pebbleBackend) Iterate(ctx context.Context, fn func(key string, val []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: PrefixObject,
		UpperBound: incrementByte(PrefixObject),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := string(iter.Key()[len(PrefixObject):])
		val := make([]byte, len(iter.Value()))
		copy(val, iter.Value())

		if err := fn(key, val); err != nil {
			return err
		}
	}
	return iter.Error()
}

func encodeKey(key string) []byte {
	k := make([]byte, 0, len(PrefixObject)+len(key))
	k = append(k, PrefixObject...)
	return append(k, key...)
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
