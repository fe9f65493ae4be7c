package testkit

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/agenthands/edgecas/pkg/edge"
	"github.com/agenthands/edgecas/pkg/kv"
)

var ErrInjectedFault = errors.New("injected fault")

// ErrorReader wraps an io.Reader and returns an error after returning N bytes.
type ErrorReader struct {
	r     io.Reader
	limit int64
	read  int64
	err   error
}

// NewErrorReader returns a reader that will inject the given error after reading 'limit' bytes.
// If err is nil, ErrInjectedFault is used.
func NewErrorReader(r io.Reader, limit int64, err error) *ErrorReader {
	if err == nil {
		err = ErrInjectedFault
	}
	return &ErrorReader{r: r, limit: limit, err: err}
}

func (e *ErrorReader) Read(p []byte) (n int, err error) {
	if e.read >= e.limit {
		return 0, e.err
	}
	if space := e.limit - e.read; int64(len(p)) > space {
		p = p[:space]
	}
	n, err = e.r.Read(p)
	e.read += int64(n)
	if err != nil {
		return n, err
	}
	if e.read >= e.limit {
		return n, e.err
	}
	return n, nil
}

// FaultyBackend fails Put or Get while the corresponding switch is on.
type FaultyBackend struct {
	kv.Backend
	FailPut atomic.Bool
	FailGet atomic.Bool
}

func NewFaultyBackend(b kv.Backend) *FaultyBackend {
	return &FaultyBackend{Backend: b}
}

func (f *FaultyBackend) Put(ctx context.Context, key string, val []byte) error {
	if f.FailPut.Load() {
		return ErrInjectedFault
	}
	return f.Backend.Put(ctx, key, val)
}

func (f *FaultyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.FailGet.Load() {
		return nil, false, ErrInjectedFault
	}
	return f.Backend.Get(ctx, key)
}

// FaultyCache fails Match or Put while the corresponding switch is on.
type FaultyCache struct {
	edge.Cache
	FailMatch atomic.Bool
	FailPut   atomic.Bool
}

func NewFaultyCache(c edge.Cache) *FaultyCache {
	return &FaultyCache{Cache: c}
}

func (f *FaultyCache) Match(ctx context.Context, url string) (*edge.Response, bool, error) {
	if f.FailMatch.Load() {
		return nil, false, ErrInjectedFault
	}
	return f.Cache.Match(ctx, url)
}

func (f *FaultyCache) Put(ctx context.Context, url string, resp *edge.Response, ttl time.Duration) error {
	if f.FailPut.Load() {
		return ErrInjectedFault
	}
	return f.Cache.Put(ctx, url, resp, ttl)
}
