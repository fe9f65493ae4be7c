// Package edge is the URL-keyed response cache that sits in front of the
// durable store.
//
// A cache is never authoritative. Every entry may vanish at any time and a
// miss is always a safe answer; callers fall back to the store.
package edge

import (
	"context"
	"net/http"
	"time"
)

// Response is a cached HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// Cache stores responses by full request URL.
type Cache interface {
	Name() string
	// Match returns ok=false on a miss or an expired entry.
	Match(ctx context.Context, url string) (resp *Response, ok bool, err error)
	// Put stores resp for ttl. A non-positive ttl is a no-op.
	Put(ctx context.Context, url string, resp *Response, ttl time.Duration) error
	Close() error
}

type noneCache struct{}

// NewNone returns a cache that never holds anything.
func NewNone() Cache { return noneCache{} }

func (noneCache) Name() string { return "none" }
func (noneCache) Close() error { return nil }

func (noneCache) Match(context.Context, string) (*Response, bool, error) { return nil, false, nil }

func (noneCache) Put(context.Context, string, *Response, time.Duration) error { return nil }
