package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "edgecas:resp:"

// redisEntry is the wire form of a cached response.
type redisEntry struct {
	Status int                 `cbor:"status"`
	Header map[string][]string `cbor:"header"`
	Body   []byte              `cbor:"body"`
}

type redisCache struct {
	client    redis.UniversalClient
	prefix    string
	ownClient bool
	encMode   cbor.EncMode
}

// NewRedis returns a cache on client. Entries expire through redis TTLs.
// When ownClient is set, Close closes the client.
func NewRedis(client redis.UniversalClient, prefix string, ownClient bool) Cache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	em, _ := cbor.CoreDetEncOptions().EncMode()
	return &redisCache{client: client, prefix: prefix, ownClient: ownClient, encMode: em}
}

func (c *redisCache) Name() string { return "redis" }

func (c *redisCache) Close() error {
	if c.ownClient {
		return c.client.Close()
	}
	return nil
}

func (c *redisCache) Match(ctx context.Context, url string) (*Response, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+url).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", url, err)
	}

	var e redisEntry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		// An undecodable entry is a miss; the next Put replaces it.
		return nil, false, nil
	}
	return &Response{Status: e.Status, Header: http.Header(e.Header), Body: e.Body}, true, nil
}

func (c *redisCache) Put(ctx context.Context, url string, resp *Response, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := c.encMode.Marshal(redisEntry{Status: resp.Status, Header: resp.Header, Body: resp.Body})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+url, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", url, err)
	}
	return nil
}
