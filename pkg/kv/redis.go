package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agenthands/edgecas/pkg/core"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "edgecas:obj:"

type redisBackend struct {
	client    redis.UniversalClient
	prefix    string
	ownClient bool
}

// NewRedisClient builds a client from cfg. Callers that share one client
// between the store and the edge cache construct it once and pass it to
// NewRedisWithClient and edge.NewRedis.
func NewRedisClient(cfg core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedis returns a backend owning a fresh client.
func NewRedis(cfg core.RedisConfig) Backend {
	b := NewRedisWithClient(NewRedisClient(cfg), cfg.Prefix).(*redisBackend)
	b.ownClient = true
	return b
}

// NewRedisWithClient returns a backend on a shared client. Close does not
// close the client.
func NewRedisWithClient(client redis.UniversalClient, prefix string) Backend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisBackend{client: client, prefix: prefix}
}

func (r *redisBackend) Name() string { return "redis" }

func (r *redisBackend) Close() error {
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}

// Put uses SETNX without expiry. A second writer of the same key finds it
// present and does nothing, which is correct since the value is identical.
func (r *redisBackend) Put(ctx context.Context, key string, val []byte) error {
	if err := r.client.SetNX(ctx, r.prefix+key, val, 0).Err(); err != nil {
		return fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return nil
}

func (r *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *redisBackend) Iterate(ctx context.Context, fn func(key string, val []byte) error) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, ok, err := r.Get(ctx, strings.TrimPrefix(full, r.prefix))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(strings.TrimPrefix(full, r.prefix), val); err != nil {
			return err
		}
	}
	return iter.Err()
}
