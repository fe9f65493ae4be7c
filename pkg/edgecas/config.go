package edgecas

import (
	"github.com/agenthands/edgecas/pkg/core"
)

type Config = core.Config
type StoreConfig = core.StoreConfig
type CacheConfig = core.CacheConfig
type RedisConfig = core.RedisConfig
type S3Config = core.S3Config
type LimitsConfig = core.LimitsConfig
type CachingConfig = core.CachingConfig
type TransformConfig = core.TransformConfig
type BackgroundConfig = core.BackgroundConfig

const (
	DefaultMaxCanonicalBytes = core.DefaultMaxCanonicalBytes
	DefaultMaxAge            = core.DefaultMaxAge
)

// withDefaults fills zero values.
func withDefaults(cfg Config) Config {
	if cfg.Store.Backend == "" {
		if cfg.Store.Dir != "" {
			cfg.Store.Backend = "pebble"
		} else {
			cfg.Store.Backend = "memory"
		}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Limits.MaxCanonicalBytes <= 0 {
		cfg.Limits.MaxCanonicalBytes = DefaultMaxCanonicalBytes
	}
	if cfg.Caching.MaxAge <= 0 {
		cfg.Caching.MaxAge = DefaultMaxAge
	}
	if cfg.Caching.NegativeMaxAge <= 0 {
		cfg.Caching.NegativeMaxAge = cfg.Caching.MaxAge
	}
	return cfg
}
