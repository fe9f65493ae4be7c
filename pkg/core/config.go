package core

import (
	"time"
)

const (
	DefaultMaxCanonicalBytes = 15 << 10
	DefaultMaxAge            = 7 * 24 * time.Hour
)

type Config struct {
	// Policy selects identifier derivation: "content-hash" (default) or "random-token".
	Policy string `yaml:"policy"`

	// PublicURL prefixes cache keys, e.g. "https://views.example.com". May be empty.
	PublicURL string `yaml:"public_url"`

	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Limits     LimitsConfig     `yaml:"limits"`
	Caching    CachingConfig    `yaml:"caching"`
	Transform  TransformConfig  `yaml:"transform"`
	Background BackgroundConfig `yaml:"background"`
}

type StoreConfig struct {
	Backend string      `yaml:"backend"` // pebble, redis, s3, memory
	Dir     string      `yaml:"dir"`     // pebble only
	Redis   RedisConfig `yaml:"redis"`
	S3      S3Config    `yaml:"s3"`
}

type CacheConfig struct {
	Backend    string      `yaml:"backend"` // memory, redis, none
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // MinIO, LocalStack, ...
	Prefix   string `yaml:"prefix"`
}

type LimitsConfig struct {
	MaxCanonicalBytes int   `yaml:"max_canonical_bytes"`
	MaxRequestBytes   int64 `yaml:"max_request_bytes"` // 0 = no cap
}

type CachingConfig struct {
	MaxAge         time.Duration `yaml:"max_age"`
	NegativeCache  bool          `yaml:"negative_cache"`
	NegativeMaxAge time.Duration `yaml:"negative_max_age"`
}

type TransformConfig struct {
	Name      string `yaml:"name"`
	ZstdLevel int    `yaml:"zstd_level"`
}

type BackgroundConfig struct {
	Workers     int           `yaml:"workers"`
	QueueDepth  int           `yaml:"queue_depth"`
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// Inline runs background tasks synchronously on the caller's goroutine.
	Inline bool `yaml:"inline"`
}
