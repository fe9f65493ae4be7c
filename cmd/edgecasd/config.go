package main

import (
	"fmt"
	"os"

	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type logConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type daemonConfig struct {
	Listen        string         `yaml:"listen"`
	MetricsListen string         `yaml:"metrics_listen"` // empty disables the metrics listener
	Log           logConfig      `yaml:"log"`
	Store         edgecas.Config `yaml:"edgecas"`
}

func defaultConfig() daemonConfig {
	return daemonConfig{
		Listen:        ":8080",
		MetricsListen: ":9090",
		Log:           logConfig{Level: "info", Format: "json"},
	}
}

// loadConfig reads the YAML file named by --config, then applies every flag
// that was set explicitly on the command line.
func loadConfig(args []string) (daemonConfig, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("edgecasd", pflag.ContinueOnError)
	var (
		path            = fs.String("config", "", "path to a YAML config file")
		listen          = fs.String("listen", cfg.Listen, "address of the public HTTP listener")
		metricsListen   = fs.String("metrics-listen", cfg.MetricsListen, "address of the metrics listener; empty disables it")
		logLevel        = fs.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")
		logFormat       = fs.String("log-format", cfg.Log.Format, "log format: json or console")
		policy          = fs.String("policy", "", "identifier policy: content-hash or random-token")
		publicURL       = fs.String("public-url", "", "public base URL used for cache keys")
		storeBackend    = fs.String("store-backend", "", "durable store: pebble, redis, s3, memory")
		storeDir        = fs.String("store-dir", "", "pebble data directory")
		cacheBackend    = fs.String("cache-backend", "", "edge cache: memory, redis, none")
		redisAddr       = fs.String("redis-addr", "", "redis address for both store and cache")
		s3Bucket        = fs.String("s3-bucket", "", "S3 bucket for the durable store")
		transformName   = fs.String("transform", "", "record transform: none or zstd")
		negativeCache   = fs.Bool("negative-cache", false, "cache 404 responses")
		maxRequestBytes = fs.Int64("max-request-bytes", 0, "cap on raw request bodies; 0 disables")
	)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", *path, err)
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("listen", func() { cfg.Listen = *listen })
	set("metrics-listen", func() { cfg.MetricsListen = *metricsListen })
	set("log-level", func() { cfg.Log.Level = *logLevel })
	set("log-format", func() { cfg.Log.Format = *logFormat })
	set("policy", func() { cfg.Store.Policy = *policy })
	set("public-url", func() { cfg.Store.PublicURL = *publicURL })
	set("store-backend", func() { cfg.Store.Store.Backend = *storeBackend })
	set("store-dir", func() { cfg.Store.Store.Dir = *storeDir })
	set("cache-backend", func() { cfg.Store.Cache.Backend = *cacheBackend })
	set("redis-addr", func() {
		cfg.Store.Store.Redis.Addr = *redisAddr
		cfg.Store.Cache.Redis.Addr = *redisAddr
	})
	set("s3-bucket", func() { cfg.Store.Store.S3.Bucket = *s3Bucket })
	set("transform", func() { cfg.Store.Transform.Name = *transformName })
	set("negative-cache", func() { cfg.Store.Caching.NegativeCache = *negativeCache })
	set("max-request-bytes", func() { cfg.Store.Limits.MaxRequestBytes = *maxRequestBytes })

	return cfg, nil
}

func newLogger(cfg logConfig) (*zap.Logger, error) {
	lc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		lc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		lc.Level = level
	}
	return lc.Build()
}
