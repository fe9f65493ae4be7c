package edgecas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agenthands/edgecas/pkg/background"
	"github.com/agenthands/edgecas/pkg/canonical"
	"github.com/agenthands/edgecas/pkg/cidutil"
	"github.com/agenthands/edgecas/pkg/core"
	"github.com/agenthands/edgecas/pkg/edge"
	"github.com/agenthands/edgecas/pkg/ident"
	"github.com/agenthands/edgecas/pkg/kv"
	"github.com/agenthands/edgecas/pkg/record"
	"github.com/agenthands/edgecas/pkg/schema"
	"github.com/agenthands/edgecas/pkg/transform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const drainTimeout = 30 * time.Second

type store struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics

	validator schema.Validator
	deriver   ident.Deriver
	cidHub    cidutil.Builder
	records   record.Codec
	transform transform.Transform

	backend kv.Backend
	cache   edge.Cache
	tasks   background.Scheduler

	// closers run in order on Close; the first drains background work.
	closers []func() error
	closed  atomic.Bool
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option customizes Open.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the store's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Open builds a store from cfg. Every backend handle is created here, once,
// before the store serves its first call.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	cfg = withDefaults(cfg)
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	clients := &redisClients{}
	var cleanup []func() error
	fail := func(err error) (Store, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i]()
		}
		_ = clients.Close()
		return nil, err
	}

	backend, err := openBackend(ctx, cfg.Store, clients)
	if err != nil {
		return fail(fmt.Errorf("failed to open store backend: %w", err))
	}
	cleanup = append(cleanup, backend.Close)

	cache, err := openCache(cfg.Cache, clients)
	if err != nil {
		return fail(fmt.Errorf("failed to open edge cache: %w", err))
	}
	cleanup = append(cleanup, cache.Close)

	m := newMetrics(o.registerer)
	bgCfg := background.Config{
		Workers:     cfg.Background.Workers,
		QueueDepth:  cfg.Background.QueueDepth,
		TaskTimeout: cfg.Background.TaskTimeout,
		Logger:      o.logger.Named("background"),
		Observer:    m.observeTask,
	}

	var tasks background.Scheduler
	drain := func() error { return nil }
	if cfg.Background.Inline {
		tasks = background.NewInline(bgCfg)
	} else {
		q := background.NewQueue(bgCfg)
		tasks = q
		drain = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			return q.Close(ctx)
		}
	}

	s, err := newStore(cfg, backend, cache, tasks, o.logger, m)
	if err != nil {
		_ = drain()
		return fail(err)
	}
	s.closers = []func() error{drain, cache.Close, backend.Close, clients.Close}

	o.logger.Info("store opened",
		zap.String("policy", s.deriver.Name()),
		zap.String("backend", backend.Name()),
		zap.String("cache", cache.Name()),
		zap.String("transform", s.transform.Name()),
	)
	return s, nil
}

func newStore(cfg Config, backend kv.Backend, cache edge.Cache, tasks background.Scheduler, logger *zap.Logger, m *metrics) (*store, error) {
	cfg = withDefaults(cfg)

	v, err := schema.New()
	if err != nil {
		return nil, err
	}
	d, err := ident.New(cfg.Policy)
	if err != nil {
		return nil, err
	}
	tr, err := transform.New(cfg.Transform.Name, cfg.Transform.ZstdLevel)
	if err != nil {
		return nil, err
	}

	// Size limits gate Ingest and Restore only. Records already stored stay
	// readable after the limit is lowered.
	records := record.NewCodec(core.LimitsConfig{})

	return &store{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		validator: v,
		deriver:   d,
		cidHub:    cidutil.NewBuilder(),
		records:   records,
		transform: tr,
		backend:   backend,
		cache:     cache,
		tasks:     tasks,
	}, nil
}

func openBackend(ctx context.Context, cfg StoreConfig, clients *redisClients) (kv.Backend, error) {
	switch cfg.Backend {
	case "pebble":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: pebble backend needs a directory", ErrInvalidInput)
		}
		return kv.OpenPebble(cfg.Dir)
	case "redis":
		return kv.NewRedisWithClient(clients.get(cfg.Redis), cfg.Redis.Prefix), nil
	case "s3":
		return kv.NewS3(ctx, cfg.S3)
	case "memory":
		return kv.OpenPebbleInMemory()
	default:
		return nil, fmt.Errorf("%w: unsupported store backend %q", ErrInvalidInput, cfg.Backend)
	}
}

func openCache(cfg CacheConfig, clients *redisClients) (edge.Cache, error) {
	switch cfg.Backend {
	case "memory":
		return edge.NewMemory(cfg.MaxEntries), nil
	case "redis":
		return edge.NewRedis(clients.get(cfg.Redis), cfg.Redis.Prefix, false), nil
	case "none":
		return edge.NewNone(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported cache backend %q", ErrInvalidInput, cfg.Backend)
	}
}

// redisClients hands out one client per server so the store and the cache
// share connections when they point at the same redis.
type redisClients struct {
	clients map[RedisConfig]*redis.Client
}

func (c *redisClients) get(cfg RedisConfig) *redis.Client {
	key := RedisConfig{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if c.clients == nil {
		c.clients = make(map[RedisConfig]*redis.Client)
	}
	if cl, ok := c.clients[key]; ok {
		return cl
	}
	cl := kv.NewRedisClient(key)
	c.clients[key] = cl
	return cl
}

func (c *redisClients) Close() error {
	var errs []error
	for _, cl := range c.clients {
		errs = append(errs, cl.Close())
	}
	c.clients = nil
	return errors.Join(errs...)
}

func (s *store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *store) Ingest(ctx context.Context, body []byte) (Identifier, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	doc, err := decodeJSON(body)
	if err != nil {
		s.metrics.ingest("rejected_json")
		return "", core.Reject(ErrInvalidJSON, ReasonInvalidJSON)
	}

	valid, reasons := s.validator.Validate(doc)
	if len(reasons) > 0 {
		s.metrics.ingest("rejected_schema")
		return "", core.Reject(ErrInvalidInput, reasons...)
	}

	canon, err := canonical.Marshal(valid)
	if err != nil {
		s.metrics.ingest("rejected_json")
		return "", core.Reject(ErrInvalidJSON, ReasonInvalidJSON)
	}

	// The limit applies to the normalized form, not to the raw body.
	if len(canon) > s.cfg.Limits.MaxCanonicalBytes {
		s.metrics.ingest("rejected_size")
		return "", core.Reject(ErrTooLarge, ReasonTooLarge)
	}

	id, err := s.deriver.Derive(canon)
	if err != nil {
		s.metrics.ingest("error")
		return "", err
	}
	url := s.url(id)

	if s.deriver.Deduplicates() {
		if resp, ok := s.match(ctx, url); ok && resp.Status == http.StatusOK {
			s.metrics.ingest("deduplicated")
			return id, nil
		}
	}

	if err := s.putObject(ctx, id, canon); err != nil {
		s.metrics.ingest("error")
		return "", err
	}
	s.metrics.ingest("stored")
	s.logger.Debug("object stored", zap.String("id", string(id)), zap.Int("bytes", len(canon)))

	s.warm(url, buildResponse(id, canon, s.cfg.Caching.MaxAge), s.cfg.Caching.MaxAge)
	return id, nil
}

func (s *store) Retrieve(ctx context.Context, id string) (*edge.Response, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if !ident.Valid(id) {
		s.metrics.retrieve("miss")
		return nil, ErrNotFound
	}
	url := s.url(Identifier(id))

	if resp, ok := s.match(ctx, url); ok {
		if resp.Status != http.StatusOK {
			s.metrics.retrieve("cache_negative")
			return nil, ErrNotFound
		}
		s.metrics.retrieve("cache")
		return resp, nil
	}

	body, ok, err := s.getObject(ctx, id)
	if err != nil {
		s.metrics.retrieve("error")
		return nil, err
	}
	if !ok {
		s.metrics.retrieve("miss")
		if s.cfg.Caching.NegativeCache {
			s.warmNegative(Identifier(id), url)
		}
		return nil, ErrNotFound
	}

	s.metrics.retrieve("store")
	resp := buildResponse(Identifier(id), body, s.cfg.Caching.MaxAge)
	s.warm(url, resp.Clone(), s.cfg.Caching.MaxAge)
	return resp, nil
}

func (s *store) Walk(ctx context.Context, fn func(Object) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	lister, ok := s.backend.(kv.Lister)
	if !ok {
		return fmt.Errorf("%w: backend %s cannot list objects", ErrNotSupported, s.backend.Name())
	}
	return lister.Iterate(ctx, func(key string, val []byte) error {
		body, err := s.decodeObject(key, val)
		if err != nil {
			return err
		}
		return fn(Object{ID: Identifier(key), Body: body})
	})
}

func (s *store) Restore(ctx context.Context, obj Object) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !ident.Valid(string(obj.ID)) {
		return fmt.Errorf("%w: malformed identifier %q", ErrInvalidInput, obj.ID)
	}
	if len(obj.Body) > s.cfg.Limits.MaxCanonicalBytes {
		return fmt.Errorf("%w: object %s is %d bytes", ErrTooLarge, obj.ID, len(obj.Body))
	}

	canon, err := canonical.Transform(obj.Body)
	if err != nil || !bytes.Equal(canon, obj.Body) {
		return fmt.Errorf("%w: object %s is not canonical JSON", ErrCorrupt, obj.ID)
	}
	if s.deriver.Deduplicates() {
		want, err := s.deriver.Derive(obj.Body)
		if err != nil {
			return err
		}
		if want != obj.ID {
			return fmt.Errorf("%w: object %s hashes to %s", ErrCorrupt, obj.ID, want)
		}
	}
	return s.putObject(ctx, obj.ID, obj.Body)
}

func (s *store) url(id Identifier) string {
	return strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + string(id)
}

// match probes the edge cache. Failures count as misses.
func (s *store) match(ctx context.Context, url string) (*edge.Response, bool) {
	resp, ok, err := s.cache.Match(ctx, url)
	if err != nil {
		s.metrics.cacheError("match")
		s.logger.Warn("edge cache match failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	return resp, ok
}

// warm schedules a cache write. It never blocks and never fails the caller.
func (s *store) warm(url string, resp *edge.Response, ttl time.Duration) {
	s.tasks.Schedule("warm", func(ctx context.Context) error {
		if err := s.cache.Put(ctx, url, resp, ttl); err != nil {
			s.metrics.cacheError("put")
			return err
		}
		return nil
	})
}

// warmNegative caches a 404 once absence is confirmed again inside the
// task. If the object arrived meanwhile the positive response is cached
// instead.
func (s *store) warmNegative(id Identifier, url string) {
	s.tasks.Schedule("warm_negative", func(ctx context.Context) error {
		body, ok, err := s.getObject(ctx, string(id))
		if err != nil {
			return err
		}
		resp, ttl := notFoundResponse(s.cfg.Caching.NegativeMaxAge), s.cfg.Caching.NegativeMaxAge
		if ok {
			resp, ttl = buildResponse(id, body, s.cfg.Caching.MaxAge), s.cfg.Caching.MaxAge
		}
		if err := s.cache.Put(ctx, url, resp, ttl); err != nil {
			s.metrics.cacheError("put")
			return err
		}
		return nil
	})
}

func (s *store) putObject(ctx context.Context, id Identifier, body []byte) error {
	bodyCID, err := s.cidHub.BodyCID(body)
	if err != nil {
		return err
	}

	rec, err := s.records.Encode(&record.ObjectV1{
		Version:   1,
		ID:        string(id),
		CID:       bodyCID,
		MediaType: record.MediaTypeJSON,
		Length:    uint64(len(body)),
		Body:      body,
	})
	if err != nil {
		return err
	}

	stored, err := s.transform.Encode(rec)
	if err != nil {
		return err
	}

	if err := s.backend.Put(ctx, string(id), stored); err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrBackend, id, err)
	}
	return nil
}

func (s *store) getObject(ctx context.Context, id string) ([]byte, bool, error) {
	stored, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %w", ErrBackend, id, err)
	}
	if !ok {
		return nil, false, nil
	}
	body, err := s.decodeObject(id, stored)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (s *store) decodeObject(id string, stored []byte) ([]byte, error) {
	rec, err := s.transform.Decode(stored)
	if err != nil {
		return nil, err
	}
	o, err := s.records.Decode(rec)
	if err != nil {
		return nil, err
	}
	if o.ID != id {
		return nil, fmt.Errorf("%w: key %s holds record for %s", ErrCorrupt, id, o.ID)
	}
	if err := s.cidHub.Verify(o.CID, o.Body); err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	return o.Body, nil
}

// decodeJSON accepts exactly one JSON value. Numbers stay exact.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}
