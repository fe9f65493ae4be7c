// Command edgecasd serves the content-addressed object store over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/agenthands/edgecas/pkg/httpapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "edgecasd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "edgecasd"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := edgecas.Open(ctx, cfg.Store, edgecas.WithLogger(logger), edgecas.WithRegisterer(reg))
	if err != nil {
		return err
	}
	// Runs after the HTTP servers stopped, so no request can schedule work
	// on a drained queue.
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close failed", zap.Error(err))
		}
	}()

	srv := httpapi.NewServer(httpapi.ServerParams{
		Store:           store,
		Logger:          logger.Named("http"),
		MaxRequestBytes: cfg.Store.Limits.MaxRequestBytes,
	})
	servers := []*http.Server{{
		Addr:              cfg.Listen,
		Handler:           httpapi.InitRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errc := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Info("listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("listener %s: %w", s.Addr, err)
			}
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
		logger.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
	return runErr
}
