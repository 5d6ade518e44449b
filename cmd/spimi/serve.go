package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/middleware"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	port := fs.Int("port", 0, "listen port (overrides server.port)")
	proximity := fs.Bool("proximity", false, "re-rank with the positional proximity boost")
	if err := fs.Parse(args); err != nil {
		return apperrors.Newf(apperrors.ErrConfig, "%v", err)
	}
	if fs.NArg() != 1 {
		return apperrors.New(apperrors.ErrConfig, "serve needs exactly one index directory")
	}
	cfg, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		if set["port"] {
			cfg.Server.Port = *port
		}
		if set["proximity"] {
			cfg.Ranking.Proximity.Enabled = *proximity
		}
	})
	if err != nil {
		return err
	}
	m, stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	idx, err := executor.OpenIndex(fs.Arg(0))
	if err != nil {
		return err
	}
	exec := executor.New(idx, cfg, m)
	searcher, rc := withCache(ctx, cfg, exec, m)
	defer rc.close()

	checker := health.NewChecker(cfg.Server.RequestTimeout)
	checker.Register("index", health.Required(func(context.Context) error {
		_, err := os.Stat(idx.Dir)
		return err
	}))
	var invalidator handler.Invalidator
	if rc != nil {
		invalidator = rc.queries
		checker.Register("redis", health.Optional(rc.client.Ping))
	}

	mux := http.NewServeMux()
	handler.New(searcher, invalidator, idx.Meta, idx.Vocabulary()).Register(mux)
	mux.Handle("GET /healthz", checker.LiveHandler())
	mux.Handle("GET /readyz", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	// Metrics wraps the mux directly: it reads the matched pattern off the
	// request, and the other middleware replace the request.
	var h http.Handler = middleware.Metrics(m)(mux)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.RunSweeper(ctx, time.Minute)
		h = middleware.RateLimit(limiter)(h)
	}
	h = middleware.RequestID(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return listenAndServe(ctx, srv, cfg.Server.ShutdownTimeout)
}

// listenAndServe runs srv until ctx is cancelled, then drains in-flight
// requests for at most grace.
func listenAndServe(ctx context.Context, srv *http.Server, grace time.Duration) error {
	log := slog.Default().With("component", "server")
	errCh := make(chan error, 1)
	go func() {
		log.Info("search server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("search server: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down search server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("search server shutdown: %w", err)
	}
	return nil
}
