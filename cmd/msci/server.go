package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/okian/msci/internal/adapters/http/api"
	"github.com/okian/msci/internal/adapters/http/swagger"
	"github.com/okian/msci/internal/adapters/wiki"
	app "github.com/okian/msci/internal/app"
	"github.com/okian/msci/internal/config"
	"github.com/okian/msci/pkg/logger"
	"github.com/okian/msci/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout        = 10 * time.Second
	writeTimeoutMargin = 10 * time.Second
	idleTimeout        = 60 * time.Second
	readHeaderTimeout  = 5 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func run(ctx context.Context) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	initMetrics(cfg)

	svc := newService(cfg)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := newHTTPServer(ctx, cfg, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		every(gctx, metrics.RefreshInterval(), func() {
			updateSystemMetrics()
			svc.GetStats()
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// initMetrics rebuilds the global metrics manager from cfg. It must run before
// the HTTP server is built so /healthz serves the new registry.
func initMetrics(cfg *config.Config) {
	metrics.Init(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithRefreshInterval(cfg.MetricsRefreshInterval()),
	)
}

func newService(cfg *config.Config) *app.Service {
	return app.New(
		app.WithLogger(logger.Get().Named("service")),
		app.WithWorkerCount(cfg.WikiThreadCount),
		app.WithQueueSize(cfg.TaskQueueSize),
		app.WithBatchSize(cfg.WikiBatchSize),
		app.WithMaxDepth(cfg.MaxDepth),
		app.WithJobTimeout(cfg.JobTimeout()),
		app.WithResultCache(cfg.ResultCacheSize, cfg.ResultCacheTTL()),
		app.WithWikiAPI(cfg.WikiAPIURL,
			wiki.WithUserAgent(cfg.WikiUserAgent),
			wiki.WithAccessToken(cfg.WikiAccessToken),
			wiki.WithTimeout(cfg.WikiRequestTimeout()),
			wiki.WithMaxRetries(cfg.WikiMaxRetries),
			wiki.WithRateLimit(cfg.WikiRateLimit),
		),
	)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.JobTimeout() + writeTimeoutMargin,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
