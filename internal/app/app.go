// Package app provides the main application lifecycle management for the
// media-archiver service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/media-archiver/internal/api"
	"github.com/jonesrussell/media-archiver/internal/archiver"
	"github.com/jonesrussell/media-archiver/internal/cleanup"
	"github.com/jonesrussell/media-archiver/internal/compress"
	"github.com/jonesrussell/media-archiver/internal/config"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/manifest"
	"github.com/jonesrussell/media-archiver/internal/metrics"
	"github.com/jonesrussell/media-archiver/internal/policy"
	"github.com/jonesrussell/media-archiver/internal/redis"
	"github.com/jonesrussell/media-archiver/internal/rehydrate"
	"github.com/jonesrussell/media-archiver/internal/routing"
	"github.com/jonesrussell/media-archiver/internal/sizelimit"
	"github.com/jonesrussell/media-archiver/internal/uploader"
	"github.com/jonesrussell/media-archiver/internal/urlcache"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

// App represents the archiver application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	store       *manifest.Store
	redisClient *goredis.Client
	cleaner     *cleanup.Manager
	service     *archiver.Service
	httpServer  *http.Server
	version     string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "media-archiver"),
		logger.String("version", opts.Version),
	)

	app, err := build(cfg, appLogger, opts.Version)
	if err != nil {
		_ = appLogger.Sync()
		return nil, err
	}
	return app, nil
}

// build wires all components together.
func build(cfg *config.Config, appLogger logger.Logger, version string) (*App, error) {
	table, err := routing.LoadTable(cfg.Archiver.RouteTablePath)
	if err != nil {
		return nil, fmt.Errorf("load route table: %w", err)
	}

	if mkErr := os.MkdirAll(cfg.Archiver.StagingDir, 0o750); mkErr != nil {
		return nil, fmt.Errorf("create staging dir: %w", mkErr)
	}

	store, err := manifest.Open(cfg.Manifest.Driver, cfg.Manifest.DSN)
	if err != nil {
		return nil, fmt.Errorf("open manifest store: %w", err)
	}

	// Redis is optional; without it rehydration just always re-fetches.
	var redisClient *goredis.Client
	var urls *urlcache.Cache
	if cfg.Redis.URL != "" {
		redisClient, err = redis.NewClient(cfg.Redis.URL)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		urls = urlcache.New(redisClient, cfg.Redis.URLCacheTTL, appLogger)
	}

	cleaner := cleanup.NewManager(cfg.Archiver.StagingDir, cfg.Archiver.SweepOlderThan, appLogger)

	service := archiver.NewService(cfg.Archiver.Enabled, cfg.Archiver.AllowFallback, archiver.Deps{
		Policy:    policy.NewEngine(cfg.Archiver.PolicyMaxBytes, nil, appLogger),
		Router:    routing.NewRouter(table),
		Limits:    sizelimit.NewDetector(),
		Compress:  compress.NewCompressor(cfg.Archiver.StagingDir, appLogger),
		Manifest:  store,
		Uploader:  uploader.NewClient(cfg.Provider.BaseURL, cfg.Provider.BotToken, cfg.Provider.WebhookURL, cfg.Provider.Timeout, appLogger),
		Rehydrate: rehydrate.NewFetcher(cfg.Provider.BaseURL, cfg.Provider.BotToken, cfg.Provider.Timeout, appLogger),
		URLCache:  urls,
		Cleanup:   cleaner,
		Metrics:   metrics.New(prometheus.DefaultRegisterer),
		Logger:    appLogger,
	})

	router := api.NewRouter(service, store, redisClient, cfg, appLogger)

	return &App{
		config:      cfg,
		logger:      appLogger,
		store:       store,
		redisClient: redisClient,
		cleaner:     cleaner,
		service:     service,
		httpServer:  router.Server(),
		version:     version,
	}, nil
}

// Run starts the HTTP server and the staging sweep, then blocks until a
// shutdown signal or server error.
func (a *App) Run(ctx context.Context) error {
	if err := a.cleaner.StartSweep(a.config.Archiver.SweepSchedule); err != nil {
		return fmt.Errorf("start staging sweep: %w", err)
	}
	defer a.cleaner.StopSweep()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server",
			logger.String("address", a.config.Server.Address),
			logger.Bool("archiver_enabled", a.config.Archiver.Enabled),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return a.waitForShutdown(ctx, serverErr)
}

// waitForShutdown handles graceful shutdown
func (a *App) waitForShutdown(ctx context.Context, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()),
		)
	case <-ctx.Done():
		a.logger.Info("Shutting down, context cancelled")
	case err := <-serverErr:
		a.logger.Error("Server error", logger.Error(err))
		shutdownErr = err
	}

	a.shutdownHTTPServer()
	a.logger.Info("Service stopped")
	return shutdownErr
}

// shutdownHTTPServer gracefully shuts down the HTTP server
func (a *App) shutdownHTTPServer() {
	if a.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Service returns the archive orchestrator for one-shot CLI use.
func (a *App) Service() *archiver.Service {
	return a.service
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close manifest store", logger.Error(err))
		}
	}
	return a.logger.Sync()
}
