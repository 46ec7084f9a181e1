// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/cachestore"
	"github.com/JakeFAU/autocache-warmer/internal/clock/system"
	"github.com/JakeFAU/autocache-warmer/internal/config"
	collyfetcher "github.com/JakeFAU/autocache-warmer/internal/fetcher/colly"
	"github.com/JakeFAU/autocache-warmer/internal/id/uuid"
	"github.com/JakeFAU/autocache-warmer/internal/pacing"
	"github.com/JakeFAU/autocache-warmer/internal/registry"
	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and closed by a Cobra hook.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	cache       *cachestore.Store
	registry    registry.Registry
	dispatcher  *collyfetcher.Dispatcher
	coordinator *Coordinator
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the app was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetCoordinator returns the run coordinator.
func (a *App) GetCoordinator() *Coordinator {
	return a.coordinator
}

// NewApp creates and initializes a new App from cfg. It fails fast if any
// service cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")

	opts, err := cfg.WarmerOptions()
	if err != nil {
		return nil, fmt.Errorf("build warmer options: %w", err)
	}

	cache, err := cachestore.New(cachestore.Config{Dir: cfg.Cache.Dir})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	reg, err := registry.New(ctx, cfg.Sites.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize site registry: %w", err)
	}
	if reg != nil {
		logger.Info("Using site registry", zap.String("provider", cfg.Sites.Provider))
	}

	dispatcher, err := collyfetcher.New(collyfetcher.Config{
		Parallelism: cfg.Dispatch.Parallelism,
		Timeout:     cfg.HTTPTimeout(),
	}, logger.Named("dispatch"))
	if err != nil {
		closeRegistry(reg)
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	runner, err := buildRunner(opts, cfg, cache, reg, dispatcher, logger)
	if err != nil {
		closeRegistry(reg)
		return nil, err
	}

	logger.Info("Application services initialized successfully.",
		zap.String("cache_dir", cache.CacheDir()),
		zap.Duration("max_time", opts.MaxTime()),
	)

	return &App{
		cfg:         cfg,
		logger:      logger,
		cache:       cache,
		registry:    reg,
		dispatcher:  dispatcher,
		coordinator: NewCoordinator(runner, logger.Named("coordinator")),
	}, nil
}

func buildRunner(
	opts warmer.Options,
	cfg config.Config,
	cache *cachestore.Store,
	reg registry.Registry,
	dispatcher warmer.Dispatcher,
	logger *zap.Logger,
) (*warmer.Runner, error) {
	cacheLock := cachestore.NewFileLock(cache.CacheDir(cachestore.CacheLockName), cfg.Cache.LockTimeout)
	runLock := cachestore.NewFileLock(cache.CacheDir(cachestore.RunLockName), 0)
	clk := system.New()
	runLog := warmer.NewFileRunLog(cache, cacheLock, clk)

	var sites warmer.SiteRegistry
	if reg != nil {
		sites = reg
	}

	runner, err := warmer.NewRunner(opts, warmer.RunnerDeps{
		Sites:    warmer.NewSiteEnumerator(cfg.Sites.HomeURL, opts.OtherURLs, sites, logger.Named("sites")),
		Sitemaps: warmer.NewSitemapCollector(warmer.NewSitemapClient(cfg.HTTPTimeout(), cfg.HTTP.MaxRedirects), logger.Named("sitemap")),
		Prober:   warmer.NewCacheProbe(opts, cache, dispatcher, runLog, clk, logger.Named("probe")),
		RunLog:   runLog,
		Cache:    cache,
		RunLock:  runLock,
		Pacer:    pacing.New(opts.Delay),
		Clock:    clk,
		IDs:      uuid.New(),
	}, logger.Named("runner"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}
	return runner, nil
}

// Ready reports whether the cache directory can currently be warmed.
func (a *App) Ready(_ context.Context) error {
	return warmer.CheckCacheDir(a.cache.CacheDir())
}

// Close gracefully shuts down all services in the App container. Runs are
// canceled first, then in-flight warming requests are drained until ctx is done.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("Shutting down application services...")
	a.coordinator.Close()
	if err := a.dispatcher.Close(ctx); err != nil {
		a.logger.Warn("Error draining warming requests", zap.Error(err))
	}
	closeRegistry(a.registry)
	// Flushing is best-effort; stderr sync fails on some platforms.
	_ = a.logger.Sync()
}

func closeRegistry(reg registry.Registry) {
	if reg != nil {
		reg.Close()
	}
}
