package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"PriceTracker/internal/config"
	"PriceTracker/internal/domain"
	"PriceTracker/internal/infrastructure/cache"
	"PriceTracker/internal/infrastructure/catalog"
	"PriceTracker/internal/infrastructure/httpapi"
	"PriceTracker/internal/infrastructure/scheduler"
	"PriceTracker/internal/infrastructure/storage"
	"PriceTracker/internal/logging"
	"PriceTracker/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	products   *storage.ProductRepository
	history    *storage.HistoryRepository
	crawler    *usecase.Crawler
	reconciler *usecase.Reconciler
	detector   *usecase.ChangeDetector
	statsCache *cache.RedisStatsCache

	closers []func() error
}

// New connects the store and builds all use cases.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	products := storage.NewProductRepository(db)
	history := storage.NewHistoryRepository(db)

	source, err := catalog.NewClient(nil, cfg.Crawler, cfg.Brands, logging.Component(baseLogger, "catalog"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build catalog client: %w", err)
	}

	ingestor := usecase.NewIngestor(products, history, nil)
	a := &Application{
		cfg:    cfg,
		logger: baseLogger,
		crawler: usecase.NewCrawler(usecase.CrawlerDeps{
			Source:   source,
			Ingestor: ingestor,
			Logger:   logging.Component(baseLogger, "crawler"),
		}),
		products:   products,
		history:    history,
		reconciler: usecase.NewReconciler(products, history, logging.Component(baseLogger, "reconciler")),
		detector:   usecase.NewChangeDetector(history, nil),
		closers:    []func() error{db.Close},
	}

	if cfg.Redis.Addr != "" {
		a.statsCache = cache.NewRedisStatsCache(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.StatsTTL)
		a.closers = append(a.closers, a.statsCache.Close)
	}

	return a, nil
}

// Close releases the store and cache handles.
func (a *Application) Close() error {
	var first error
	for _, close := range a.closers {
		if err := close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Crawl runs one crawl over the given brands (all brands when empty).
func (a *Application) Crawl(ctx context.Context, brands []domain.Brand) domain.CrawlSummary {
	return a.crawler.Run(ctx, brands)
}

// RepairStats recomputes cached extremes from history.
func (a *Application) RepairStats(ctx context.Context, opts usecase.RepairOptions) (domain.RepairSummary, error) {
	return a.reconciler.RepairStats(ctx, opts)
}

// CleanupHistory removes compression-invariant violations.
func (a *Application) CleanupHistory(ctx context.Context, dryRun bool) (domain.CleanupSummary, error) {
	return a.reconciler.CleanupHistory(ctx, dryRun)
}

// ImportLegacy merges a legacy SQLite history file into the current store.
func (a *Application) ImportLegacy(ctx context.Context, path string, dryRun bool) (domain.ImportSummary, error) {
	legacy, err := storage.OpenLegacySQLite(path)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	defer legacy.Close()

	return a.reconciler.ImportLegacy(ctx, legacy, dryRun)
}

// Serve runs the HTTP query API and, when enabled, the periodic crawl
// trigger, until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		ticker := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval)
		if err := ticker.Start(ctx, func(time.Time) {
			a.crawler.Run(ctx, nil)
		}); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = ticker.Stop(context.Background()) }()
	}

	deps := httpapi.ServerDeps{
		Products: a.products,
		History:  a.history,
		Detector: a.detector,
		Logger:   logging.Component(a.logger, "httpapi"),
	}
	if a.statsCache != nil {
		deps.Stats = a.statsCache
	}
	server := httpapi.NewServer(deps)

	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: server.Router()}
	a.logger.Info("http api listening", "addr", a.cfg.HTTP.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
