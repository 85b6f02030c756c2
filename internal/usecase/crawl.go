package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// CrawlerDeps wires the driven adapters into the crawl orchestration.
type CrawlerDeps struct {
	Source   ports.CatalogSource
	Ingestor *Ingestor
	Logger   *slog.Logger
}

// Crawler executes one crawl run: fetch each brand's catalog, normalize, and
// hand every item to the ingestor. Brands are independent; one brand failing
// never loses the progress of the others.
type Crawler struct {
	source   ports.CatalogSource
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewCrawler constructs the orchestration component.
func NewCrawler(deps CrawlerDeps) *Crawler {
	return &Crawler{
		source:   deps.Source,
		ingestor: deps.Ingestor,
		logger:   deps.Logger,
	}
}

// Run crawls the given brands concurrently and aggregates a run summary.
// Brand-level failures land in the summary's error list instead of aborting
// the run; per-item ingest failures are counted and logged.
func (c *Crawler) Run(ctx context.Context, brands []domain.Brand) domain.CrawlSummary {
	summary := domain.CrawlSummary{RunID: uuid.NewString()}
	if len(brands) == 0 {
		brands = domain.Brands()
	}

	c.info("crawl run starting", "run_id", summary.RunID, "brands", len(brands))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, brand := range brands {
		wg.Add(1)
		go func(brand domain.Brand) {
			defer wg.Done()

			brandSummary, err := c.crawlBrand(ctx, brand)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", brand, err))
				return
			}
			summary.Total += brandSummary.Total
			summary.Created += brandSummary.Created
			summary.Updated += brandSummary.Updated
			summary.Skipped += brandSummary.Skipped
			summary.Failed += brandSummary.Failed
		}(brand)
	}

	wg.Wait()

	c.info("crawl run finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"errors", len(summary.Errors))

	return summary
}

func (c *Crawler) crawlBrand(ctx context.Context, brand domain.Brand) (domain.CrawlSummary, error) {
	var s domain.CrawlSummary

	items, skipped, err := c.source.Fetch(ctx, brand)
	if err != nil {
		return s, err
	}

	s.Total = len(items) + skipped
	s.Skipped = skipped

	for _, item := range items {
		outcome, err := c.ingestor.Ingest(ctx, item, brand)
		if err != nil {
			s.Failed++
			c.warn("ingest failed", "brand", string(brand), "key", item.Key(), "error", err)
			continue
		}
		if outcome == domain.OutcomeCreated {
			s.Created++
		} else {
			s.Updated++
		}
	}

	return s, nil
}

func (c *Crawler) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Crawler) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
