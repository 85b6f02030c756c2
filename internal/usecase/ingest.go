package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// Ingestor upserts crawled catalog items and maintains the price log.
// It is the single component allowed to append history rows during a crawl,
// which makes the conditional append the one authoritative dedup point.
type Ingestor struct {
	products ports.ProductRepository
	history  ports.HistoryRepository
	locks    keyedLocks
	now      func() time.Time
}

// NewIngestor wires repositories; now may be nil and defaults to time.Now.
func NewIngestor(products ports.ProductRepository, history ports.HistoryRepository, now func() time.Time) *Ingestor {
	if now == nil {
		now = time.Now
	}
	return &Ingestor{products: products, history: history, now: now}
}

// Ingest upserts one normalized item under the (external id, price group)
// natural key. Metadata is overwritten last-write-wins, extremes only widen,
// current price always follows the crawl, and a history row is appended only
// when the price differs from the most recent recorded one. Concurrent calls
// for the same product are serialized on a per-key lock so two ingestions
// cannot both append a row for the same new price.
func (in *Ingestor) Ingest(ctx context.Context, item domain.CatalogItem, brand domain.Brand) (domain.IngestOutcome, error) {
	unlock := in.locks.lock(item.Key())
	defer unlock()

	product, err := in.products.FindByKey(ctx, item.ExternalID, item.PriceGroup)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.OutcomeCreated, in.create(ctx, item, brand)
	}
	if err != nil {
		return 0, fmt.Errorf("find product %s: %w", item.Key(), err)
	}

	product.Name = item.Name
	product.Brand = brand
	product.Gender = item.Gender
	product.ImageURL = item.ImageURL
	if item.Price < product.LowestPrice {
		product.LowestPrice = item.Price
	}
	if item.Price > product.HighestPrice {
		product.HighestPrice = item.Price
	}
	product.CurrentPrice = item.Price

	if err := in.products.Update(ctx, product); err != nil {
		return 0, fmt.Errorf("update product %s: %w", item.Key(), err)
	}

	if err := in.appendIfChanged(ctx, product.ID, item.Price); err != nil {
		return 0, fmt.Errorf("append history for %s: %w", item.Key(), err)
	}

	return domain.OutcomeUpdated, nil
}

// create persists a first sighting: the incoming price defines both extremes
// and seeds the history log.
func (in *Ingestor) create(ctx context.Context, item domain.CatalogItem, brand domain.Brand) error {
	product := domain.Product{
		ExternalID:   item.ExternalID,
		PriceGroup:   item.PriceGroup,
		Name:         item.Name,
		Brand:        brand,
		Gender:       item.Gender,
		ImageURL:     item.ImageURL,
		CurrentPrice: item.Price,
		LowestPrice:  item.Price,
		HighestPrice: item.Price,
	}

	if err := in.products.Create(ctx, &product); err != nil {
		return fmt.Errorf("create product %s: %w", item.Key(), err)
	}

	if err := in.history.Append(ctx, product.ID, item.Price, in.now()); err != nil {
		return fmt.Errorf("seed history for %s: %w", item.Key(), err)
	}

	return nil
}

func (in *Ingestor) appendIfChanged(ctx context.Context, productID, price int64) error {
	last, err := in.history.Last(ctx, productID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	if err == nil && last.Price == price {
		return nil
	}
	return in.history.Append(ctx, productID, price, in.now())
}

// keyedLocks hands out one mutex per natural key.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
