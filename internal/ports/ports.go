package ports

import (
	"context"
	"errors"
	"time"

	"PriceTracker/internal/domain"
)

// ErrNotFound is returned by repositories when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// CatalogSource pulls a brand's full catalog from its upstream commerce API.
// skipped counts upstream items dropped for missing required fields.
type CatalogSource interface {
	Fetch(ctx context.Context, brand domain.Brand) (items []domain.CatalogItem, skipped int, err error)
}

// ListFilter carries the query-interface parameters for product listings.
type ListFilter struct {
	Query  string
	Brand  domain.Brand
	Gender string

	// Sort is one of price_asc, price_desc, name, updated, change_percent;
	// empty means newest products first.
	Sort string

	// Change restricts the listing to products whose price moved in the
	// requested direction within WindowDays. Empty means no change filter.
	Change     domain.ChangeDirection
	WindowDays int
	Now        time.Time

	Page    int
	PerPage int
}

// ProductPage is one page of listing results. Changes is populated only when
// the filter requested a change direction, keyed by product id.
type ProductPage struct {
	Products []domain.Product
	Changes  map[int64]domain.PriceChange
	Total    int
}

// ProductRepository persists tracked products keyed by
// (external id, price group).
type ProductRepository interface {
	FindByKey(ctx context.Context, externalID, priceGroup string) (domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p domain.Product) error
	List(ctx context.Context, filter ListFilter) (ProductPage, error)
	IDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (domain.CatalogStats, error)
}

// HistoryRepository persists the append-only price log.
type HistoryRepository interface {
	// Last returns the most recent record, or ErrNotFound for a fresh product.
	Last(ctx context.Context, productID int64) (domain.PriceRecord, error)
	Append(ctx context.Context, productID int64, price int64, at time.Time) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, productID int64, limit int) ([]domain.PriceRecord, error)
	// Series returns records at or after since, oldest first.
	Series(ctx context.Context, productID int64, since time.Time) ([]domain.PriceRecord, error)
	// All returns every record, oldest first.
	All(ctx context.Context, productID int64) ([]domain.PriceRecord, error)
	Delete(ctx context.Context, ids []int64) (int, error)
	Exists(ctx context.Context, productID int64, price int64, at time.Time) (bool, error)
	Extremes(ctx context.Context, productID int64) (domain.PriceExtremes, error)
	// ProductIDs lists distinct product ids that have at least one record.
	ProductIDs(ctx context.Context) ([]int64, error)
}

// LegacySource reads a legacy history store. It is passed to the importer as
// an explicit second handle, never ambient connection state.
type LegacySource interface {
	Count(ctx context.Context) (int64, error)
	Keys(ctx context.Context) ([]domain.LegacyKey, error)
	// History returns the raw rows for one key, oldest first.
	History(ctx context.Context, key domain.LegacyKey) ([]domain.LegacyRecord, error)
	Close() error
}

// Scheduler controls when crawl runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// StatsCache memoizes the catalog stats aggregate between crawls.
type StatsCache interface {
	GetStats(ctx context.Context) (domain.CatalogStats, bool, error)
	PutStats(ctx context.Context, stats domain.CatalogStats) error
}
