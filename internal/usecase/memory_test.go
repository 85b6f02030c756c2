package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// memProducts is an in-memory ports.ProductRepository for tests.
type memProducts struct {
	mu    sync.Mutex
	seq   int64
	items map[int64]domain.Product
}

var _ ports.ProductRepository = (*memProducts)(nil)

func newMemProducts() *memProducts {
	return &memProducts{items: map[int64]domain.Product{}}
}

func (m *memProducts) FindByKey(_ context.Context, externalID, priceGroup string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ExternalID == externalID && p.PriceGroup == priceGroup {
			return p, nil
		}
	}
	return domain.Product{}, ports.ErrNotFound
}

func (m *memProducts) Get(_ context.Context, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return domain.Product{}, ports.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) Create(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.ExternalID == p.ExternalID && existing.PriceGroup == p.PriceGroup {
			return fmt.Errorf("duplicate key %s", p.Key())
		}
	}
	m.seq++
	p.ID = m.seq
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.ID] = *p
	return nil
}

func (m *memProducts) Update(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; !ok {
		return ports.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	m.items[p.ID] = p
	return nil
}

func (m *memProducts) List(_ context.Context, _ ports.ListFilter) (ports.ProductPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := ports.ProductPage{Total: len(m.items)}
	for _, id := range m.sortedIDs() {
		page.Products = append(page.Products, m.items[id])
	}
	return page, nil
}

func (m *memProducts) IDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIDs(), nil
}

func (m *memProducts) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memProducts) Stats(_ context.Context) (domain.CatalogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := domain.CatalogStats{ByBrand: map[domain.Brand]int{}}
	for _, p := range m.items {
		stats.TotalProducts++
		stats.ByBrand[p.Brand]++
	}
	return stats, nil
}

// memHistory is an in-memory ports.HistoryRepository for tests.
type memHistory struct {
	mu      sync.Mutex
	seq     int64
	records map[int64][]domain.PriceRecord
}

var _ ports.HistoryRepository = (*memHistory)(nil)

func newMemHistory() *memHistory {
	return &memHistory{records: map[int64][]domain.PriceRecord{}}
}

// ascending returns the product's records ordered oldest first.
func (m *memHistory) ascending(productID int64) []domain.PriceRecord {
	records := append([]domain.PriceRecord(nil), m.records[productID]...)
	sort.Slice(records, func(i, j int) bool {
		if !records[i].RecordedAt.Equal(records[j].RecordedAt) {
			return records[i].RecordedAt.Before(records[j].RecordedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func (m *memHistory) Last(_ context.Context, productID int64) (domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.ascending(productID)
	if len(records) == 0 {
		return domain.PriceRecord{}, ports.ErrNotFound
	}
	return records[len(records)-1], nil
}

func (m *memHistory) Append(_ context.Context, productID int64, price int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.records[productID] = append(m.records[productID], domain.PriceRecord{
		ID:         m.seq,
		ProductID:  productID,
		Price:      price,
		RecordedAt: at,
	})
	return nil
}

func (m *memHistory) Recent(_ context.Context, productID int64, limit int) ([]domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.ascending(productID)
	var out []domain.PriceRecord
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

func (m *memHistory) Series(_ context.Context, productID int64, since time.Time) ([]domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceRecord
	for _, rec := range m.ascending(productID) {
		if !rec.RecordedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memHistory) All(_ context.Context, productID int64) ([]domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ascending(productID), nil
}

func (m *memHistory) Delete(_ context.Context, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	deleted := 0
	for productID, records := range m.records {
		var kept []domain.PriceRecord
		for _, rec := range records {
			if drop[rec.ID] {
				deleted++
				continue
			}
			kept = append(kept, rec)
		}
		m.records[productID] = kept
	}
	return deleted, nil
}

func (m *memHistory) Exists(_ context.Context, productID int64, price int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records[productID] {
		if rec.Price == price && rec.RecordedAt.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memHistory) Extremes(_ context.Context, productID int64) (domain.PriceExtremes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.ascending(productID)
	if len(records) == 0 {
		return domain.PriceExtremes{}, nil
	}
	ext := domain.PriceExtremes{
		Lowest:  records[0].Price,
		Highest: records[0].Price,
		Latest:  records[len(records)-1].Price,
		Count:   len(records),
	}
	for _, rec := range records {
		if rec.Price < ext.Lowest {
			ext.Lowest = rec.Price
		}
		if rec.Price > ext.Highest {
			ext.Highest = rec.Price
		}
	}
	return ext, nil
}

func (m *memHistory) ProductIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, records := range m.records {
		if len(records) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// prices is a test helper flattening a product's stored history, oldest first.
func (m *memHistory) prices(productID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for _, rec := range m.ascending(productID) {
		out = append(out, rec.Price)
	}
	return out
}

// memLegacy is an in-memory ports.LegacySource for import tests.
type memLegacy struct {
	rows map[domain.LegacyKey][]domain.LegacyRecord
}

var _ ports.LegacySource = (*memLegacy)(nil)

func (m *memLegacy) Count(_ context.Context) (int64, error) {
	var total int64
	for _, rows := range m.rows {
		total += int64(len(rows))
	}
	return total, nil
}

func (m *memLegacy) Keys(_ context.Context) ([]domain.LegacyKey, error) {
	keys := make([]domain.LegacyKey, 0, len(m.rows))
	for key := range m.rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (m *memLegacy) History(_ context.Context, key domain.LegacyKey) ([]domain.LegacyRecord, error) {
	rows := append([]domain.LegacyRecord(nil), m.rows[key]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RecordedAt.Before(rows[j].RecordedAt) })
	return rows, nil
}

func (m *memLegacy) Close() error { return nil }

// stubSource is a canned ports.CatalogSource for crawl tests.
type stubSource struct {
	items   map[domain.Brand][]domain.CatalogItem
	skipped map[domain.Brand]int
	errs    map[domain.Brand]error
}

var _ ports.CatalogSource = (*stubSource)(nil)

func (s *stubSource) Fetch(_ context.Context, brand domain.Brand) ([]domain.CatalogItem, int, error) {
	if err := s.errs[brand]; err != nil {
		return nil, 0, err
	}
	return s.items[brand], s.skipped[brand], nil
}
