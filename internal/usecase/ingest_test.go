package usecase

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"PriceTracker/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testItem(price int64) domain.CatalogItem {
	return domain.CatalogItem{
		ExternalID: "E471974",
		PriceGroup: "000",
		Name:       "Ultra Light Down Jacket",
		Gender:     "MEN",
		ImageURL:   "https://image.example/main.jpg",
		Price:      price,
	}
}

func TestIngestCreatesProductAndSeedsHistory(t *testing.T) {
	t.Parallel()

	products := newMemProducts()
	history := newMemHistory()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	in := NewIngestor(products, history, fixedClock(now))

	outcome, err := in.Ingest(context.Background(), testItem(2990), domain.BrandUniqlo)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome != domain.OutcomeCreated {
		t.Fatalf("outcome = %v, want created", outcome)
	}

	p, err := products.FindByKey(context.Background(), "E471974", "000")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if p.CurrentPrice != 2990 || p.LowestPrice != 2990 || p.HighestPrice != 2990 {
		t.Errorf("prices = %d/%d/%d, want 2990 across the board",
			p.CurrentPrice, p.LowestPrice, p.HighestPrice)
	}
	if p.Brand != domain.BrandUniqlo {
		t.Errorf("brand = %q, want uniqlo", p.Brand)
	}

	got := history.prices(p.ID)
	if !reflect.DeepEqual(got, []int64{2990}) {
		t.Errorf("history = %v, want [2990]", got)
	}
}

func TestIngestAppendsOnlyOnPriceChange(t *testing.T) {
	t.Parallel()

	products := newMemProducts()
	history := newMemHistory()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	in := NewIngestor(products, history, func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	})

	ctx := context.Background()
	for _, price := range []int64{100, 100, 100, 200, 200, 100} {
		if _, err := in.Ingest(ctx, testItem(price), domain.BrandUniqlo); err != nil {
			t.Fatalf("Ingest(%d): %v", price, err)
		}
	}

	p, err := products.FindByKey(ctx, "E471974", "000")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}

	got := history.prices(p.ID)
	if !reflect.DeepEqual(got, []int64{100, 200, 100}) {
		t.Errorf("history = %v, want [100 200 100]", got)
	}
	if p.LowestPrice != 100 || p.HighestPrice != 200 || p.CurrentPrice != 100 {
		t.Errorf("stats = low %d high %d current %d, want 100/200/100",
			p.LowestPrice, p.HighestPrice, p.CurrentPrice)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	products := newMemProducts()
	history := newMemHistory()
	in := NewIngestor(products, history, nil)

	ctx := context.Background()
	if _, err := in.Ingest(ctx, testItem(1500), domain.BrandGU); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	outcome, err := in.Ingest(ctx, testItem(1500), domain.BrandGU)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if outcome != domain.OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}

	p, _ := products.FindByKey(ctx, "E471974", "000")
	if got := history.prices(p.ID); len(got) != 1 {
		t.Errorf("history = %v, want a single row", got)
	}
}

func TestIngestOverwritesMetadataKeepsExtremes(t *testing.T) {
	t.Parallel()

	products := newMemProducts()
	history := newMemHistory()
	in := NewIngestor(products, history, nil)

	ctx := context.Background()
	if _, err := in.Ingest(ctx, testItem(3990), domain.BrandUniqlo); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	renamed := testItem(1990)
	renamed.Name = "Ultra Light Down Jacket (Sale)"
	renamed.ImageURL = "https://image.example/sale.jpg"
	if _, err := in.Ingest(ctx, renamed, domain.BrandUniqlo); err != nil {
		t.Fatalf("Ingest renamed: %v", err)
	}

	p, err := products.FindByKey(ctx, "E471974", "000")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if p.Name != renamed.Name || p.ImageURL != renamed.ImageURL {
		t.Errorf("metadata not overwritten: name %q image %q", p.Name, p.ImageURL)
	}
	if p.LowestPrice != 1990 || p.HighestPrice != 3990 || p.CurrentPrice != 1990 {
		t.Errorf("stats = low %d high %d current %d, want 1990/3990/1990",
			p.LowestPrice, p.HighestPrice, p.CurrentPrice)
	}
}

func TestIngestSerializesSameKey(t *testing.T) {
	t.Parallel()

	products := newMemProducts()
	history := newMemHistory()
	in := NewIngestor(products, history, nil)

	ctx := context.Background()
	if _, err := in.Ingest(ctx, testItem(1000), domain.BrandUniqlo); err != nil {
		t.Fatalf("seed Ingest: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := in.Ingest(ctx, testItem(900), domain.BrandUniqlo); err != nil {
				t.Errorf("concurrent Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := products.FindByKey(ctx, "E471974", "000")
	got := history.prices(p.ID)
	if !reflect.DeepEqual(got, []int64{1000, 900}) {
		t.Errorf("history = %v, want [1000 900]", got)
	}
}
