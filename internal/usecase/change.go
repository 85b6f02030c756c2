package usecase

import (
	"context"
	"fmt"
	"time"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// recentHistoryLimit bounds how much history the detector fetches. Two
// change events are never this far apart at an hours-cadence crawl; the
// algorithm does not otherwise depend on the value.
const recentHistoryLimit = 50

// ChangeDetector answers "did this product's price move within the last N
// days" against a sparse change log. The log holds change events only, so the
// question is judged against an arbitrary reference instant, not against
// history boundaries.
type ChangeDetector struct {
	history ports.HistoryRepository
	now     func() time.Time
}

// NewChangeDetector wires the history store; now defaults to time.Now.
func NewChangeDetector(history ports.HistoryRepository, now func() time.Time) *ChangeDetector {
	if now == nil {
		now = time.Now
	}
	return &ChangeDetector{history: history, now: now}
}

// Detect reports the product's most recent in-window price movement, or nil
// when there is none (no in-window record, no older record to compare with,
// or the movement does not match the requested direction).
func (d *ChangeDetector) Detect(ctx context.Context, productID int64, windowDays int, direction domain.ChangeDirection) (*domain.PriceChange, error) {
	records, err := d.history.Recent(ctx, productID, recentHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history for product %d: %w", productID, err)
	}

	start := domain.WindowStart(d.now(), windowDays)
	return DetectInRecords(records, start, direction), nil
}

// DetectInRecords is the canonical detection algorithm over a newest-first
// record slice:
//
//  1. Find the most recent record with recorded_at >= start (the boundary
//     itself counts as inside the window).
//  2. Take its immediate predecessor; with no predecessor there is no
//     "before" price and nothing to report.
//  3. Equal prices report no change. The compression invariant should make
//     that impossible, but imported data may predate it. A non-positive
//     previous price also reports no change; it has no meaningful percent.
//  4. Filter by the requested direction; empty means either.
//
// The batch listing filter renders these same semantics as a SQL self-join;
// the two are held together by shared property tests.
func DetectInRecords(records []domain.PriceRecord, start time.Time, direction domain.ChangeDirection) *domain.PriceChange {
	if direction == "" {
		direction = domain.ChangeEither
	}

	matched := -1
	for i, r := range records {
		if !r.RecordedAt.Before(start) {
			matched = i
			break
		}
	}
	if matched == -1 || matched+1 >= len(records) {
		return nil
	}

	newest := records[matched]
	previous := records[matched+1]
	if previous.Price <= 0 || previous.Price == newest.Price {
		return nil
	}
	if !direction.Matches(previous.Price, newest.Price) {
		return nil
	}

	change := domain.NewPriceChange(previous.Price, newest.Price, newest.RecordedAt)
	return &change
}
