package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// Reconciler groups the batch jobs that repair derived state from the
// authoritative history log.
type Reconciler struct {
	products ports.ProductRepository
	history  ports.HistoryRepository
	logger   *slog.Logger
}

// NewReconciler wires the shared store.
func NewReconciler(products ports.ProductRepository, history ports.HistoryRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{products: products, history: history, logger: logger}
}

// RepairOptions scope a stats-repair pass.
type RepairOptions struct {
	// ProductID, when non-zero, restricts the pass to one product.
	ProductID int64
	DryRun    bool
}

// RepairStats recomputes lowest/highest/current from the full history and
// writes back only the products whose cached values actually differ.
func (r *Reconciler) RepairStats(ctx context.Context, opts RepairOptions) (domain.RepairSummary, error) {
	summary := domain.RepairSummary{DryRun: opts.DryRun}

	var ids []int64
	if opts.ProductID != 0 {
		ids = []int64{opts.ProductID}
	} else {
		var err error
		ids, err = r.products.IDs(ctx)
		if err != nil {
			return summary, fmt.Errorf("list products: %w", err)
		}
	}

	for _, id := range ids {
		fix, fixed, err := r.repairProduct(ctx, id, opts.DryRun)
		if err != nil {
			if opts.ProductID != 0 {
				return summary, err
			}
			r.warn("stats repair failed", "product_id", id, "error", err)
			continue
		}
		summary.Scanned++
		if fixed {
			summary.Fixed++
			summary.Fixes = append(summary.Fixes, fix)
		}
	}

	return summary, nil
}

// repairProduct returns whether the product's cached stats needed fixing.
// Products without history are skipped (reported as not fixed).
func (r *Reconciler) repairProduct(ctx context.Context, id int64, dryRun bool) (domain.StatsFix, bool, error) {
	product, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.StatsFix{}, false, fmt.Errorf("load product %d: %w", id, err)
	}

	extremes, err := r.history.Extremes(ctx, id)
	if err != nil {
		return domain.StatsFix{}, false, fmt.Errorf("aggregate history for %d: %w", id, err)
	}
	if extremes.Count == 0 {
		return domain.StatsFix{}, false, nil
	}

	if product.LowestPrice == extremes.Lowest &&
		product.HighestPrice == extremes.Highest &&
		product.CurrentPrice == extremes.Latest {
		return domain.StatsFix{}, false, nil
	}

	fix := domain.StatsFix{
		ProductID:  product.ID,
		ExternalID: product.ExternalID,
		Name:       product.Name,
		OldLowest:  product.LowestPrice,
		NewLowest:  extremes.Lowest,
		OldHighest: product.HighestPrice,
		NewHighest: extremes.Highest,
		OldCurrent: product.CurrentPrice,
		NewCurrent: extremes.Latest,
	}

	if !dryRun {
		product.LowestPrice = extremes.Lowest
		product.HighestPrice = extremes.Highest
		product.CurrentPrice = extremes.Latest
		if err := r.products.Update(ctx, product); err != nil {
			return domain.StatsFix{}, false, fmt.Errorf("update product %d: %w", id, err)
		}
	}

	return fix, true, nil
}

// CleanupHistory removes violations of the compression invariant left behind
// by data imported before it was enforced: any record whose price equals the
// immediately preceding kept record's price. The earlier record of each
// plateau always survives.
func (r *Reconciler) CleanupHistory(ctx context.Context, dryRun bool) (domain.CleanupSummary, error) {
	summary := domain.CleanupSummary{DryRun: dryRun}

	ids, err := r.history.ProductIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("list products with history: %w", err)
	}
	summary.Products = len(ids)

	for _, id := range ids {
		records, err := r.history.All(ctx, id)
		if err != nil {
			return summary, fmt.Errorf("load history for %d: %w", id, err)
		}

		var toDelete []int64
		lastKept := int64(-1)
		haveKept := false
		for _, rec := range records {
			if haveKept && rec.Price == lastKept {
				toDelete = append(toDelete, rec.ID)
				continue
			}
			lastKept = rec.Price
			haveKept = true
		}

		if len(toDelete) == 0 {
			continue
		}
		if !dryRun {
			if _, err := r.history.Delete(ctx, toDelete); err != nil {
				return summary, fmt.Errorf("delete duplicates for %d: %w", id, err)
			}
		}
		summary.Deleted += len(toDelete)
	}

	return summary, nil
}

// ImportLegacy merges a legacy history log into the current store. The legacy
// store arrives as an explicit second handle. Raw rows are compressed into
// genuine change events exactly as crawl-time ingestion would, rows already
// present (by product, price and timestamp) are skipped so repeated imports
// are idempotent, and every product that received rows gets its stats
// repaired afterwards.
func (r *Reconciler) ImportLegacy(ctx context.Context, legacy ports.LegacySource, dryRun bool) (domain.ImportSummary, error) {
	summary := domain.ImportSummary{DryRun: dryRun}

	total, err := legacy.Count(ctx)
	if err != nil {
		return summary, fmt.Errorf("count legacy records: %w", err)
	}
	summary.LegacyRecords = total

	keys, err := legacy.Keys(ctx)
	if err != nil {
		return summary, fmt.Errorf("list legacy keys: %w", err)
	}

	var touched []int64
	for _, key := range keys {
		summary.KeysProcessed++

		product, err := r.products.FindByKey(ctx, key.ExternalID, key.PriceGroup)
		if errors.Is(err, ports.ErrNotFound) {
			summary.NotFound++
			summary.NotFoundKeys = append(summary.NotFoundKeys, key.String())
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("find product %s: %w", key, err)
		}
		summary.Matched++

		rows, err := legacy.History(ctx, key)
		if err != nil {
			return summary, fmt.Errorf("load legacy history %s: %w", key, err)
		}

		changes := compressLegacy(rows)
		summary.ChangeEvents += len(changes)

		imported := false
		for _, change := range changes {
			exists, err := r.history.Exists(ctx, product.ID, change.Price, change.RecordedAt)
			if err != nil {
				return summary, fmt.Errorf("check existing record for %s: %w", key, err)
			}
			if exists {
				summary.DuplicateSkipped++
				continue
			}

			if !dryRun {
				if err := r.history.Append(ctx, product.ID, change.Price, change.RecordedAt); err != nil {
					return summary, fmt.Errorf("append legacy record for %s: %w", key, err)
				}
			}
			summary.Imported++
			imported = true
		}

		if imported {
			touched = append(touched, product.ID)
		}
	}

	for _, id := range touched {
		_, fixed, err := r.repairProduct(ctx, id, dryRun)
		if err != nil {
			r.warn("post-import stats repair failed", "product_id", id, "error", err)
			continue
		}
		if fixed {
			summary.StatsUpdated++
		}
	}

	return summary, nil
}

// compressLegacy drops rows whose price equals the immediately preceding
// row's, keeping only genuine change events.
func compressLegacy(rows []domain.LegacyRecord) []domain.LegacyRecord {
	var changes []domain.LegacyRecord
	for _, row := range rows {
		if len(changes) > 0 && changes[len(changes)-1].Price == row.Price {
			continue
		}
		changes = append(changes, row)
	}
	return changes
}

func (r *Reconciler) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
