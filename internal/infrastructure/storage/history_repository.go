package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// HistoryRepository persists the append-only price log into Postgres.
type HistoryRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository wires a sql.DB implementation.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, sb: builder()}
}

// Last returns the most recent record for the product.
func (r *HistoryRepository) Last(ctx context.Context, productID int64) (domain.PriceRecord, error) {
	sqlText, args, err := r.sb.Select("id", "product_id", "price", "recorded_at").
		From("price_history").
		Where(sq.Eq{"product_id": productID}).
		OrderBy("recorded_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.PriceRecord{}, fmt.Errorf("build query: %w", err)
	}

	var rec domain.PriceRecord
	row := r.db.QueryRowContext(ctx, sqlText, args...)
	if err := row.Scan(&rec.ID, &rec.ProductID, &rec.Price, &rec.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PriceRecord{}, ports.ErrNotFound
		}
		return domain.PriceRecord{}, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// Append inserts one price record.
func (r *HistoryRepository) Append(ctx context.Context, productID int64, price int64, at time.Time) error {
	sqlText, args, err := r.sb.Insert("price_history").
		Columns("product_id", "price", "recorded_at").
		Values(productID, price, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, productID int64, limit int) ([]domain.PriceRecord, error) {
	query := r.sb.Select("id", "product_id", "price", "recorded_at").
		From("price_history").
		Where(sq.Eq{"product_id": productID}).
		OrderBy("recorded_at DESC", "id DESC").
		Limit(uint64(limit))

	return r.queryRecords(ctx, query)
}

// Series returns records at or after since, oldest first, for charting.
func (r *HistoryRepository) Series(ctx context.Context, productID int64, since time.Time) ([]domain.PriceRecord, error) {
	query := r.sb.Select("id", "product_id", "price", "recorded_at").
		From("price_history").
		Where(sq.Eq{"product_id": productID}).
		Where(sq.GtOrEq{"recorded_at": since}).
		OrderBy("recorded_at ASC", "id ASC")

	return r.queryRecords(ctx, query)
}

// All returns every record for the product, oldest first.
func (r *HistoryRepository) All(ctx context.Context, productID int64) ([]domain.PriceRecord, error) {
	query := r.sb.Select("id", "product_id", "price", "recorded_at").
		From("price_history").
		Where(sq.Eq{"product_id": productID}).
		OrderBy("recorded_at ASC", "id ASC")

	return r.queryRecords(ctx, query)
}

func (r *HistoryRepository) queryRecords(ctx context.Context, query sq.SelectBuilder) ([]domain.PriceRecord, error) {
	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.PriceRecord
	for rows.Next() {
		var rec domain.PriceRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Price, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the given record ids, used only by history cleanup.
func (r *HistoryRepository) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sqlText, args, err := r.sb.Delete("price_history").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// Exists reports whether an identical (product, price, timestamp) record is
// already stored; the legacy importer's idempotence check.
func (r *HistoryRepository) Exists(ctx context.Context, productID int64, price int64, at time.Time) (bool, error) {
	sqlText, args, err := r.sb.Select("1").
		From("price_history").
		Where(sq.Eq{"product_id": productID, "price": price, "recorded_at": at}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, sqlText, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query existence: %w", err)
	}
	return true, nil
}

// Extremes aggregates min/max/latest over the product's full history.
func (r *HistoryRepository) Extremes(ctx context.Context, productID int64) (domain.PriceExtremes, error) {
	sqlText, args, err := r.sb.Select("MIN(price)", "MAX(price)", "COUNT(*)").
		Column(sq.Expr(`(SELECT price FROM price_history
			WHERE product_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1)`, productID)).
		From("price_history").
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return domain.PriceExtremes{}, fmt.Errorf("build query: %w", err)
	}

	var (
		lowest  sql.NullInt64
		highest sql.NullInt64
		count   int
		latest  sql.NullInt64
	)
	row := r.db.QueryRowContext(ctx, sqlText, args...)
	if err := row.Scan(&lowest, &highest, &count, &latest); err != nil {
		return domain.PriceExtremes{}, fmt.Errorf("scan extremes: %w", err)
	}

	return domain.PriceExtremes{
		Lowest:  lowest.Int64,
		Highest: highest.Int64,
		Latest:  latest.Int64,
		Count:   count,
	}, nil
}

// ProductIDs lists distinct product ids that have at least one record.
func (r *HistoryRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	sqlText, args, err := r.sb.Select("DISTINCT product_id").
		From("price_history").
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query product ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
