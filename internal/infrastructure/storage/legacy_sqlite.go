package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// legacyTimeLayouts cover the timestamp spellings observed in legacy dumps.
var legacyTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LegacySQLiteSource reads the pre-migration history log: a SQLite file with
// one table price_history(productId, priceGroup, price, datetime), keyed by
// the upstream identifiers and carrying uncompressed daily samples.
type LegacySQLiteSource struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.LegacySource = (*LegacySQLiteSource)(nil)

// OpenLegacySQLite opens the legacy database read-only.
func OpenLegacySQLite(path string) (*LegacySQLiteSource, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open legacy sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping legacy sqlite: %w", err)
	}
	return &LegacySQLiteSource{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Count returns the total number of raw legacy rows.
func (s *LegacySQLiteSource) Count(ctx context.Context) (int64, error) {
	sqlText, args, err := s.sb.Select("COUNT(*)").From("price_history").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlText, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count legacy rows: %w", err)
	}
	return count, nil
}

// Keys lists the distinct (productId, priceGroup) combinations.
func (s *LegacySQLiteSource) Keys(ctx context.Context) ([]domain.LegacyKey, error) {
	sqlText, args, err := s.sb.Select("DISTINCT productId", "priceGroup").
		From("price_history").
		OrderBy("productId", "priceGroup").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keys query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query legacy keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.LegacyKey
	for rows.Next() {
		var key domain.LegacyKey
		if err := rows.Scan(&key.ExternalID, &key.PriceGroup); err != nil {
			return nil, fmt.Errorf("scan legacy key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// History returns the raw rows for one key, oldest first.
func (s *LegacySQLiteSource) History(ctx context.Context, key domain.LegacyKey) ([]domain.LegacyRecord, error) {
	sqlText, args, err := s.sb.Select("price", "datetime").
		From("price_history").
		Where(sq.Eq{"productId": key.ExternalID, "priceGroup": key.PriceGroup}).
		OrderBy("datetime ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query legacy history: %w", err)
	}
	defer rows.Close()

	var records []domain.LegacyRecord
	for rows.Next() {
		var (
			price float64
			raw   interface{}
		)
		if err := rows.Scan(&price, &raw); err != nil {
			return nil, fmt.Errorf("scan legacy row: %w", err)
		}

		at, err := coerceLegacyTime(raw)
		if err != nil {
			return nil, fmt.Errorf("legacy row for %s: %w", key, err)
		}

		records = append(records, domain.LegacyRecord{
			Price:      int64(price),
			RecordedAt: at,
		})
	}
	return records, rows.Err()
}

// Close releases the underlying handle.
func (s *LegacySQLiteSource) Close() error {
	return s.db.Close()
}

// coerceLegacyTime tolerates the driver returning datetime columns as
// time.Time, string or raw bytes depending on the declared column type.
func coerceLegacyTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseLegacyTime(v)
	case []byte:
		return parseLegacyTime(string(v))
	}
	return time.Time{}, fmt.Errorf("unsupported datetime value %T", raw)
}

func parseLegacyTime(value string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", value)
}
