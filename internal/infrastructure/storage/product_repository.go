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

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// productColumns are selected in scanProduct order; gender and image_url are
// nullable in the schema and collapse to empty strings in the domain type.
var productColumns = []string{
	"p.id", "p.external_id", "p.price_group", "p.name", "p.brand",
	"COALESCE(p.gender, '')", "COALESCE(p.image_url, '')",
	"p.current_price", "p.lowest_price", "p.highest_price",
	"p.created_at", "p.updated_at",
}

// ProductRepository persists products into Postgres.
type ProductRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository wires a sql.DB implementation.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db, sb: builder()}
}

// FindByKey looks a product up by its (external id, price group) natural key.
func (r *ProductRepository) FindByKey(ctx context.Context, externalID, priceGroup string) (domain.Product, error) {
	query := r.sb.Select(productColumns...).
		From("products p").
		Where(sq.Eq{"p.external_id": externalID, "p.price_group": priceGroup})

	return r.queryOne(ctx, query)
}

// Get loads a product by its internal id.
func (r *ProductRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	query := r.sb.Select(productColumns...).
		From("products p").
		Where(sq.Eq{"p.id": id})

	return r.queryOne(ctx, query)
}

func (r *ProductRepository) queryOne(ctx context.Context, query sq.SelectBuilder) (domain.Product, error) {
	sqlText, args, err := query.ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build query: %w", err)
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, sqlText, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// Create inserts a new product and fills in its generated id and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	sqlText, args, err := r.sb.Insert("products").
		Columns("external_id", "price_group", "name", "brand", "gender", "image_url",
			"current_price", "lowest_price", "highest_price").
		Values(p.ExternalID, p.PriceGroup, p.Name, string(p.Brand), nullable(p.Gender), nullable(p.ImageURL),
			p.CurrentPrice, p.LowestPrice, p.HighestPrice).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, sqlText, args...)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update overwrites mutable fields and refreshes updated_at, which doubles as
// the crawl-freshness marker.
func (r *ProductRepository) Update(ctx context.Context, p domain.Product) error {
	sqlText, args, err := r.sb.Update("products").
		Set("name", p.Name).
		Set("brand", string(p.Brand)).
		Set("gender", nullable(p.Gender)).
		Set("image_url", nullable(p.ImageURL)).
		Set("current_price", p.CurrentPrice).
		Set("lowest_price", p.LowestPrice).
		Set("highest_price", p.HighestPrice).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// IDs lists every product id.
func (r *ProductRepository) IDs(ctx context.Context) ([]int64, error) {
	sqlText, args, err := r.sb.Select("id").From("products").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.queryIDs(ctx, sqlText, args)
}

func (r *ProductRepository) queryIDs(ctx context.Context, sqlText string, args []interface{}) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns one page of products. When the filter requests a price-change
// direction, the query self-joins the history log: for each product it picks
// the latest in-window record and its immediate predecessor, exactly matching
// the application-side detection algorithm.
func (r *ProductRepository) List(ctx context.Context, filter ports.ListFilter) (ports.ProductPage, error) {
	page := ports.ProductPage{}
	withChange := filter.Change != ""

	query := r.sb.Select(productColumns...).From("products p")
	count := r.sb.Select("COUNT(*)").From("products p")

	if withChange {
		query = query.Columns("ph2.price AS previous_price", "ph1.price AS new_price", "ph1.recorded_at AS changed_at")
	}

	query = applyListFilter(query, filter)
	count = applyListFilter(count, filter)

	query = query.OrderBy(listOrder(filter)).
		Limit(uint64(perPage(filter))).
		Offset(uint64(listOffset(filter)))

	sqlText, args, err := query.ToSql()
	if err != nil {
		return page, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return page, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	if withChange {
		page.Changes = map[int64]domain.PriceChange{}
	}

	for rows.Next() {
		var (
			p         domain.Product
			brand     string
			prevPrice int64
			newPrice  int64
			changedAt time.Time
		)

		dest := []interface{}{
			&p.ID, &p.ExternalID, &p.PriceGroup, &p.Name, &brand,
			&p.Gender, &p.ImageURL,
			&p.CurrentPrice, &p.LowestPrice, &p.HighestPrice,
			&p.CreatedAt, &p.UpdatedAt,
		}
		if withChange {
			dest = append(dest, &prevPrice, &newPrice, &changedAt)
		}

		if err := rows.Scan(dest...); err != nil {
			return page, fmt.Errorf("scan product row: %w", err)
		}
		p.Brand = domain.Brand(brand)

		page.Products = append(page.Products, p)
		if withChange {
			page.Changes[p.ID] = domain.NewPriceChange(prevPrice, newPrice, changedAt)
		}
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate products: %w", err)
	}

	countText, countArgs, err := count.ToSql()
	if err != nil {
		return page, fmt.Errorf("build count query: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, countText, countArgs...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count products: %w", err)
	}

	return page, nil
}

// Stats aggregates catalog-wide counts.
func (r *ProductRepository) Stats(ctx context.Context) (domain.CatalogStats, error) {
	stats := domain.CatalogStats{ByBrand: map[domain.Brand]int{}}

	sqlText, args, err := r.sb.Select("brand", "COUNT(*)").From("products").GroupBy("brand").ToSql()
	if err != nil {
		return stats, fmt.Errorf("build brand counts: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return stats, fmt.Errorf("query brand counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var brand string
		var count int
		if err := rows.Scan(&brand, &count); err != nil {
			return stats, fmt.Errorf("scan brand count: %w", err)
		}
		stats.ByBrand[domain.Brand(brand)] = count
		stats.TotalProducts += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate brand counts: %w", err)
	}

	genderText, genderArgs, err := r.sb.Select("DISTINCT gender").From("products").
		Where("gender IS NOT NULL").OrderBy("gender").ToSql()
	if err != nil {
		return stats, fmt.Errorf("build genders: %w", err)
	}
	genderRows, err := r.db.QueryContext(ctx, genderText, genderArgs...)
	if err != nil {
		return stats, fmt.Errorf("query genders: %w", err)
	}
	defer genderRows.Close()

	for genderRows.Next() {
		var gender string
		if err := genderRows.Scan(&gender); err != nil {
			return stats, fmt.Errorf("scan gender: %w", err)
		}
		stats.Genders = append(stats.Genders, gender)
	}
	return stats, genderRows.Err()
}

// applyListFilter adds WHERE clauses and, for change filters, the two-record
// adjacency self-join shared by the list and count queries.
func applyListFilter(query sq.SelectBuilder, filter ports.ListFilter) sq.SelectBuilder {
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where(sq.Or{
			sq.ILike{"p.name": pattern},
			sq.ILike{"p.external_id": pattern},
		})
	}
	if filter.Brand != "" {
		query = query.Where(sq.Eq{"p.brand": string(filter.Brand)})
	}
	if filter.Gender != "" {
		query = query.Where(sq.Eq{"p.gender": filter.Gender})
	}

	if filter.Change != "" {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		start := domain.WindowStart(now, filter.WindowDays)

		query = query.
			Join(`price_history ph1 ON ph1.id = (
				SELECT id FROM price_history
				WHERE product_id = p.id AND recorded_at >= ?
				ORDER BY recorded_at DESC, id DESC LIMIT 1)`, start).
			Join(`price_history ph2 ON ph2.id = (
				SELECT id FROM price_history
				WHERE product_id = p.id AND recorded_at < ph1.recorded_at
				ORDER BY recorded_at DESC, id DESC LIMIT 1)`).
			Where(changeCondition(filter.Change))
	}

	return query
}

// changeCondition compares the pair; a non-positive previous price never
// counts as a change, matching the application-side detector.
func changeCondition(direction domain.ChangeDirection) string {
	switch direction {
	case domain.ChangeDropped:
		return "ph1.price < ph2.price AND ph2.price > 0"
	case domain.ChangeRaised:
		return "ph1.price > ph2.price AND ph2.price > 0"
	default:
		return "ph1.price <> ph2.price AND ph2.price > 0"
	}
}

func listOrder(filter ports.ListFilter) string {
	switch filter.Sort {
	case "price_asc":
		return "p.current_price ASC, p.id DESC"
	case "price_desc":
		return "p.current_price DESC, p.id DESC"
	case "name":
		return "p.name ASC, p.id DESC"
	case "updated":
		return "p.updated_at DESC, p.id DESC"
	case "change_percent":
		if filter.Change != "" {
			return "ABS(ph1.price - ph2.price)::float / ph2.price DESC, p.id DESC"
		}
		return "p.id DESC"
	default:
		return "p.id DESC"
	}
}

func perPage(filter ports.ListFilter) int {
	if filter.PerPage <= 0 {
		return defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		return maxPerPage
	}
	return filter.PerPage
}

func listOffset(filter ports.ListFilter) int {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage(filter)
}

// scanner abstracts sql.Row and sql.Rows for scanProduct.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	var brand string
	err := s.Scan(
		&p.ID, &p.ExternalID, &p.PriceGroup, &p.Name, &brand,
		&p.Gender, &p.ImageURL,
		&p.CurrentPrice, &p.LowestPrice, &p.HighestPrice,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Brand = domain.Brand(brand)
	return p, err
}

// nullable maps empty strings to SQL NULL.
func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
