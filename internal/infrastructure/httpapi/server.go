package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
	"PriceTracker/internal/usecase"
)

const (
	defaultHistoryDays = 90
	maxHistoryDays     = 365
	defaultDropDays    = 7
	defaultDropLimit   = 20
	maxDropLimit       = 50
)

// Server exposes the query interface consumed by the UI layer.
type Server struct {
	products ports.ProductRepository
	history  ports.HistoryRepository
	detector *usecase.ChangeDetector
	stats    ports.StatsCache
	logger   *slog.Logger
	now      func() time.Time
}

// ServerDeps wires the server; Stats may be nil (cache disabled) and Now
// defaults to time.Now.
type ServerDeps struct {
	Products ports.ProductRepository
	History  ports.HistoryRepository
	Detector *usecase.ChangeDetector
	Stats    ports.StatsCache
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewServer builds the handler set.
func NewServer(deps ServerDeps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		products: deps.Products,
		history:  deps.History,
		detector: deps.Detector,
		stats:    deps.Stats,
		logger:   deps.Logger,
		now:      now,
	}
}

// Router registers all HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/products", s.listProducts)
	api.GET("/products/price-dropped", s.priceDropped)
	api.GET("/products/:id", s.getProduct)
	api.GET("/products/:id/history", s.priceHistory)
	api.GET("/stats", s.getStats)

	return r
}

// productJSON is the wire shape of one product, optionally annotated with its
// detected in-window price change.
type productJSON struct {
	ID           int64               `json:"id"`
	ExternalID   string              `json:"product_id"`
	PriceGroup   string              `json:"price_group"`
	Name         string              `json:"name"`
	Brand        string              `json:"brand"`
	Gender       string              `json:"gender,omitempty"`
	ImageURL     string              `json:"image_url,omitempty"`
	CurrentPrice int64               `json:"current_price"`
	LowestPrice  int64               `json:"lowest_price"`
	HighestPrice int64               `json:"highest_price"`
	URL          string              `json:"url"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Change       *domain.PriceChange `json:"price_change,omitempty"`
}

func toProductJSON(p domain.Product, change *domain.PriceChange) productJSON {
	return productJSON{
		ID:           p.ID,
		ExternalID:   p.ExternalID,
		PriceGroup:   p.PriceGroup,
		Name:         p.Name,
		Brand:        string(p.Brand),
		Gender:       p.Gender,
		ImageURL:     p.ImageURL,
		CurrentPrice: p.CurrentPrice,
		LowestPrice:  p.LowestPrice,
		HighestPrice: p.HighestPrice,
		URL:          p.URL(),
		UpdatedAt:    p.UpdatedAt,
		Change:       change,
	}
}

// listProducts serves the filtered, sorted, paginated catalog listing.
func (s *Server) listProducts(c *gin.Context) {
	filter := ports.ListFilter{
		Query:   c.Query("q"),
		Gender:  c.Query("gender"),
		Sort:    c.Query("sort"),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 20),
		Now:     s.now(),
	}

	if raw := c.Query("brand"); raw != "" {
		brand, err := domain.ParseBrand(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		filter.Brand = brand
	}

	if raw := c.Query("price_change"); raw != "" {
		change, err := domain.ParseChangeDirection(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		filter.Change = change
		filter.WindowDays = intQuery(c, "days", defaultDropDays)
	}

	page, err := s.products.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "list products", err)
		return
	}

	items := make([]productJSON, 0, len(page.Products))
	for _, p := range page.Products {
		var change *domain.PriceChange
		if ch, ok := page.Changes[p.ID]; ok {
			change = &ch
		}
		items = append(items, toProductJSON(p, change))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"data":  items,
		"total": page.Total,
	})
}

// getProduct serves one product, optionally annotated when change_days is set.
func (s *Server) getProduct(c *gin.Context) {
	id, ok := s.productID(c)
	if !ok {
		return
	}

	product, err := s.products.Get(c.Request.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "product not found"})
		return
	}
	if err != nil {
		s.fail(c, "load product", err)
		return
	}

	var change *domain.PriceChange
	if days := intQuery(c, "change_days", 0); days > 0 {
		change, err = s.detector.Detect(c.Request.Context(), id, days, domain.ChangeEither)
		if err != nil {
			s.fail(c, "detect change", err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": toProductJSON(product, change)})
}

// priceHistory serves the (date, price) series for charting.
func (s *Server) priceHistory(c *gin.Context) {
	id, ok := s.productID(c)
	if !ok {
		return
	}

	product, err := s.products.Get(c.Request.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "product not found"})
		return
	}
	if err != nil {
		s.fail(c, "load product", err)
		return
	}

	days := intQuery(c, "days", defaultHistoryDays)
	if days < 1 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	since := s.now().AddDate(0, 0, -days)
	records, err := s.history.Series(c.Request.Context(), id, since)
	if err != nil {
		s.fail(c, "load history", err)
		return
	}

	type point struct {
		Date  time.Time `json:"date"`
		Price int64     `json:"price"`
	}
	series := make([]point, 0, len(records))
	for _, rec := range records {
		series = append(series, point{Date: rec.RecordedAt, Price: rec.Price})
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"product_id":    product.ID,
			"name":          product.Name,
			"current_price": product.CurrentPrice,
			"lowest_price":  product.LowestPrice,
			"highest_price": product.HighestPrice,
			"history":       series,
		},
	})
}

// priceDropped serves recently dropped products, largest drop first.
func (s *Server) priceDropped(c *gin.Context) {
	limit := intQuery(c, "limit", defaultDropLimit)
	if limit < 1 {
		limit = defaultDropLimit
	}
	if limit > maxDropLimit {
		limit = maxDropLimit
	}

	filter := ports.ListFilter{
		Change:     domain.ChangeDropped,
		WindowDays: intQuery(c, "days", defaultDropDays),
		Sort:       "change_percent",
		Page:       1,
		PerPage:    limit,
		Now:        s.now(),
	}

	page, err := s.products.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "list dropped products", err)
		return
	}

	items := make([]productJSON, 0, len(page.Products))
	for _, p := range page.Products {
		change := page.Changes[p.ID]
		items = append(items, toProductJSON(p, &change))
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": items, "total": page.Total})
}

// getStats serves catalog-wide counts, memoized in Redis when configured.
func (s *Server) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	if s.stats != nil {
		if cached, found, err := s.stats.GetStats(ctx); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": cached})
			return
		} else if err != nil {
			s.warn("stats cache read failed", "error", err)
		}
	}

	stats, err := s.products.Stats(ctx)
	if err != nil {
		s.fail(c, "aggregate stats", err)
		return
	}

	if s.stats != nil {
		if err := s.stats.PutStats(ctx, stats); err != nil {
			s.warn("stats cache write failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": stats})
}

func (s *Server) productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid product id"})
		return 0, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.warn(op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal error"})
}

func (s *Server) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
