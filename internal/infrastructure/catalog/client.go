package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"PriceTracker/internal/config"
	"PriceTracker/internal/domain"
	"PriceTracker/internal/ports"
)

// endpoint binds one brand to its commerce API location.
type endpoint struct {
	apiURL  string
	storeID string
}

// Client pages through a brand's commerce API and normalizes the results.
type Client struct {
	http        *http.Client
	endpoints   map[domain.Brand]endpoint
	pageSize    int
	maxAttempts int
	retryDelay  time.Duration
	userAgent   string
	logger      *slog.Logger
}

var _ ports.CatalogSource = (*Client)(nil)

// NewClient wires an HTTP client against the configured brand endpoints.
func NewClient(client *http.Client, cfg config.CrawlerConfig, brands []config.BrandConfig, logger *slog.Logger) (*Client, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	endpoints := make(map[domain.Brand]endpoint, len(brands))
	for _, b := range brands {
		brand, err := b.Brand()
		if err != nil {
			return nil, fmt.Errorf("brand config: %w", err)
		}
		endpoints[brand] = endpoint{apiURL: b.APIUrl, storeID: b.StoreID}
	}

	return &Client{
		http:        client,
		endpoints:   endpoints,
		pageSize:    cfg.PageSize,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		userAgent:   cfg.UserAgent,
		logger:      logger,
	}, nil
}

// Fetch accumulates every catalog page for the brand until the reported total
// is reached or a page comes back empty (defensive stop against inconsistent
// pagination totals). A page that exhausts its retries fails the whole brand.
func (c *Client) Fetch(ctx context.Context, brand domain.Brand) ([]domain.CatalogItem, int, error) {
	ep, ok := c.endpoints[brand]
	if !ok {
		return nil, 0, fmt.Errorf("brand %s is not configured", brand)
	}

	var items []domain.CatalogItem
	skipped := 0
	offset := 0

	for {
		page, err := c.fetchPage(ctx, ep, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch %s page at offset %d: %w", brand, offset, err)
		}

		if len(page.Result.Items) == 0 {
			break
		}

		for _, raw := range page.Result.Items {
			item, ok := normalizeItem(raw)
			if !ok {
				skipped++
				continue
			}
			items = append(items, item)
		}

		total := page.Result.Pagination.Total
		c.debug("fetched page", "brand", string(brand), "offset", offset, "total", total, "accumulated", len(items))

		offset += c.pageSize
		if offset >= total {
			break
		}
	}

	return items, skipped, nil
}

// fetchPage performs one GET with bounded retries and linear backoff.
func (c *Client) fetchPage(ctx context.Context, ep endpoint, offset int) (*catalogResponse, error) {
	pageURL, err := buildPageURL(ep, offset, c.pageSize)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		page, err := c.get(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		c.warn("page request failed", "attempt", attempt, "max_attempts", c.maxAttempts, "error", err)

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, pageURL string) (*catalogResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var page catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	return &page, nil
}

func buildPageURL(ep endpoint, offset, limit int) (string, error) {
	u, err := url.Parse(ep.apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}

	q := u.Query()
	q.Set("storeId", ep.storeID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
