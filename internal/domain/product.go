package domain

import (
	"fmt"
	"time"
)

// Brand identifies one of the tracked storefronts.
type Brand string

const (
	BrandUniqlo Brand = "uniqlo"
	BrandGU     Brand = "gu"
)

// Brands lists all tracked storefronts in crawl order.
func Brands() []Brand {
	return []Brand{BrandUniqlo, BrandGU}
}

// ParseBrand validates operator/API input against the known storefronts.
func ParseBrand(value string) (Brand, error) {
	switch Brand(value) {
	case BrandUniqlo, BrandGU:
		return Brand(value), nil
	}
	return "", fmt.Errorf("unknown brand %q (expected uniqlo or gu)", value)
}

// Product is one tracked catalog entry. The natural key is
// (ExternalID, PriceGroup): brand-assigned ids collide across price groups.
type Product struct {
	ID           int64
	ExternalID   string
	PriceGroup   string
	Name         string
	Brand        Brand
	Gender       string
	ImageURL     string
	CurrentPrice int64
	LowestPrice  int64
	HighestPrice int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Key renders the natural key as a single string, used for logs and locks.
func (p Product) Key() string {
	return p.ExternalID + "/" + p.PriceGroup
}

// URL returns the public product-page address on the brand site.
func (p Product) URL() string {
	base := "https://www.uniqlo.com/jp/ja/products/"
	if p.Brand == BrandGU {
		base = "https://www.gu-global.com/jp/ja/products/"
	}
	return base + p.ExternalID + "/" + p.PriceGroup
}

// CatalogItem is one normalized upstream catalog entry, ready for ingestion.
// Prices are integer JPY.
type CatalogItem struct {
	ExternalID string
	PriceGroup string
	Name       string
	Gender     string
	ImageURL   string
	Price      int64
}

// Key mirrors Product.Key for items not yet persisted.
func (i CatalogItem) Key() string {
	return i.ExternalID + "/" + i.PriceGroup
}

// CatalogStats aggregates catalog-wide counts for the stats endpoint.
type CatalogStats struct {
	TotalProducts int           `json:"total_products"`
	ByBrand       map[Brand]int `json:"by_brand"`
	Genders       []string      `json:"genders"`
}
