package catalog

import (
	"encoding/json"
	"math"
	"sort"

	"PriceTracker/internal/domain"
)

// catalogResponse is the upstream page envelope:
// { result: { items: [...], pagination: { total } } }.
type catalogResponse struct {
	Result struct {
		Items      []rawItem `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	} `json:"result"`
}

// rawItem is one upstream catalog entry before normalization. Fields beyond
// the id/group/price triple are optional and tolerated when absent.
type rawItem struct {
	ProductID      string    `json:"productId"`
	PriceGroup     string    `json:"priceGroup"`
	Name           string    `json:"name"`
	GenderCategory string    `json:"genderCategory"`
	Images         rawImages `json:"images"`
	Prices         struct {
		Base struct {
			Value *float64 `json:"value"`
		} `json:"base"`
	} `json:"prices"`
}

type rawImages struct {
	Main json.RawMessage `json:"main"`
}

// normalizeItem maps one upstream item into the internal shape. It reports
// false when a required field (product id, price group, price) is missing;
// such items are counted by the caller and dropped, never erroring the page.
func normalizeItem(raw rawItem) (domain.CatalogItem, bool) {
	if raw.ProductID == "" || raw.PriceGroup == "" || raw.Prices.Base.Value == nil {
		return domain.CatalogItem{}, false
	}

	return domain.CatalogItem{
		ExternalID: raw.ProductID,
		PriceGroup: raw.PriceGroup,
		Name:       raw.Name,
		Gender:     raw.GenderCategory,
		ImageURL:   extractImageURL(raw.Images),
		Price:      int64(math.Round(*raw.Prices.Base.Value)),
	}, true
}

// extractImageURL handles the two upstream shapes of images.main: a plain URL
// string, or a mapping keyed by color variant whose values carry an "image"
// field. Variant keys are sorted so the pick is deterministic, though callers
// must not rely on a specific variant surviving upstream reorderings.
func extractImageURL(images rawImages) string {
	if len(images.Main) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(images.Main, &plain); err == nil {
		return plain
	}

	var variants map[string]struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(images.Main, &variants); err != nil {
		return ""
	}

	keys := make([]string, 0, len(variants))
	for k := range variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if img := variants[k].Image; img != "" {
			return img
		}
	}

	return ""
}
