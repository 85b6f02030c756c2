package catalog

import (
	"encoding/json"
	"testing"
)

func decodeItem(t *testing.T, raw string) rawItem {
	t.Helper()
	var item rawItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	return item
}

func TestNormalizeItemRequiredFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{
			name: "complete",
			raw:  `{"productId":"E459395","priceGroup":"001","name":"Heattech Crew Neck","genderCategory":"MEN","prices":{"base":{"value":1990}}}`,
			want: true,
		},
		{
			name: "missing product id",
			raw:  `{"priceGroup":"001","prices":{"base":{"value":1990}}}`,
			want: false,
		},
		{
			name: "missing price group",
			raw:  `{"productId":"E459395","prices":{"base":{"value":1990}}}`,
			want: false,
		},
		{
			name: "missing price",
			raw:  `{"productId":"E459395","priceGroup":"001","name":"no price"}`,
			want: false,
		},
		{
			name: "price explicitly null",
			raw:  `{"productId":"E459395","priceGroup":"001","prices":{"base":{"value":null}}}`,
			want: false,
		},
		{
			name: "missing metadata only",
			raw:  `{"productId":"E459395","priceGroup":"001","prices":{"base":{"value":990}}}`,
			want: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, ok := normalizeItem(decodeItem(t, tc.raw))
			if ok != tc.want {
				t.Fatalf("normalizeItem ok = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestNormalizeItemFields(t *testing.T) {
	t.Parallel()

	raw := `{
		"productId": "E459395",
		"priceGroup": "001",
		"name": "Ultra Light Down Jacket",
		"genderCategory": "WOMEN",
		"images": {"main": "https://img.example/main.jpg"},
		"prices": {"base": {"value": 5990}}
	}`

	item, ok := normalizeItem(decodeItem(t, raw))
	if !ok {
		t.Fatal("expected item to normalize")
	}
	if item.ExternalID != "E459395" || item.PriceGroup != "001" {
		t.Fatalf("unexpected key: %s", item.Key())
	}
	if item.Name != "Ultra Light Down Jacket" {
		t.Fatalf("unexpected name: %s", item.Name)
	}
	if item.Gender != "WOMEN" {
		t.Fatalf("unexpected gender: %s", item.Gender)
	}
	if item.ImageURL != "https://img.example/main.jpg" {
		t.Fatalf("unexpected image: %s", item.ImageURL)
	}
	if item.Price != 5990 {
		t.Fatalf("unexpected price: %d", item.Price)
	}
}

func TestExtractImageURLVariantMap(t *testing.T) {
	t.Parallel()

	raw := `{
		"productId": "E1",
		"priceGroup": "001",
		"images": {"main": {
			"09": {"image": "https://img.example/09.jpg"},
			"00": {"image": "https://img.example/00.jpg"}
		}},
		"prices": {"base": {"value": 100}}
	}`

	item, ok := normalizeItem(decodeItem(t, raw))
	if !ok {
		t.Fatal("expected item to normalize")
	}
	// Variant keys are sorted before picking, so "00" wins.
	if item.ImageURL != "https://img.example/00.jpg" {
		t.Fatalf("unexpected image: %s", item.ImageURL)
	}
}

func TestExtractImageURLSkipsEmptyVariants(t *testing.T) {
	t.Parallel()

	raw := `{
		"productId": "E1",
		"priceGroup": "001",
		"images": {"main": {
			"00": {"model": ["x"]},
			"09": {"image": "https://img.example/09.jpg"}
		}},
		"prices": {"base": {"value": 100}}
	}`

	item, _ := normalizeItem(decodeItem(t, raw))
	if item.ImageURL != "https://img.example/09.jpg" {
		t.Fatalf("unexpected image: %s", item.ImageURL)
	}
}

func TestExtractImageURLAbsent(t *testing.T) {
	t.Parallel()

	item, _ := normalizeItem(decodeItem(t, `{"productId":"E1","priceGroup":"001","prices":{"base":{"value":100}}}`))
	if item.ImageURL != "" {
		t.Fatalf("expected empty image, got %s", item.ImageURL)
	}
}
