package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestProductMarshalUnpriced(t *testing.T) {
	p := &Product{
		ID:           "mystery-acme",
		Name:         "Mystery",
		Brand:        "Acme",
		PriceDisplay: PriceNotAvailable,
		BestPrice:    math.Inf(1),
		AvgRating:    NotRated,
		AvailableOn:  []string{SiteAmazon},
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(fields["best_price"]) != "null" {
		t.Errorf("best_price: got %s, want null", fields["best_price"])
	}
	if string(fields["price_display"]) != `"Not Available"` {
		t.Errorf("price_display: got %s", fields["price_display"])
	}
}

func TestProductMarshalPriced(t *testing.T) {
	p := &Product{
		ID:           "shoe-x-nike",
		Name:         "Shoe X",
		Brand:        "Nike",
		PriceDisplay: "₹1,899",
		BestPrice:    1899,
		AvgRating:    "4.2",
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(fields["best_price"]) != "1899" {
		t.Errorf("best_price: got %s, want 1899", fields["best_price"])
	}
}

func TestProductListMarshalMixed(t *testing.T) {
	products := []*Product{
		{ID: "a", BestPrice: 999},
		{ID: "b", BestPrice: math.Inf(1)},
	}

	// A single unpriced product must not fail the whole response.
	if _, err := json.Marshal(products); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
}
