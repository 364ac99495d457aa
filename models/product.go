package models

import (
	"encoding/json"
	"math"
	"time"
)

// Sentinel values used when a field could not be extracted from a page.
const (
	PriceNotAvailable = "Not Available"
	NotRated          = "Not Rated"
)

// Site names as they appear in scraped records and the available_on column.
const (
	SiteAmazon   = "Amazon"
	SiteFlipkart = "Flipkart"
)

// RawProduct is one observation of a product on one site, straight from the
// browser. Missing fields are sentinel-filled, never fatal; Defaulted records
// which fields fell back to a sentinel so callers can tell a genuine value
// from a miss without re-parsing.
type RawProduct struct {
	Name         string
	Brand        string
	Price        string
	Rating       string
	RatingsCount string
	Website      string
	Link         string
	Thumbnail    string
	ScrapedAt    time.Time
	Defaulted    []string
}

// MarkDefaulted notes that the named field was sentinel-filled.
func (r *RawProduct) MarkDefaulted(field string) {
	r.Defaulted = append(r.Defaulted, field)
}

// Variant is one site-specific offer folded under an aggregate product.
// JSON tags match the stringified variants column in the product CSV.
type Variant struct {
	Price        string `json:"price"`
	Website      string `json:"website"`
	Rating       string `json:"rating"`
	RatingsCount string `json:"ratings_count"`
	Link         string `json:"link"`
	Thumbnail    string `json:"thumbnail"`
	Color        string `json:"color,omitempty"`
}

// Product is the canonical merged view of a physical product across sites.
// BestPrice is +Inf when no variant ever had a parseable price; AvgRating is
// a 1-decimal string or the NotRated sentinel.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand"`
	PriceDisplay string    `json:"price_display"`
	BestPrice    float64   `json:"best_price"`
	AvgRating    string    `json:"avg_rating"`
	Thumbnail    string    `json:"thumbnail"`
	AvailableOn  []string  `json:"available_on"`
	Variants     []Variant `json:"variants"`
	LastUpdated  time.Time `json:"last_updated"`
}

// HasPrice reports whether at least one variant contributed a numeric price.
func (p *Product) HasPrice() bool {
	return !math.IsInf(p.BestPrice, 1)
}

// MarshalJSON emits best_price as null when no variant contributed a numeric
// price; the +Inf sentinel has no JSON representation. Matches the empty
// best_price column convention in the CSV store.
func (p *Product) MarshalJSON() ([]byte, error) {
	type alias Product
	var best *float64
	if p.HasPrice() {
		best = &p.BestPrice
	}
	return json.Marshal(&struct {
		*alias
		BestPrice *float64 `json:"best_price"`
	}{(*alias)(p), best})
}

// PrimaryWebsite returns the site of the first variant, or "".
func (p *Product) PrimaryWebsite() string {
	if len(p.Variants) == 0 {
		return ""
	}
	return p.Variants[0].Website
}

// RatingEvent is one user's rating of one product, synthetic or submitted.
type RatingEvent struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Rating    float64 `json:"rating"`
}

// RatingDetail is the result of a per-link detail-page rating fetch.
type RatingDetail struct {
	Rating       string `json:"rating"`
	RatingsCount string `json:"ratings_count"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Recommendation is one ranked entry returned by the recommendation engine.
// Scored is false for collaborative results, which carry no similarity score.
type Recommendation struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	PriceDisplay string  `json:"price_display"`
	AvgRating    string  `json:"avg_rating"`
	Thumbnail    string  `json:"thumbnail"`
	Website      string  `json:"website"`
	Score        float64 `json:"similarity_score,omitempty"`
	Scored       bool    `json:"-"`
}
