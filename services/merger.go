package services

import (
	"math"
	"strconv"
	"strings"

	"shopscout/models"
	"shopscout/utils"
)

// Merger folds raw scraped records into canonical products and reconciles
// freshly scraped batches with previously persisted ones.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// GroupKey returns the canonical grouping key for a (name, brand) pair.
// Normalization is lowercase + trim; empty or sentinel brands still produce
// a valid (degenerate) key.
func GroupKey(name, brand string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "-" + strings.ToLower(strings.TrimSpace(brand))
}

// ProductID derives the stable product id: first 10 characters of the name
// plus the brand, lowercased, spaces replaced with hyphens. Distinct products
// whose names share a 10-character prefix under the same brand collide; the
// persisted rows and rating files already use these ids, so the derivation
// stays as-is.
func ProductID(name, brand string) string {
	runes := []rune(name)
	if len(runes) > 10 {
		runes = runes[:10]
	}
	id := strings.ToLower(string(runes) + "-" + brand)
	return strings.ReplaceAll(id, " ", "-")
}

// ParsePrice extracts a numeric amount from a scraped price string such as
// "₹1,999". Returns false for sentinels and anything non-numeric.
func ParsePrice(raw string) (float64, bool) {
	if raw == "" || raw == models.PriceNotAvailable {
		return 0, false
	}
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "₹", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// ParseRating extracts a numeric rating. Returns false for "Not Rated" and
// anything non-numeric.
func ParseRating(raw string) (float64, bool) {
	if raw == "" || raw == models.NotRated {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// FormatPrice renders an amount as "₹1,999" — rounded to whole rupees with
// thousands separators.
func FormatPrice(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 0, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	out := "₹" + b.String()
	if neg {
		out = "-" + out
	}
	return out
}

// productGroup accumulates one group's raw observations before projection.
// The full rating and price lists are kept so the derived aggregates are
// recomputed exactly rather than updated incrementally.
type productGroup struct {
	name      string
	brand     string
	variants  []models.Variant
	allPrices []float64
	ratings   []float64
	websites  []string
	siteSeen  map[string]struct{}
	thumbnail string
}

// Group folds raw records into aggregate products. Records are matched by
// normalized (name, brand); output order is the insertion order of each
// group's first record. Malformed prices and ratings are excluded from
// aggregation but the variant itself is always kept.
func (m *Merger) Group(records []*models.RawProduct) []*models.Product {
	groups := make(map[string]*productGroup)
	var order []string

	for _, r := range records {
		key := GroupKey(r.Name, r.Brand)
		g, ok := groups[key]
		if !ok {
			g = &productGroup{
				name:     r.Name,
				brand:    r.Brand,
				siteSeen: make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, key)
		}

		g.variants = append(g.variants, models.Variant{
			Price:        r.Price,
			Website:      r.Website,
			Rating:       r.Rating,
			RatingsCount: r.RatingsCount,
			Link:         r.Link,
			Thumbnail:    r.Thumbnail,
		})

		if price, ok := ParsePrice(r.Price); ok {
			g.allPrices = append(g.allPrices, price)
		} else if r.Price != "" && r.Price != models.PriceNotAvailable {
			m.logger.Debug("[merger] Unparseable price %q for %q — excluded", r.Price, r.Name)
		}

		if rating, ok := ParseRating(r.Rating); ok {
			g.ratings = append(g.ratings, rating)
		} else if r.Rating != "" && r.Rating != models.NotRated {
			m.logger.Debug("[merger] Unparseable rating %q for %q — excluded", r.Rating, r.Name)
		}

		if _, seen := g.siteSeen[r.Website]; !seen {
			g.siteSeen[r.Website] = struct{}{}
			g.websites = append(g.websites, r.Website)
		}

		// First non-empty thumbnail wins and is never replaced.
		if g.thumbnail == "" && r.Thumbnail != "" {
			g.thumbnail = r.Thumbnail
		}
	}

	products := make([]*models.Product, 0, len(order))
	for _, key := range order {
		products = append(products, project(groups[key]))
	}

	m.logger.Info("[merger] Grouped %d raw records into %d products", len(records), len(products))
	return products
}

// project finalizes the derived fields of one group.
func project(g *productGroup) *models.Product {
	best := math.Inf(1)
	min, max := math.Inf(1), math.Inf(-1)
	for _, p := range g.allPrices {
		if p < best {
			best = p
		}
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	priceDisplay := models.PriceNotAvailable
	if len(g.allPrices) > 0 {
		priceDisplay = FormatPrice(best)
		if len(g.allPrices) > 1 && min != max {
			priceDisplay = FormatPrice(min) + " - " + FormatPrice(max)
		}
	}

	avgRating := models.NotRated
	if len(g.ratings) > 0 {
		var sum float64
		for _, r := range g.ratings {
			sum += r
		}
		avgRating = strconv.FormatFloat(round1(sum/float64(len(g.ratings))), 'f', 1, 64)
	}

	return &models.Product{
		ID:           ProductID(g.name, g.brand),
		Name:         g.name,
		Brand:        g.brand,
		PriceDisplay: priceDisplay,
		BestPrice:    best,
		AvgRating:    avgRating,
		Thumbnail:    g.thumbnail,
		AvailableOn:  g.websites,
		Variants:     g.variants,
	}
}

// MergeIncremental reconciles a freshly scraped batch with previously
// persisted products. Matching is by normalized (name, brand), not by id, so
// independently regenerated ids still pair up. For each matching pair the
// lower price and the higher average rating win, sites are unioned, the
// existing thumbnail is kept unless absent, and variants are concatenated
// with (website, price) dedup so re-merging identical data never grows the
// list. Unmatched incoming products are appended in incoming order.
func (m *Merger) MergeIncremental(existing, incoming []*models.Product) []*models.Product {
	merged := make([]*models.Product, 0, len(existing)+len(incoming))
	index := make(map[string]*models.Product, len(existing))

	for _, p := range existing {
		cp := cloneProduct(p)
		merged = append(merged, cp)
		index[GroupKey(p.Name, p.Brand)] = cp
	}

	for _, inc := range incoming {
		key := GroupKey(inc.Name, inc.Brand)
		ex, ok := index[key]
		if !ok {
			cp := cloneProduct(inc)
			cp.Variants = dedupVariants(cp.Variants)
			merged = append(merged, cp)
			index[key] = cp
			continue
		}

		if inc.HasPrice() && (!ex.HasPrice() || inc.BestPrice < ex.BestPrice) {
			ex.BestPrice = inc.BestPrice
			ex.PriceDisplay = inc.PriceDisplay
		}

		incRating, incOK := ParseRating(inc.AvgRating)
		exRating, exOK := ParseRating(ex.AvgRating)
		if incOK && (!exOK || incRating > exRating) {
			ex.AvgRating = inc.AvgRating
		}

		siteSeen := make(map[string]struct{}, len(ex.AvailableOn))
		for _, site := range ex.AvailableOn {
			siteSeen[site] = struct{}{}
		}
		for _, site := range inc.AvailableOn {
			if _, seen := siteSeen[site]; !seen {
				siteSeen[site] = struct{}{}
				ex.AvailableOn = append(ex.AvailableOn, site)
			}
		}

		if ex.Thumbnail == "" && inc.Thumbnail != "" {
			ex.Thumbnail = inc.Thumbnail
		}

		ex.Variants = dedupVariants(append(ex.Variants, inc.Variants...))
	}

	m.logger.Info("[merger] Incremental merge: %d existing + %d incoming → %d products",
		len(existing), len(incoming), len(merged))
	return merged
}

// dedupVariants keeps the first occurrence of each (website, price) pair.
func dedupVariants(variants []models.Variant) []models.Variant {
	seen := make(map[string]struct{}, len(variants))
	out := variants[:0:0]
	for _, v := range variants {
		key := v.Website + "|" + v.Price
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.AvailableOn = append([]string(nil), p.AvailableOn...)
	cp.Variants = append([]models.Variant(nil), p.Variants...)
	return &cp
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
