package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"shopscout/models"
	"shopscout/utils"
)

const neighbourCount = 10

// Recommender produces content-based, collaborative and hybrid product
// recommendations over an in-memory product table and a user-ratings map.
// All three calls are pure with respect to their inputs; the product context
// is passed per request rather than cached between calls.
type Recommender struct {
	logger *utils.Logger
}

// NewRecommender creates a Recommender with the given logger.
func NewRecommender(logger *utils.Logger) *Recommender {
	return &Recommender{logger: logger}
}

// ContentBased returns up to n products most similar to the query product,
// ranked by descending TF-IDF cosine similarity over each product's feature
// text (name, brand, price display, average rating, variant colors). The
// query product itself is excluded. Returns nil when the id is unknown.
func (r *Recommender) ContentBased(products []*models.Product, productID string, n int) []models.Recommendation {
	queryIdx := -1
	for i, p := range products {
		if p.ID == productID {
			queryIdx = i
			break
		}
	}
	if queryIdx < 0 {
		r.logger.Warn("[recommender] Product %q not found in table", productID)
		return nil
	}

	vectors := tfidfVectors(products)

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(products)-1)
	for i := range products {
		if i == queryIdx {
			continue
		}
		ranked = append(ranked, scored{i, dot(vectors[queryIdx], vectors[i])})
	}

	// Stable sort keeps corpus order on ties.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	recs := make([]models.Recommendation, 0, len(ranked))
	for _, s := range ranked {
		recs = append(recs, recommendationFrom(products[s.idx], s.score, true))
	}
	return recs
}

// Collaborative returns up to n products scored by how similar users rated
// them. The query user's rating vector is compared (cosine) against every
// other user, the top 10 neighbours vote with rating×similarity on products
// the query user has not rated. Returns nil when the user has no rating
// history — fallback policy is the caller's problem.
func (r *Recommender) Collaborative(ratings map[string]map[string]float64, products []*models.Product, userID string, n int) []models.Recommendation {
	target, ok := ratings[userID]
	if !ok || len(target) == 0 {
		r.logger.Warn("[recommender] No rating history for user %q", userID)
		return nil
	}

	type neighbour struct {
		userID string
		sim    float64
	}
	neighbours := make([]neighbour, 0, len(ratings)-1)
	for uid, userRatings := range ratings {
		if uid == userID {
			continue
		}
		neighbours = append(neighbours, neighbour{uid, ratingCosine(target, userRatings)})
	}
	sort.Slice(neighbours, func(a, b int) bool {
		if neighbours[a].sim != neighbours[b].sim {
			return neighbours[a].sim > neighbours[b].sim
		}
		return neighbours[a].userID < neighbours[b].userID
	})
	if len(neighbours) > neighbourCount {
		neighbours = neighbours[:neighbourCount]
	}

	scores := make(map[string]float64)
	for _, nb := range neighbours {
		for pid, rating := range ratings[nb.userID] {
			if rating <= 0 {
				continue
			}
			if _, rated := target[pid]; rated {
				continue
			}
			scores[pid] += rating * nb.sim
		}
	}

	type candidate struct {
		pid   string
		score float64
	}
	candidates := make([]candidate, 0, len(scores))
	for pid, score := range scores {
		if score > 0 {
			candidates = append(candidates, candidate{pid, score})
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].pid < candidates[b].pid
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	recs := make([]models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if p, found := byID[c.pid]; found {
			recs = append(recs, recommendationFrom(p, 0, false))
		}
	}
	return recs
}

// Hybrid combines the two signals: content-based results when a product
// context is given, collaborative results when a user context is given,
// deduplicated by product id (first occurrence wins). When both signals
// produced results the combined list is re-ranked by similarity score then
// average rating, with unscored entries after scored ones; otherwise the
// single signal's own order is preserved.
func (r *Recommender) Hybrid(products []*models.Product, ratings map[string]map[string]float64, productID, userID string, n int) []models.Recommendation {
	var content, collab []models.Recommendation
	if productID != "" {
		content = r.ContentBased(products, productID, n)
	}
	if userID != "" {
		collab = r.Collaborative(ratings, products, userID, n)
	}

	combined := make([]models.Recommendation, 0, len(content)+len(collab))
	seen := make(map[string]struct{})
	for _, rec := range append(append([]models.Recommendation{}, content...), collab...) {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		combined = append(combined, rec)
	}

	if len(content) > 0 && len(collab) > 0 {
		sort.SliceStable(combined, func(a, b int) bool {
			ra, rb := combined[a], combined[b]
			if ra.Scored != rb.Scored {
				return ra.Scored
			}
			if ra.Scored && ra.Score != rb.Score {
				return ra.Score > rb.Score
			}
			return avgRatingValue(ra.AvgRating) > avgRatingValue(rb.AvgRating)
		})
	}

	if len(combined) > n {
		combined = combined[:n]
	}
	return combined
}

func recommendationFrom(p *models.Product, score float64, scored bool) models.Recommendation {
	return models.Recommendation{
		ID:           p.ID,
		Name:         p.Name,
		Brand:        p.Brand,
		PriceDisplay: p.PriceDisplay,
		AvgRating:    p.AvgRating,
		Thumbnail:    p.Thumbnail,
		Website:      p.PrimaryWebsite(),
		Score:        score,
		Scored:       scored,
	}
}

// avgRatingValue orders "Not Rated" below any numeric rating.
func avgRatingValue(display string) float64 {
	if val, ok := ParseRating(display); ok {
		return val
	}
	return -1
}

// featureText builds the per-product feature string used for TF-IDF.
func featureText(p *models.Product) string {
	parts := []string{p.Name, p.Brand, p.PriceDisplay, p.AvgRating}
	for _, v := range p.Variants {
		if v.Color != "" {
			parts = append(parts, v.Color)
		}
	}
	return strings.Join(parts, " ")
}

// tfidfVectors computes l2-normalized TF-IDF vectors (smoothed idf) over the
// product feature corpus.
func tfidfVectors(products []*models.Product) []map[string]float64 {
	docs := make([][]string, len(products))
	df := make(map[string]int)
	for i, p := range products {
		docs[i] = tokenize(featureText(p))
		inDoc := make(map[string]struct{})
		for _, term := range docs[i] {
			inDoc[term] = struct{}{}
		}
		for term := range inDoc {
			df[term]++
		}
	}

	n := float64(len(products))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}

	vectors := make([]map[string]float64, len(products))
	for i, terms := range docs {
		vec := make(map[string]float64)
		for _, term := range terms {
			vec[term] += idf[term]
		}
		var norm float64
		for _, w := range vec {
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// tokenize lowercases, splits on non-alphanumeric runes and drops English
// stop words and single characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// dot of two l2-normalized sparse vectors is their cosine similarity.
func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			sum += wa * wb
		}
	}
	return sum
}

// ratingCosine computes cosine similarity between two users' rating maps,
// treating missing entries as zero.
func ratingCosine(a, b map[string]float64) float64 {
	var dotSum, normA, normB float64
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	for pid, va := range a {
		if vb, ok := b[pid]; ok {
			dotSum += va * vb
		}
	}
	return dotSum / (math.Sqrt(normA) * math.Sqrt(normB))
}

// stopWords is the usual English stop-word list applied before weighting.
var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above after again against all am an and any are as at be because
		been before being below between both but by can cannot could did do does
		doing down during each few for from further had has have having he her
		here hers herself him himself his how i if in into is it its itself just
		me more most my myself no nor not now of off on once only or other our
		ours ourselves out over own same she should so some such than that the
		their theirs them themselves then there these they this those through to
		too under until up very was we were what when where which while who whom
		why will with you your yours yourself yourselves`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()
