package services

import (
	"errors"
	"fmt"
	"strings"

	"shopscout/config"
	"shopscout/models"
	"shopscout/scraper"
	"shopscout/storage"
	"shopscout/utils"
)

// ErrEmptyQuery is returned before any scraping work starts.
var ErrEmptyQuery = errors.New("search query must not be empty")

// ErrAllSourcesFailed means no site produced any records for the query.
var ErrAllSourcesFailed = errors.New("all product sources failed")

// ErrNoLinks is returned when a detail fetch is requested with no links.
var ErrNoLinks = errors.New("no links provided")

// SearchService runs the two site scrapers concurrently, folds their output
// into canonical products and reconciles the result with persisted history.
type SearchService struct {
	cfg     *config.Config
	logger  *utils.Logger
	sources []scraper.Source
	merger  *Merger
	store   storage.ProductStore
}

// NewSearchService wires a SearchService.
func NewSearchService(cfg *config.Config, logger *utils.Logger, sources []scraper.Source, merger *Merger, store storage.ProductStore) *SearchService {
	return &SearchService{
		cfg:     cfg,
		logger:  logger,
		sources: sources,
		merger:  merger,
		store:   store,
	}
}

// Search scrapes every source for the query in parallel (one browser session
// per source, pool-bounded), merges the raw records, folds them into the
// persisted product set and returns the merged view of this batch. One site
// failing is tolerated; every site failing with nothing scraped is an error.
func (s *SearchService) Search(query string) ([]*models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	type sourceResult struct {
		site    string
		records []*models.RawProduct
		err     error
	}

	results := make([]sourceResult, len(s.sources))
	pool := utils.NewWorkerPool(s.cfg.SearchConcurrency, 0)
	for i, src := range s.sources {
		i, src := i, src
		pool.Submit(func() {
			records, err := src.Search(query)
			results[i] = sourceResult{site: src.Site(), records: records, err: err}
		})
	}
	pool.Wait()

	var raw []*models.RawProduct
	failures := 0
	for _, res := range results {
		if res.err != nil {
			failures++
			s.logger.Error("[search] Source %s failed: %v", res.site, res.err)
		}
		raw = append(raw, res.records...)
	}
	if len(raw) == 0 {
		if failures == len(s.sources) {
			return nil, ErrAllSourcesFailed
		}
		return nil, nil
	}

	incoming := s.merger.Group(raw)

	existing, err := s.store.Load()
	if err != nil {
		s.logger.Warn("[search] Could not load persisted products — merging against empty set: %v", err)
		existing = nil
	}

	merged := s.merger.MergeIncremental(existing, incoming)

	if err := s.store.Save(merged); err != nil {
		// Persistence trouble must not fail the search itself.
		s.logger.Error("[search] Failed to persist merged products: %v", err)
	}

	// Respond with this batch's products in their merged form.
	incomingKeys := make(map[string]struct{}, len(incoming))
	for _, p := range incoming {
		incomingKeys[GroupKey(p.Name, p.Brand)] = struct{}{}
	}
	response := make([]*models.Product, 0, len(incoming))
	for _, p := range merged {
		if _, ok := incomingKeys[GroupKey(p.Name, p.Brand)]; ok {
			response = append(response, p)
		}
	}

	s.logger.Info("[search] Query %q → %d products (%d source failures)", query, len(response), failures)
	return response, nil
}

// DetailService fetches per-link rating details with a bounded worker pool.
// Each link gets its own browser session; a failing link yields an
// error-status record without touching its siblings.
type DetailService struct {
	cfg     *config.Config
	logger  *utils.Logger
	sources []scraper.Source
}

// NewDetailService wires a DetailService.
func NewDetailService(cfg *config.Config, logger *utils.Logger, sources []scraper.Source) *DetailService {
	return &DetailService{cfg: cfg, logger: logger, sources: sources}
}

// FetchAll fetches rating details for every link concurrently and returns
// one record per link, in input order.
func (d *DetailService) FetchAll(links []string) ([]*models.RatingDetail, error) {
	if len(links) == 0 {
		return nil, ErrNoLinks
	}

	workers := d.cfg.DetailConcurrency
	if len(links) < workers {
		workers = len(links)
	}

	details := make([]*models.RatingDetail, len(links))
	pool := utils.NewWorkerPool(workers, d.cfg.RateLimitMs)
	for i, link := range links {
		i, link := i, link
		pool.Submit(func() {
			details[i] = d.fetchOne(link)
		})
	}
	pool.Wait()

	return details, nil
}

func (d *DetailService) fetchOne(link string) *models.RatingDetail {
	src := d.sourceFor(link)
	if src == nil {
		return &models.RatingDetail{
			Rating:       models.NotRated,
			RatingsCount: "0",
			Status:       "error",
			Message:      fmt.Sprintf("unsupported website: %s", link),
			URL:          link,
		}
	}

	detail, err := src.FetchRatings(link)
	if err != nil {
		d.logger.Warn("[detail] %s fetch failed for %s: %v", src.Site(), link, err)
	}
	detail.URL = link
	return detail
}

func (d *DetailService) sourceFor(link string) scraper.Source {
	lower := strings.ToLower(link)
	for _, src := range d.sources {
		if strings.Contains(lower, strings.ToLower(src.Site())) {
			return src
		}
	}
	return nil
}
