package services

import (
	"errors"
	"testing"

	"shopscout/config"
	"shopscout/models"
	"shopscout/scraper"
	"shopscout/storage"
)

// fakeSource stands in for a site scraper so the pipeline can be exercised
// without a browser.
type fakeSource struct {
	site    string
	records []*models.RawProduct
	err     error
}

func (f *fakeSource) Site() string { return f.site }

func (f *fakeSource) Search(query string) ([]*models.RawProduct, error) {
	return f.records, f.err
}

func (f *fakeSource) FetchRatings(link string) (*models.RatingDetail, error) {
	if f.err != nil {
		return &models.RatingDetail{
			Rating:       models.NotRated,
			RatingsCount: "0",
			Status:       "error",
			Message:      f.err.Error(),
		}, f.err
	}
	return &models.RatingDetail{Rating: "4.3", RatingsCount: "120", Status: "success"}, nil
}

type memoryStore struct {
	products []*models.Product
	loadErr  error
}

func (m *memoryStore) Load() ([]*models.Product, error) { return m.products, m.loadErr }
func (m *memoryStore) Save(products []*models.Product) error {
	m.products = products
	return nil
}
func (m *memoryStore) Close() error { return nil }

var _ storage.ProductStore = (*memoryStore)(nil)

func testConfig() *config.Config {
	return &config.Config{
		SearchConcurrency: 2,
		DetailConcurrency: 4,
		RateLimitMs:       0,
		PagesToScrape:     1,
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := NewSearchService(testConfig(), newTestLogger(), nil, NewMerger(newTestLogger()), &memoryStore{})

	if _, err := svc.Search("   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("got %v, want ErrEmptyQuery", err)
	}
}

func TestSearchToleratesOneFailingSource(t *testing.T) {
	good := &fakeSource{
		site: models.SiteAmazon,
		records: []*models.RawProduct{
			rawRecord("Shoe X", "Nike", "₹1,999", "4.2", models.SiteAmazon),
		},
	}
	bad := &fakeSource{site: models.SiteFlipkart, err: errors.New("timeout")}

	store := &memoryStore{}
	svc := NewSearchService(testConfig(), newTestLogger(),
		[]scraper.Source{good, bad}, NewMerger(newTestLogger()), store)

	products, err := svc.Search("shoe")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Shoe X" {
		t.Fatalf("expected the healthy source's product, got %v", productNames(products))
	}
	if len(store.products) != 1 {
		t.Errorf("merged result not persisted: %d products in store", len(store.products))
	}
}

func TestSearchAllSourcesFailed(t *testing.T) {
	bad1 := &fakeSource{site: models.SiteAmazon, err: errors.New("timeout")}
	bad2 := &fakeSource{site: models.SiteFlipkart, err: errors.New("blocked")}

	svc := NewSearchService(testConfig(), newTestLogger(),
		[]scraper.Source{bad1, bad2}, NewMerger(newTestLogger()), &memoryStore{})

	if _, err := svc.Search("shoe"); !errors.Is(err, ErrAllSourcesFailed) {
		t.Errorf("got %v, want ErrAllSourcesFailed", err)
	}
}

func TestSearchMergesWithPersistedHistory(t *testing.T) {
	m := NewMerger(newTestLogger())
	store := &memoryStore{
		products: m.Group([]*models.RawProduct{
			rawRecord("Shoe X", "Nike", "₹2,100", "4.0", models.SiteFlipkart),
		}),
	}

	src := &fakeSource{
		site: models.SiteAmazon,
		records: []*models.RawProduct{
			rawRecord("Shoe X", "Nike", "₹1,999", "4.2", models.SiteAmazon),
		},
	}

	svc := NewSearchService(testConfig(), newTestLogger(), []scraper.Source{src}, m, store)

	products, err := svc.Search("shoe")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 merged product, got %d", len(products))
	}
	if products[0].BestPrice != 1999 {
		t.Errorf("lower incoming price should win: got %v", products[0].BestPrice)
	}
	if len(products[0].AvailableOn) != 2 {
		t.Errorf("sites should be unioned, got %v", products[0].AvailableOn)
	}
}

func TestFetchAllNoLinks(t *testing.T) {
	svc := NewDetailService(testConfig(), newTestLogger(), nil)

	if _, err := svc.FetchAll(nil); !errors.Is(err, ErrNoLinks) {
		t.Errorf("got %v, want ErrNoLinks", err)
	}
}

func TestFetchAllUnsupportedHost(t *testing.T) {
	src := &fakeSource{site: models.SiteAmazon}
	svc := NewDetailService(testConfig(), newTestLogger(), []scraper.Source{src})

	details, err := svc.FetchAll([]string{
		"https://www.amazon.in/dp/B0TEST",
		"https://www.example.com/product/1",
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected one record per link, got %d", len(details))
	}
	if details[0].Status != "success" || details[0].Rating != "4.3" {
		t.Errorf("supported host: got %+v", details[0])
	}
	if details[1].Status != "error" || details[1].Rating != models.NotRated {
		t.Errorf("unsupported host should yield an error record, got %+v", details[1])
	}
	if details[1].URL != "https://www.example.com/product/1" {
		t.Errorf("error record should carry its link, got %q", details[1].URL)
	}
}
