package storage

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shopscout/models"
	"shopscout/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func sampleProduct() *models.Product {
	return &models.Product{
		ID:           "shoe-x-nike",
		Name:         "Shoe X",
		Brand:        "Nike",
		PriceDisplay: "₹1,899 - ₹1,999",
		BestPrice:    1899,
		AvgRating:    "4.2",
		Thumbnail:    "https://example.com/shoe.jpg",
		AvailableOn:  []string{models.SiteAmazon, models.SiteFlipkart},
		Variants: []models.Variant{
			{Website: models.SiteAmazon, Price: "₹1,999", Link: "https://amazon.in/x"},
			{Website: models.SiteFlipkart, Price: "₹1,899", Link: "https://flipkart.com/x"},
		},
		LastUpdated: time.Now().Truncate(time.Second),
	}
}

func tempStore(t *testing.T) (*CSVProductStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	store, err := NewCSVProductStore(path, newTestLogger())
	if err != nil {
		t.Fatalf("NewCSVProductStore: %v", err)
	}
	return store, path
}

func dataRowCount(t *testing.T, path string) int {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	return len(lines) - 1 // minus header
}

func TestCSVStoreMissingFileLoadsEmpty(t *testing.T) {
	store, _ := tempStore(t)

	products, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("missing file should load empty, got %d products", len(products))
	}
}

func TestCSVStoreRoundTrip(t *testing.T) {
	store, _ := tempStore(t)
	want := sampleProduct()

	if err := store.Save([]*models.Product{want}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	products, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}

	got := products[0]
	if got.ID != want.ID || got.Name != want.Name || got.Brand != want.Brand {
		t.Errorf("identity mismatch: got %s/%s/%s", got.ID, got.Name, got.Brand)
	}
	if got.PriceDisplay != want.PriceDisplay {
		t.Errorf("price display: got %q, want %q", got.PriceDisplay, want.PriceDisplay)
	}
	if got.BestPrice != want.BestPrice {
		t.Errorf("best price: got %v, want %v", got.BestPrice, want.BestPrice)
	}
	if got.AvgRating != want.AvgRating {
		t.Errorf("avg rating: got %q, want %q", got.AvgRating, want.AvgRating)
	}
	if len(got.AvailableOn) != 2 || got.AvailableOn[0] != models.SiteAmazon || got.AvailableOn[1] != models.SiteFlipkart {
		t.Errorf("available_on: got %v", got.AvailableOn)
	}
	if len(got.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(got.Variants))
	}
	if got.Variants[1].Price != "₹1,899" || got.Variants[1].Website != models.SiteFlipkart {
		t.Errorf("variant mismatch: %+v", got.Variants[1])
	}
}

func TestCSVStoreNoPriceRoundTrip(t *testing.T) {
	store, _ := tempStore(t)

	p := sampleProduct()
	p.BestPrice = math.Inf(1)
	p.PriceDisplay = models.PriceNotAvailable

	if err := store.Save([]*models.Product{p}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	products, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	if products[0].HasPrice() {
		t.Errorf("unpriced product came back with best price %v", products[0].BestPrice)
	}
	if products[0].PriceDisplay != models.PriceNotAvailable {
		t.Errorf("price display: got %q", products[0].PriceDisplay)
	}
}

func TestCSVStoreSaveIsAppendOnly(t *testing.T) {
	store, path := tempStore(t)
	p := sampleProduct()

	if err := store.Save([]*models.Product{p}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save([]*models.Product{p}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if got := dataRowCount(t, path); got != 1 {
		t.Errorf("identical re-save should not append, got %d data rows", got)
	}

	// A changed product appends a new row version and Load keeps the newest.
	p.PriceDisplay = "₹1,799 - ₹1,999"
	p.BestPrice = 1799
	if err := store.Save([]*models.Product{p}); err != nil {
		t.Fatalf("third Save: %v", err)
	}
	if got := dataRowCount(t, path); got != 2 {
		t.Errorf("changed product should append one row, got %d data rows", got)
	}

	products, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 deduplicated product, got %d", len(products))
	}
	if products[0].BestPrice != 1799 {
		t.Errorf("Load should keep the newest row: got best price %v", products[0].BestPrice)
	}
}

func TestCSVStoreCorruptFileLoadsEmpty(t *testing.T) {
	store, path := tempStore(t)

	if err := os.WriteFile(path, []byte("id,name\n\"unterminated,quote\nnot,enough,fields"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	products, err := store.Load()
	if err != nil {
		t.Fatalf("Load should not fail on corrupt file: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("corrupt file should load empty, got %d products", len(products))
	}
}
