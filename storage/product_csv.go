package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"shopscout/models"
	"shopscout/utils"
)

// productCSVHeader is the persisted column set. available_on is pipe-joined,
// variants is a JSON-stringified list. last_updated is excluded from the
// row-level write dedup.
var productCSVHeader = []string{
	"id", "name", "brand", "price_display", "best_price",
	"avg_rating", "thumbnail", "available_on", "variants", "last_updated",
}

// CSVProductStore persists merged products to a CSV file. Saves are
// append-only: a candidate row identical to an already-persisted row in every
// column except last_updated is skipped, so re-saving the same merge result
// adds nothing. A process-level mutex serialises read-modify-write; writers
// in other processes are not supported.
type CSVProductStore struct {
	mu     sync.Mutex
	path   string
	logger *utils.Logger
}

// NewCSVProductStore creates a store backed by the CSV file at path.
// Intermediate directories are created automatically.
func NewCSVProductStore(path string, logger *utils.Logger) (*CSVProductStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVProductStore{path: path, logger: logger}, nil
}

// Load reads all persisted products. Because saves append row versions, rows
// are deduplicated by id keeping the last (newest) occurrence, in first-seen
// order. A missing or unreadable file loads as an empty product set rather
// than failing the request.
func (s *CSVProductStore) Load() ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows()
	if err != nil {
		s.logger.Warn("[csv] Unreadable product file %s — treating as empty: %v", s.path, err)
		return nil, nil
	}

	byID := make(map[string]*models.Product)
	var order []string
	for _, row := range rows {
		p, err := rowToProduct(row)
		if err != nil {
			s.logger.Warn("[csv] Skipping malformed row: %v", err)
			continue
		}
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}

	products := make([]*models.Product, 0, len(order))
	for _, id := range order {
		products = append(products, byID[id])
	}
	return products, nil
}

// Save appends every product row not already persisted. Row identity is
// full-field equality excluding the last_updated column.
func (s *CSVProductStore) Save(products []*models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readRows()
	if err != nil {
		s.logger.Warn("[csv] Unreadable product file %s on save — starting fresh: %v", s.path, err)
		existing = nil
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("csv: remove corrupt file: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		seen[rowKey(row)] = struct{}{}
	}

	writeHeader := len(existing) == 0
	if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
		writeHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(productCSVHeader); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
	}

	appended := 0
	now := time.Now()
	for _, p := range products {
		row, err := productToRow(p, now)
		if err != nil {
			return fmt.Errorf("csv: encode product %q: %w", p.ID, err)
		}
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
		appended++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.logger.Info("[csv] Saved %d products (%d novel rows appended) → %s",
		len(products), appended, s.path)
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *CSVProductStore) Close() error { return nil }

// readRows returns all data rows (header stripped). The file not existing is
// not an error.
func (s *CSVProductStore) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(productCSVHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && rows[0][0] == "id" {
		rows = rows[1:]
	}
	return rows, nil
}

// rowKey joins every column except last_updated.
func rowKey(row []string) string {
	return strings.Join(row[:len(row)-1], "\x1f")
}

func productToRow(p *models.Product, now time.Time) ([]string, error) {
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return nil, err
	}

	bestPrice := ""
	if p.HasPrice() {
		bestPrice = strconv.FormatFloat(p.BestPrice, 'f', -1, 64)
	}

	lastUpdated := p.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = now
	}

	return []string{
		p.ID,
		p.Name,
		p.Brand,
		p.PriceDisplay,
		bestPrice,
		p.AvgRating,
		p.Thumbnail,
		strings.Join(p.AvailableOn, "|"),
		string(variants),
		lastUpdated.Format(time.RFC3339),
	}, nil
}

func rowToProduct(row []string) (*models.Product, error) {
	p := &models.Product{
		ID:           row[0],
		Name:         row[1],
		Brand:        row[2],
		PriceDisplay: row[3],
		AvgRating:    row[5],
		Thumbnail:    row[6],
		BestPrice:    math.Inf(1),
	}

	if row[4] != "" {
		price, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("best_price %q: %w", row[4], err)
		}
		p.BestPrice = price
	}

	if row[7] != "" {
		p.AvailableOn = strings.Split(row[7], "|")
	}

	if row[8] != "" {
		if err := json.Unmarshal([]byte(row[8]), &p.Variants); err != nil {
			return nil, fmt.Errorf("variants column: %w", err)
		}
	}

	if row[9] != "" {
		ts, err := time.Parse(time.RFC3339, row[9])
		if err == nil {
			p.LastUpdated = ts
		}
	}

	return p, nil
}
