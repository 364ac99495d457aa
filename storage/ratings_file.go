package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"shopscout/models"
	"shopscout/utils"
)

// FileRatingStore persists the user → product → rating mapping as a single
// JSON object. Read-modify-write is serialised with a process-level mutex;
// concurrent writers in other processes are not supported.
type FileRatingStore struct {
	mu     sync.Mutex
	path   string
	logger *utils.Logger
}

// NewFileRatingStore creates a store backed by the JSON file at path.
func NewFileRatingStore(path string, logger *utils.Logger) (*FileRatingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ratings: create output dir: %w", err)
	}
	return &FileRatingStore{path: path, logger: logger}, nil
}

// Load reads the full rating mapping. Missing or corrupt files load as an
// empty mapping rather than failing the request.
func (s *FileRatingStore) Load() (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(), nil
}

// Append records one rating and rewrites the file.
func (s *FileRatingStore) Append(userID, productID string, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratings := s.loadLocked()
	userRatings, ok := ratings[userID]
	if !ok {
		userRatings = make(map[string]float64)
		ratings[userID] = userRatings
	}
	userRatings[productID] = rating

	data, err := json.MarshalIndent(ratings, "", "  ")
	if err != nil {
		return fmt.Errorf("ratings: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("ratings: write %q: %w", s.path, err)
	}
	return nil
}

func (s *FileRatingStore) loadLocked() map[string]map[string]float64 {
	ratings := make(map[string]map[string]float64)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ratings
	}
	if err != nil {
		s.logger.Warn("[ratings] Unreadable ratings file %s — treating as empty: %v", s.path, err)
		return ratings
	}
	if err := json.Unmarshal(data, &ratings); err != nil {
		s.logger.Warn("[ratings] Corrupt ratings file %s — treating as empty: %v", s.path, err)
		return make(map[string]map[string]float64)
	}
	return ratings
}

// SyntheticRatingStore persists generated rating events as a flat JSON list.
// The file is written once and reused across runs so collaborative results
// stay reproducible.
type SyntheticRatingStore struct {
	mu     sync.Mutex
	path   string
	logger *utils.Logger
}

// NewSyntheticRatingStore creates a store backed by the JSON file at path.
func NewSyntheticRatingStore(path string, logger *utils.Logger) (*SyntheticRatingStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("synthetic: create output dir: %w", err)
	}
	return &SyntheticRatingStore{path: path, logger: logger}, nil
}

// Load reads the persisted event list; missing or corrupt files load as nil.
func (s *SyntheticRatingStore) Load() ([]models.RatingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("[synthetic] Unreadable file %s — treating as empty: %v", s.path, err)
		return nil, nil
	}

	var events []models.RatingEvent
	if err := json.Unmarshal(data, &events); err != nil {
		s.logger.Warn("[synthetic] Corrupt file %s — treating as empty: %v", s.path, err)
		return nil, nil
	}
	return events, nil
}

// Save writes the full event list, replacing any previous contents.
func (s *SyntheticRatingStore) Save(events []models.RatingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("synthetic: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("synthetic: write %q: %w", s.path, err)
	}
	return nil
}
