package storage

import "shopscout/models"

// ProductStore is the interface any product persistence backend must satisfy.
type ProductStore interface {
	Load() ([]*models.Product, error)
	Save(products []*models.Product) error
	Close() error
}

// RatingStore persists the user → product → rating mapping.
type RatingStore interface {
	Load() (map[string]map[string]float64, error)
	Append(userID, productID string, rating float64) error
}
