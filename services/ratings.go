package services

import (
	"math/rand"
	"strconv"

	"shopscout/models"
)

// GenerateSyntheticRatings produces fake rating history for collaborative
// filtering before enough real users exist. Each user rates 5–15 distinct
// random products with a mostly-positive rating in [3.0, 5.0], one decimal.
func GenerateSyntheticRatings(productIDs []string, numUsers int) []models.RatingEvent {
	if len(productIDs) == 0 || numUsers <= 0 {
		return nil
	}

	events := make([]models.RatingEvent, 0, numUsers*10)
	for user := 1; user <= numUsers; user++ {
		userID := "user_" + strconv.Itoa(user)

		k := 5 + rand.Intn(11)
		if k > len(productIDs) {
			k = len(productIDs)
		}

		perm := rand.Perm(len(productIDs))
		for _, idx := range perm[:k] {
			events = append(events, models.RatingEvent{
				UserID:    userID,
				ProductID: productIDs[idx],
				Rating:    round1(3.0 + rand.Float64()*2.0),
			})
		}
	}
	return events
}

// RatingMatrix folds rating events into the user → product → rating map the
// recommender consumes. Later events for the same (user, product) pair win.
func RatingMatrix(events []models.RatingEvent) map[string]map[string]float64 {
	matrix := make(map[string]map[string]float64)
	for _, e := range events {
		userRatings, ok := matrix[e.UserID]
		if !ok {
			userRatings = make(map[string]float64)
			matrix[e.UserID] = userRatings
		}
		userRatings[e.ProductID] = e.Rating
	}
	return matrix
}

// CombineMatrices overlays submitted user ratings on top of the synthetic
// base. Real ratings win on conflicts.
func CombineMatrices(base, overlay map[string]map[string]float64) map[string]map[string]float64 {
	combined := make(map[string]map[string]float64, len(base)+len(overlay))
	for uid, ratings := range base {
		cp := make(map[string]float64, len(ratings))
		for pid, r := range ratings {
			cp[pid] = r
		}
		combined[uid] = cp
	}
	for uid, ratings := range overlay {
		cp, ok := combined[uid]
		if !ok {
			cp = make(map[string]float64, len(ratings))
			combined[uid] = cp
		}
		for pid, r := range ratings {
			cp[pid] = r
		}
	}
	return combined
}
