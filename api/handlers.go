package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopscout/models"
	"shopscout/services"
	"shopscout/storage"
	"shopscout/utils"
)

type handler struct {
	logger         *utils.Logger
	search         *services.SearchService
	details        *services.DetailService
	recommender    *services.Recommender
	products       storage.ProductStore
	ratings        storage.RatingStore
	synthetic      *storage.SyntheticRatingStore
	syntheticUsers int
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search handles POST /api/search.
func (h *handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	products, err := h.search.Search(req.Query)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a search term"})
			return
		}
		h.logger.Error("[api] Search failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

type detailsRequest struct {
	Links []string `json:"links"`
}

// ProductDetails handles POST /api/product_details.
func (h *handler) ProductDetails(c *gin.Context) {
	var req detailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := h.details.FetchAll(req.Links)
	if err != nil {
		if errors.Is(err, services.ErrNoLinks) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No links provided"})
			return
		}
		h.logger.Error("[api] Product details failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "results": results})
}

type recommendationRequest struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Limit     int    `json:"limit"`
}

// Recommendations handles POST /api/recommendations. The product table and
// rating matrix are loaded per request; nothing is cached between calls.
func (h *handler) Recommendations(c *gin.Context) {
	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	products, err := h.products.Load()
	if err != nil {
		h.logger.Error("[api] Loading products failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(products) == 0 {
		// No product data at all is distinct from an empty-but-valid result.
		c.JSON(http.StatusOK, gin.H{"message": "no recommendations found"})
		return
	}

	matrix := h.ratingMatrix(products)

	var recs interface{}
	switch req.Type {
	case "content":
		recs = h.recommender.ContentBased(products, req.ProductID, req.Limit)
	case "collaborative":
		recs = h.recommender.Collaborative(matrix, products, req.UserID, req.Limit)
	case "hybrid", "":
		recs = h.recommender.Hybrid(products, matrix, req.ProductID, req.UserID, req.Limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be content, collaborative or hybrid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// ratingMatrix overlays submitted ratings on the synthetic base, generating
// and persisting the synthetic set on first use.
func (h *handler) ratingMatrix(products []*models.Product) map[string]map[string]float64 {
	events, err := h.synthetic.Load()
	if err != nil {
		h.logger.Warn("[api] Synthetic ratings unavailable: %v", err)
	}
	if len(events) == 0 {
		ids := make([]string, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		events = services.GenerateSyntheticRatings(ids, h.syntheticUsers)
		if err := h.synthetic.Save(events); err != nil {
			h.logger.Warn("[api] Could not persist synthetic ratings: %v", err)
		}
	}

	submitted, err := h.ratings.Load()
	if err != nil {
		h.logger.Warn("[api] Submitted ratings unavailable: %v", err)
		submitted = nil
	}

	return services.CombineMatrices(services.RatingMatrix(events), submitted)
}

type ratingRequest struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Rating    float64 `json:"rating"`
}

// SubmitRating handles POST /api/ratings.
func (h *handler) SubmitRating(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and product_id are required"})
		return
	}
	if req.Rating <= 0 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be in (0, 5]"})
		return
	}

	if err := h.ratings.Append(req.UserID, req.ProductID, req.Rating); err != nil {
		h.logger.Error("[api] Rating append failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
