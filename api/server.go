package api

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shopscout/config"
	"shopscout/services"
	"shopscout/storage"
	"shopscout/utils"
)

// Server exposes the search, detail and recommendation services over HTTP.
type Server struct {
	cfg    *config.Config
	logger *utils.Logger
	router *gin.Engine
}

// NewServer builds the gin router with CORS and all API routes registered.
func NewServer(
	cfg *config.Config,
	logger *utils.Logger,
	search *services.SearchService,
	details *services.DetailService,
	recommender *services.Recommender,
	products storage.ProductStore,
	ratings storage.RatingStore,
	synthetic *storage.SyntheticRatingStore,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.CORSOrigin},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	h := &handler{
		logger:         logger,
		search:         search,
		details:        details,
		recommender:    recommender,
		products:       products,
		ratings:        ratings,
		synthetic:      synthetic,
		syntheticUsers: cfg.SyntheticUsers,
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/search", h.Search)
		apiGroup.POST("/product_details", h.ProductDetails)
		apiGroup.POST("/recommendations", h.Recommendations)
		apiGroup.POST("/ratings", h.SubmitRating)
	}

	return &Server{cfg: cfg, logger: logger, router: router}
}

// Run starts the HTTP listener and blocks.
func (s *Server) Run() error {
	addr := ":" + s.cfg.HTTPPort
	s.logger.Info("[api] Listening on %s", addr)
	if err := s.router.Run(addr); err != nil {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}
