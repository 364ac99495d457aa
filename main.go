package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"shopscout/api"
	"shopscout/config"
	"shopscout/models"
	"shopscout/scraper"
	"shopscout/scraper/amazon"
	"shopscout/scraper/flipkart"
	"shopscout/services"
	"shopscout/storage"
	"shopscout/utils"
)

func main() {
	serve := flag.Bool("serve", false, "start the HTTP API instead of a one-shot search")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== ShopScout price aggregator starting ===")
	logger.Info("Config — pages/site: %d | search workers: %d | detail workers: %d | rate: %dms",
		cfg.PagesToScrape, cfg.SearchConcurrency, cfg.DetailConcurrency, cfg.RateLimitMs)

	productStore, err := buildProductStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to create product store: %v", err)
		os.Exit(1)
	}
	defer productStore.Close()

	ratingStore, err := storage.NewFileRatingStore(cfg.UserRatingsPath, logger)
	if err != nil {
		logger.Error("Failed to create rating store: %v", err)
		os.Exit(1)
	}

	syntheticStore, err := storage.NewSyntheticRatingStore(cfg.SyntheticPath, logger)
	if err != nil {
		logger.Error("Failed to create synthetic rating store: %v", err)
		os.Exit(1)
	}

	sources := []scraper.Source{
		amazon.New(cfg, logger),
		flipkart.New(cfg, logger),
	}

	merger := services.NewMerger(logger)
	recommender := services.NewRecommender(logger)
	searchSvc := services.NewSearchService(cfg, logger, sources, merger, productStore)
	detailSvc := services.NewDetailService(cfg, logger, sources)

	if *serve {
		server := api.NewServer(cfg, logger, searchSvc, detailSvc, recommender,
			productStore, ratingStore, syntheticStore)
		if err := server.Run(); err != nil {
			logger.Error("HTTP server failed: %v", err)
			os.Exit(1)
		}
		return
	}

	query := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Println("usage: shopscout [-serve] <search query>")
		os.Exit(2)
	}

	products, err := searchSvc.Search(query)
	if err != nil {
		logger.Error("Search failed: %v", err)
		os.Exit(1)
	}
	if len(products) == 0 {
		logger.Warn("No products found for %q", query)
		return
	}

	printSummary(query, products)

	// Content-based suggestions for the best-priced result.
	all, err := productStore.Load()
	if err != nil || len(all) == 0 {
		all = products
	}
	recs := recommender.ContentBased(all, products[0].ID, 5)
	if len(recs) > 0 {
		fmt.Printf("\033[1;33m  Similar to %s\033[0m\n", truncate(products[0].Name, 40))
		fmt.Printf("  %s\n", strings.Repeat("─", 54))
		for i, r := range recs {
			fmt.Printf("  \033[1m%d.\033[0m %-40s %s\n", i+1, truncate(r.Name, 38), r.PriceDisplay)
		}
		fmt.Println()
	}
}

func buildProductStore(cfg *config.Config, logger *utils.Logger) (storage.ProductStore, error) {
	if cfg.PostgresEnabled {
		logger.Info("Using PostgreSQL product store (%s:%s/%s)",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
		return storage.NewPostgresStore(cfg.DSN())
	}
	return storage.NewCSVProductStore(cfg.ProductCSVPath, logger)
}

func printSummary(query string, products []*models.Product) {
	sep := strings.Repeat("═", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🛒 RESULTS FOR %q\033[0m\n", strings.ToUpper(query))
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	for i, p := range products {
		sites := strings.Join(p.AvailableOn, " & ")
		fmt.Printf("  \033[1m%2d.\033[0m %-42s\n", i+1, truncate(p.Name, 42))
		fmt.Printf("      %s | rating %s | %s | %d offer(s)\n",
			p.PriceDisplay, p.AvgRating, sites, len(p.Variants))
	}
	fmt.Println()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
