package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SearchConcurrency int
	DetailConcurrency int
	RateLimitMs       int
	MaxRetries        int
	PagesToScrape     int

	ProductCSVPath  string
	UserRatingsPath string
	SyntheticPath   string
	SyntheticUsers  int

	HTTPPort   string
	CORSOrigin string
	ChromeBin  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "shopscout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "shopscout123"),
		PostgresDB:       getEnv("POSTGRES_DB", "products_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SearchConcurrency: getEnvInt("SEARCH_CONCURRENCY", 2),
		DetailConcurrency: getEnvInt("DETAIL_CONCURRENCY", 4),
		RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:     getEnvInt("PAGES_TO_SCRAPE", 1),

		ProductCSVPath:  getEnv("PRODUCT_CSV_PATH", "./output/amazon_flipkart_products.csv"),
		UserRatingsPath: getEnv("USER_RATINGS_PATH", "./output/user_ratings.json"),
		SyntheticPath:   getEnv("SYNTHETIC_RATINGS_PATH", "./output/synthetic_ratings.json"),
		SyntheticUsers:  getEnvInt("SYNTHETIC_USERS", 100),

		HTTPPort:   getEnv("HTTP_PORT", "5000"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		ChromeBin:  getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
