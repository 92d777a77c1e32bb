// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	CatalogURL     string
	CatalogTimeout time.Duration
	// CatalogRetries is the total number of attempts per catalog call.
	CatalogRetries int

	StorageDriver string
	StorageDir    string
	DatabaseURL   string

	CartCoalesce bool

	MetricsToken    string
	RateLimitPerMin int
}

// Load reads a .env file from the working directory if present, then the
// environment. Variables already set in the environment win over .env.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),

		CatalogURL:     getEnv("CATALOG_URL", "https://fakestoreapi.com"),
		CatalogTimeout: getEnvDuration("CATALOG_TIMEOUT", 10*time.Second),
		CatalogRetries: getEnvInt("CATALOG_RETRIES", 1),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "file")),
		StorageDir:    getEnv("STORAGE_DIR", "./data"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		CartCoalesce: getEnvBool("CART_COALESCE", false),

		MetricsToken:    os.Getenv("METRICS_TOKEN"),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 120),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
