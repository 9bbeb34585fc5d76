package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	WatchDir         string
	WatchIntervalSec int
	WatchAutoExport  bool

	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	OpenAITimeoutMs int

	ResolveWorkers   int
	ResolveTimeoutMs int
	ResolveCacheSize int
	ResolveEnabled   bool

	CatalogAPIBaseURL   string
	CatalogAPIToken     string
	CatalogRateLimitRPS int
	CatalogTimeoutMs    int
	CatalogLookbackHrs  int

	MatchPartNumberConfidence float64
	MatchStrongThreshold      float64
	MatchWeakThreshold        float64
	MatchSpecTolerance        float64

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		WatchDir:         getEnv("WATCH_DIR", filepath.Join(cwd, "data", "inbox")),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeoutMs: getEnvInt("OPENAI_TIMEOUT_MS", 60000),

		ResolveWorkers:   getEnvInt("RESOLVE_WORKERS", 10),
		ResolveTimeoutMs: getEnvInt("RESOLVE_TIMEOUT_MS", 30000),
		ResolveCacheSize: getEnvInt("RESOLVE_CACHE_SIZE", 1024),
		ResolveEnabled:   getEnvBool("RESOLVE_ENABLED", true),

		CatalogAPIBaseURL:   getEnv("CATALOG_API_BASE_URL", ""),
		CatalogAPIToken:     getEnv("CATALOG_API_TOKEN", ""),
		CatalogRateLimitRPS: getEnvInt("CATALOG_RATE_LIMIT_RPS", 5),
		CatalogTimeoutMs:    getEnvInt("CATALOG_TIMEOUT_MS", 30000),
		CatalogLookbackHrs:  getEnvInt("CATALOG_LOOKBACK_HOURS", 24),

		MatchPartNumberConfidence: getEnvFloat("MATCH_PART_NUMBER_CONFIDENCE", 0.97),
		MatchStrongThreshold:      getEnvFloat("MATCH_STRONG_THRESHOLD", 0.90),
		MatchWeakThreshold:        getEnvFloat("MATCH_WEAK_THRESHOLD", 0.60),
		MatchSpecTolerance:        getEnvFloat("MATCH_SPEC_TOLERANCE", 0.10),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
