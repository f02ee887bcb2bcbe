package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"stealthcompany.com/erdashboard/internal/couchbase"
)

const (
	defaultRefreshIntervalMs = 30000
	defaultAPITimeout        = 30 * time.Second
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultRefreshRateLimit  = 0.2
	defaultRefreshBurst      = 1
)

// Config is the process configuration, read once at startup
type Config struct {
	APIBaseURL        string
	RefreshInterval   time.Duration
	APITimeout        time.Duration
	Port              string
	ElasticsearchURL  string
	LogLevel          string
	TimestampLocation *time.Location
	RefreshRateLimit  rate.Limit
	RefreshBurst      int
	Couchbase         couchbase.Settings
	SnapshotTTL       time.Duration
}

// CouchbaseEnabled reports whether a snapshot store should be opened
func (c Config) CouchbaseEnabled() bool {
	return c.Couchbase.URL != ""
}

// LoadDotEnv loads .env from the parent directory, then the current one, if present
func LoadDotEnv() {
	if err := godotenv.Load("../.env"); err != nil {
		log.Debug().Msg("Not found .env file in parent directory, trying current directory")
		if err := godotenv.Load(".env"); err != nil {
			log.Debug().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:       strings.TrimSpace(getEnvOrDefault("API_BASE_URL", "")),
		Port:             getEnvOrDefault("API_PORT", defaultPort),
		ElasticsearchURL: getEnvOrDefault("ELASTICSEARCH_URL", ""),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		Couchbase: couchbase.Settings{
			URL:      getEnvOrDefault("COUCHBASE_URL", ""),
			Username: getEnvOrDefault("COUCHBASE_USERNAME", ""),
			Password: getEnvOrDefault("COUCHBASE_PASSWORD", ""),
			Bucket:   getEnvOrDefault("COUCHBASE_BUCKET", couchbase.DefaultBucket),
		},
	}

	intervalMs, err := strconv.Atoi(getEnvOrDefault("REFRESH_INTERVAL", strconv.Itoa(defaultRefreshIntervalMs)))
	if err != nil || intervalMs <= 0 {
		return Config{}, fmt.Errorf("REFRESH_INTERVAL must be a positive number of milliseconds, got %q", os.Getenv("REFRESH_INTERVAL"))
	}
	cfg.RefreshInterval = time.Duration(intervalMs) * time.Millisecond

	if cfg.APITimeout, err = parseDuration("API_TIMEOUT", defaultAPITimeout); err != nil {
		return Config{}, err
	}

	if cfg.SnapshotTTL, err = parseDuration("SNAPSHOT_TTL", 2*cfg.RefreshInterval); err != nil {
		return Config{}, err
	}

	cfg.TimestampLocation = time.Local
	if name := getEnvOrDefault("TIMESTAMP_LOCATION", ""); name != "" {
		if cfg.TimestampLocation, err = time.LoadLocation(name); err != nil {
			return Config{}, fmt.Errorf("invalid TIMESTAMP_LOCATION: %w", err)
		}
	}

	limit, err := strconv.ParseFloat(getEnvOrDefault("REFRESH_RATE_LIMIT", ""), 64)
	if err != nil {
		limit = defaultRefreshRateLimit
	}
	if limit < 0 {
		return Config{}, fmt.Errorf("REFRESH_RATE_LIMIT must not be negative, got %v", limit)
	}
	cfg.RefreshRateLimit = rate.Limit(limit)
	if limit == 0 {
		cfg.RefreshRateLimit = rate.Inf
	}

	burst, err := strconv.Atoi(getEnvOrDefault("REFRESH_BURST", ""))
	if err != nil || burst < 1 {
		burst = defaultRefreshBurst
	}
	cfg.RefreshBurst = burst

	return cfg, nil
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration such as 30s, got %q", key, raw)
	}
	return d, nil
}

// Helper function to get environment variable with default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
