// Package config loads server settings from .env files and the environment.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port     int
	LogLevel string

	// Persisted store. DatabaseURL wins over DBPath.
	DatabaseURL string
	DBPath      string

	// Ephemeral cache.
	KVURL          string
	KVToken        string
	CacheNamespace string
	CacheTTL       time.Duration

	// Upstream open-data API.
	DataGovAPIKey     string
	DataGovResourceID string
	DataGovBaseURL    string
	UpstreamTimeout   time.Duration
	FieldAliasesFile  string

	// Reverse geocoding.
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderCacheSize int
	GeocoderCacheTTL  time.Duration

	// HTTP surface and background work.
	RateLimitPerSecond float64
	CORSOrigins        []string
	RefreshInterval    time.Duration
	TrendMonths        int
	DetachWriteBack    bool
}

// Default values
const (
	defaultPort            = 8080
	defaultDBPath          = "mgnrega.db"
	defaultNamespace       = "mgnrega"
	defaultCacheTTL        = 24 * time.Hour
	defaultDataGovBaseURL  = "https://api.data.gov.in"
	defaultUpstreamTimeout = 15 * time.Second
	defaultGeocoderURL     = "https://nominatim.openstreetmap.org"
	defaultGeocoderUA      = "mgnrega-engine/1.0 (district metrics lookup)"
	defaultGeocoderSize    = 1024
	defaultGeocoderTTL     = 6 * time.Hour
	defaultRateLimit       = 20
	defaultRefresh         = 24 * time.Hour
	defaultTrendMonths     = 12
)

// Load reads configuration from the first .env file found and then the
// process environment. Variables already set in the environment win over
// the file.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:     getEnvInt("PORT", defaultPort),
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		DatabaseURL: getEnvString("DATABASE_URL", ""),
		DBPath:      getEnvString("DB_PATH", defaultDBPath),

		KVURL:          getEnvString("KV_REST_API_URL", ""),
		KVToken:        getEnvString("KV_REST_API_TOKEN", ""),
		CacheNamespace: getEnvString("CACHE_NAMESPACE", defaultNamespace),
		CacheTTL:       getEnvDuration("CACHE_TTL", defaultCacheTTL),

		DataGovAPIKey:     getEnvString("DATA_GOV_API_KEY", ""),
		DataGovResourceID: getEnvString("DATA_GOV_RESOURCE_ID", ""),
		DataGovBaseURL:    getEnvString("DATA_GOV_BASE_URL", defaultDataGovBaseURL),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", defaultUpstreamTimeout),
		FieldAliasesFile:  getEnvString("FIELD_ALIASES_FILE", ""),

		GeocoderURL:       getEnvString("GEOCODER_URL", defaultGeocoderURL),
		GeocoderUserAgent: getEnvString("GEOCODER_USER_AGENT", defaultGeocoderUA),
		GeocoderCacheSize: getEnvInt("GEOCODER_CACHE_SIZE", defaultGeocoderSize),
		GeocoderCacheTTL:  getEnvDuration("GEOCODER_CACHE_TTL", defaultGeocoderTTL),

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", defaultRateLimit),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", defaultRefresh),
		TrendMonths:        getEnvInt("TREND_MONTHS", defaultTrendMonths),
		DetachWriteBack:    getEnvBool("DETACH_WRITEBACK", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("PORT must be between 1 and 65535"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.TrendMonths <= 0 {
		errs = append(errs, errors.New("TREND_MONTHS must be positive"))
	}
	if c.RateLimitPerSecond < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_SECOND must not be negative"))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

// RemoteCacheConfigured reports whether both remote cache credentials are set.
func (c *Config) RemoteCacheConfigured() bool {
	return c.KVURL != "" && c.KVToken != ""
}

// UpstreamConfigured reports whether the upstream tier can be attempted.
func (c *Config) UpstreamConfigured() bool {
	return c.DataGovAPIKey != "" && c.DataGovResourceID != ""
}

// UsePostgres reports whether DATABASE_URL selects the Postgres store.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	parent := filepath.Dir(cwd)
	return []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(parent, ".env"),
		filepath.Join(filepath.Dir(parent), ".env"),
	}
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms", or bare seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
