package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage backend names
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
)

// Quote provider names
const (
	ProviderFeed  = "feed"
	ProviderEODHD = "eodhd"
)

// Config holds all configuration for pricehistory
type Config struct {
	Environment string        `toml:"environment"`
	Storage     StorageConfig `toml:"storage"`
	History     HistoryConfig `toml:"history"`
	Logging     LoggingConfig `toml:"logging"`
}

// StorageConfig selects and configures the history storage backend.
// Path is used by the file backend, the remaining fields by SurrealDB.
type StorageConfig struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// Describe returns a short human readable description of the backend
func (c StorageConfig) Describe() string {
	if c.Backend == BackendSurrealDB {
		return fmt.Sprintf("surrealdb %s (%s/%s)", c.Address, c.Namespace, c.Database)
	}
	return "file " + c.Path
}

// HistoryConfig holds gap-detection and refresh settings
type HistoryConfig struct {
	YearsToCheck int     `toml:"years_to_check"`
	RateLimit    float64 `toml:"rate_limit"` // provider requests per second
	Workers      int     `toml:"workers"`    // symbols refreshed in parallel
	FeedPath     string  `toml:"feed_path"`  // directory of downloaded quote batches
	Provider     string  `toml:"provider"`   // feed or eodhd
	APIKey       string  `toml:"api_key"`
	BaseURL      string  `toml:"base_url"`
	Timeout      string  `toml:"timeout"`  // provider HTTP timeout, e.g. "30s"
	Schedule     string  `toml:"schedule"` // cron expression for watch mode, UTC
}

// GetTimeout parses the provider timeout, defaulting to 30 seconds
func (c HistoryConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Backend:   BackendFile,
			Path:      "data/history",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "pricehistory",
			Database:  "pricehistory",
			Username:  "root",
			Password:  "root",
		},
		History: HistoryConfig{
			YearsToCheck: 5,
			RateLimit:    5,
			Workers:      4,
			FeedPath:     "data/feed",
			Provider:     ProviderFeed,
			Timeout:      "30s",
			Schedule:     "30 22 * * 1-5",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PRICEHISTORY_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("PRICEHISTORY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("PRICEHISTORY_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Join(path, "history")
		config.History.FeedPath = filepath.Join(path, "feed")
	}

	if v := os.Getenv("PRICEHISTORY_FEED_PATH"); v != "" {
		config.History.FeedPath = v
	}

	if v := os.Getenv("PRICEHISTORY_PROVIDER"); v != "" {
		config.History.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("PRICEHISTORY_EODHD_API_KEY"); v != "" {
		config.History.APIKey = v
	}

	if v := os.Getenv("PRICEHISTORY_SCHEDULE"); v != "" {
		config.History.Schedule = v
	}

	if v := os.Getenv("PRICEHISTORY_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("PRICEHISTORY_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}

	if v := os.Getenv("PRICEHISTORY_YEARS_TO_CHECK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.History.YearsToCheck = n
		}
	}
	if v := os.Getenv("PRICEHISTORY_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.History.RateLimit = f
		}
	}
	if v := os.Getenv("PRICEHISTORY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.History.Workers = n
		}
	}
}

// Validate checks settings that have no usable fallback
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSurrealDB:
	default:
		return fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", c.Storage.Backend)
	}
	switch c.History.Provider {
	case ProviderFeed, ProviderEODHD:
	default:
		return fmt.Errorf("unknown quote provider: %s (supported: feed, eodhd)", c.History.Provider)
	}
	if c.IsProduction() && c.Storage.Backend == BackendSurrealDB &&
		c.Storage.Username == "root" && c.Storage.Password == "root" {
		return fmt.Errorf("default surrealdb credentials are not allowed in production")
	}
	if c.History.YearsToCheck < 1 {
		return fmt.Errorf("history.years_to_check must be at least 1, got %d", c.History.YearsToCheck)
	}
	if c.History.Workers < 1 {
		c.History.Workers = 1
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
