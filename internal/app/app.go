package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/pricehistory/internal/clients/eodhd"
	"github.com/bobmcallan/pricehistory/internal/clients/feedfs"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/history"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/services/backfill"
	"github.com/bobmcallan/pricehistory/internal/storage/historyfs"
	"github.com/bobmcallan/pricehistory/internal/storage/surrealdb"
)

// App holds the initialized storage, provider and services.
// It is the shared core behind cmd/pricehistory.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.HistoryStorage
	Provider    interfaces.QuoteProvider
	Engine      *history.Engine
	Backfill    *backfill.Service
	StartupTime time.Time

	scheduler *cron.Cron
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, PRICEHISTORY_CONFIG,
// pricehistory.toml next to the binary, then config/pricehistory.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("PRICEHISTORY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "pricehistory.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/pricehistory.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and wires storage, provider and services.
// configPath may be empty, in which case ResolveConfigPath decides.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppFromConfig(ctx, config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppFromConfig wires an App from an already loaded config.
func NewAppFromConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	store, err := NewHistoryStorage(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := NewQuoteProvider(logger, config.History)
	if err != nil {
		store.Close()
		return nil, err
	}
	engine := history.NewEngine(logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     store,
		Provider:    provider,
		Engine:      engine,
		Backfill:    backfill.NewService(store, provider, engine, logger, config.History),
		StartupTime: startupStart,
	}

	logger.Debug().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// NewHistoryStorage opens the backend named by config.Backend.
func NewHistoryStorage(ctx context.Context, logger *common.Logger, config common.StorageConfig) (interfaces.HistoryStorage, error) {
	switch config.Backend {
	case common.BackendFile, "":
		store, err := historyfs.NewHistoryStore(logger, config.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case common.BackendSurrealDB:
		store, err := surrealdb.NewHistoryStore(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Backend)
	}
}

// NewQuoteProvider creates the provider named by config.Provider.
func NewQuoteProvider(logger *common.Logger, config common.HistoryConfig) (interfaces.QuoteProvider, error) {
	switch config.Provider {
	case common.ProviderFeed, "":
		return feedfs.NewProvider(config.FeedPath, feedfs.WithLogger(logger)), nil
	case common.ProviderEODHD:
		if config.APIKey == "" {
			return nil, fmt.Errorf("eodhd provider needs history.api_key or PRICEHISTORY_EODHD_API_KEY")
		}
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.RateLimit),
			eodhd.WithTimeout(config.GetTimeout()),
		}
		if config.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(config.BaseURL))
		}
		return eodhd.NewClient(config.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown quote provider: %s", config.Provider)
	}
}

// Close stops the scheduler and releases the storage backend.
func (a *App) Close() {
	a.stopScheduler()
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}
