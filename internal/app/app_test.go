package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pricehistory/internal/clients/eodhd"
	"github.com/bobmcallan/pricehistory/internal/clients/feedfs"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/bobmcallan/pricehistory/internal/storage/historyfs"
)

// writeTestConfig writes a config pointing storage and feed into a temp dir
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	content := `environment = "test"

[storage]
backend = "file"
path = "` + filepath.ToSlash(filepath.Join(dir, "history")) + `"

[history]
years_to_check = 2
rate_limit = 0
workers = 3
feed_path = "` + filepath.ToSlash(filepath.Join(dir, "feed")) + `"

[logging]
level = "error"
`
	path := filepath.Join(dir, "pricehistory.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, dir
}

func TestNewApp_WiresFileBackend(t *testing.T) {
	configPath, dir := writeTestConfig(t)

	a, err := NewApp(context.Background(), configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "test", a.Config.Environment)
	assert.Equal(t, 2, a.Config.History.YearsToCheck)
	assert.IsType(t, &historyfs.Store{}, a.Storage)
	assert.NotNil(t, a.Provider)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Backfill)
	assert.False(t, a.StartupTime.IsZero())

	// The service writes through the configured store
	d := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err = a.Backfill.Ingest(context.Background(), "AAPL", []models.QuoteRecord{{Date: d, Close: 1}}, models.DateRange{Start: d, End: d})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "history", "AAPL.json"))
}

func TestNewApp_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage\nbackend ="), 0644))

	_, err := NewApp(context.Background(), path)
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "explicit.toml", ResolveConfigPath("explicit.toml"))

	t.Setenv("PRICEHISTORY_CONFIG", "from-env.toml")
	assert.Equal(t, "from-env.toml", ResolveConfigPath(""))
}

func TestNewHistoryStorage_UnknownBackend(t *testing.T) {
	_, err := NewHistoryStorage(context.Background(), common.NewSilentLogger(), common.StorageConfig{Backend: "badger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badger")
}

func TestClose_Idempotent(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	a, err := NewApp(context.Background(), configPath)
	require.NoError(t, err)

	a.Close()
	a.Close()
	assert.Nil(t, a.Storage)
}

func TestNewQuoteProvider(t *testing.T) {
	logger := common.NewSilentLogger()

	p, err := NewQuoteProvider(logger, common.HistoryConfig{Provider: common.ProviderFeed, FeedPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &feedfs.Provider{}, p)

	p, err = NewQuoteProvider(logger, common.HistoryConfig{Provider: common.ProviderEODHD, APIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &eodhd.Client{}, p)

	_, err = NewQuoteProvider(logger, common.HistoryConfig{Provider: common.ProviderEODHD})
	assert.Error(t, err, "eodhd without an api key")

	_, err = NewQuoteProvider(logger, common.HistoryConfig{Provider: "yahoo"})
	assert.Error(t, err)
}
