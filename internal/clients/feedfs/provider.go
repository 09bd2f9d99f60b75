// Package feedfs provides a QuoteProvider over quote batches that were
// downloaded ahead of time into a directory, one JSON file per symbol.
package feedfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobmcallan/pricehistory/internal/calendar"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/bobmcallan/pricehistory/internal/storage"
)

// Provider reads <dir>/<symbol>.json, a JSON array of quote records.
type Provider struct {
	dir    string
	logger *common.Logger
}

// ProviderOption configures the provider
type ProviderOption func(*Provider)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a provider reading from dir
func NewProvider(dir string, opts ...ProviderOption) *Provider {
	p := &Provider{
		dir:    dir,
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetDailyQuotes returns the quotes for symbol dated within r. A missing
// feed file is reported as interfaces.ErrSymbolNotFound.
func (p *Provider) GetDailyQuotes(ctx context.Context, symbol string, r models.DateRange) ([]models.QuoteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, storage.SanitizeKey(symbol)+".json")
	all, err := ReadQuotes(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", symbol, interfaces.ErrSymbolNotFound)
		}
		return nil, err
	}

	start, end := calendar.Date(r.Start), calendar.Date(r.End)
	var out []models.QuoteRecord
	for _, q := range all {
		d := calendar.Date(q.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, q)
	}

	p.logger.Debug().
		Str("symbol", symbol).
		Str("range", r.String()).
		Int("quotes", len(out)).
		Msg("Feed quotes read")
	return out, nil
}

// ReadQuotes decodes a feed file holding a JSON array of quote records.
// A missing file wraps os.ErrNotExist.
func ReadQuotes(path string) ([]models.QuoteRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", path, err)
	}
	var quotes []models.QuoteRecord
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
	}
	return quotes, nil
}

// Compile-time check
var _ interfaces.QuoteProvider = (*Provider)(nil)
