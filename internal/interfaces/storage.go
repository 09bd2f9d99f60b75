// Package interfaces defines service contracts for pricehistory
package interfaces

import (
	"context"

	"github.com/bobmcallan/pricehistory/internal/models"
)

// HistoryStorage persists one History per symbol
type HistoryStorage interface {
	// LoadHistory returns the stored history for symbol, or nil with no
	// error when nothing has been stored for it yet. Corrupt data fails
	// with a *storage.FormatError.
	LoadHistory(ctx context.Context, symbol string) (*models.History, error)

	// SaveHistory replaces any stored history for h.Symbol.
	SaveHistory(ctx context.Context, h *models.History) error

	// ListSymbols returns the symbols that have stored histories.
	ListSymbols(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
