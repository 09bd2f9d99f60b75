package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/pricehistory/internal/models"
)

// ErrSymbolNotFound is returned by a QuoteProvider that does not know a symbol
var ErrSymbolNotFound = errors.New("symbol not found")

// QuoteProvider supplies successfully downloaded daily quotes.
// Throttling, retry and quota handling belong to the implementation.
type QuoteProvider interface {
	// GetDailyQuotes returns split-adjusted daily quotes for symbol within r
	// (inclusive), in any order.
	GetDailyQuotes(ctx context.Context, symbol string, r models.DateRange) ([]models.QuoteRecord, error)
}
