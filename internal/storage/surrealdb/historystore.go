package surrealdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/bobmcallan/pricehistory/internal/storage"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// HistoryStore implements interfaces.HistoryStorage on SurrealDB
type HistoryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewHistoryStore connects using config. Close closes the connection.
func NewHistoryStore(ctx context.Context, logger *common.Logger, config common.StorageConfig) (*HistoryStore, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, &storage.IOError{Op: "connect", Location: config.Address, Err: err}
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB history store opened")

	return &HistoryStore{db: db, logger: logger}, nil
}

func (s *HistoryStore) location(symbol string) string {
	return fmt.Sprintf("%s:%s", historyTable, symbol)
}

// LoadHistory selects the history record for symbol; nil, nil when absent.
// A record that exists but does not decode is a *storage.FormatError.
func (s *HistoryStore) LoadHistory(ctx context.Context, symbol string) (*models.History, error) {
	rid := surrealmodels.NewRecordID(historyTable, symbol)
	h, err := surrealdb.Select[models.History](ctx, s.db, rid)
	if err != nil {
		// An untyped select that succeeds means the record was read but not decoded
		if raw, rawErr := surrealdb.Select[map[string]any](ctx, s.db, rid); rawErr == nil && raw != nil {
			return nil, &storage.FormatError{Symbol: symbol, Location: s.location(symbol), Err: err}
		}
		return nil, &storage.IOError{Op: "select", Location: s.location(symbol), Err: err}
	}
	if h == nil {
		return nil, nil
	}
	if h.Symbol != symbol {
		return nil, &storage.FormatError{
			Symbol:   symbol,
			Location: s.location(symbol),
			Err:      fmt.Errorf("record holds symbol %q", h.Symbol),
		}
	}
	return h, nil
}

// SaveHistory upserts the full history record for h.Symbol.
func (s *HistoryStore) SaveHistory(ctx context.Context, h *models.History) error {
	if h.Symbol == "" {
		return fmt.Errorf("cannot save history without a symbol")
	}
	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(historyTable, h.Symbol), "data": h}

	if _, err := surrealdb.Query[[]models.History](ctx, s.db, sql, vars); err != nil {
		return &storage.IOError{Op: "upsert", Location: s.location(h.Symbol), Err: err}
	}
	s.logger.Debug().Str("symbol", h.Symbol).Int("records", len(h.Records)).Msg("History saved")
	return nil
}

// ListSymbols returns all stored symbols, sorted.
func (s *HistoryStore) ListSymbols(ctx context.Context) ([]string, error) {
	type symbolResult struct {
		Symbol string `json:"symbol"`
	}

	sql := fmt.Sprintf("SELECT symbol FROM %s", historyTable)
	results, err := surrealdb.Query[[]symbolResult](ctx, s.db, sql, nil)
	if err != nil {
		return nil, &storage.IOError{Op: "list", Location: historyTable, Err: err}
	}

	var symbols []string
	if results != nil && len(*results) > 0 {
		for _, res := range (*results)[0].Result {
			symbols = append(symbols, res.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Close closes the connection.
func (s *HistoryStore) Close() error {
	return s.db.Close(context.Background())
}

// Compile-time check
var _ interfaces.HistoryStorage = (*HistoryStore)(nil)
