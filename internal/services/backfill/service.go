// Package backfill keeps stored price histories complete: it plans the
// missing date ranges per symbol, fetches them from a QuoteProvider and
// folds the results into storage.
//
// All writes to one symbol go through a per-symbol mutex, so callers may
// use a Service from many goroutines. Different symbols proceed in parallel.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/history"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
)

// Service coordinates storage, provider and history engine
type Service struct {
	storage  interfaces.HistoryStorage
	provider interfaces.QuoteProvider
	engine   *history.Engine
	limiter  *rate.Limiter
	logger   *common.Logger
	config   common.HistoryConfig

	locks sync.Map // symbol -> *sync.Mutex
}

// RefreshResult describes one Refresh of a symbol
type RefreshResult struct {
	RunID       string             `json:"run_id"`
	Symbol      string             `json:"symbol"`
	Ranges      []models.DateRange `json:"ranges,omitempty"`
	Quotes      int                `json:"quotes"`
	MissingDays []time.Time        `json:"missing_days,omitempty"`
	NotFound    bool               `json:"not_found,omitempty"`
	Skipped     bool               `json:"skipped,omitempty"`
	Err         error              `json:"-"`
}

// NewService creates a new backfill service. provider may be nil when only
// Ingest, Plan and Maintain are used.
func NewService(
	storage interfaces.HistoryStorage,
	provider interfaces.QuoteProvider,
	engine *history.Engine,
	logger *common.Logger,
	config common.HistoryConfig,
) *Service {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Service{
		storage:  storage,
		provider: provider,
		engine:   engine,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		config:   config,
	}
}

// lock serializes all access to one symbol's history
func (s *Service) lock(symbol string) func() {
	m, _ := s.locks.LoadOrStore(symbol, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// load returns the stored history or a new empty one
func (s *Service) load(ctx context.Context, symbol string) (*models.History, error) {
	h, err := s.storage.LoadHistory(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	if h == nil {
		h = models.NewHistory(symbol)
	}
	return h, nil
}

// History returns the stored history for symbol, or nil when none exists.
func (s *Service) History(ctx context.Context, symbol string) (*models.History, error) {
	unlock := s.lock(symbol)
	defer unlock()
	return s.storage.LoadHistory(ctx, symbol)
}

// Ingest merges quotes fetched for r into the stored history of symbol and
// saves it. It returns the open market days inside r the batch did not cover.
func (s *Service) Ingest(ctx context.Context, symbol string, quotes []models.QuoteRecord, r models.DateRange) ([]time.Time, error) {
	unlock := s.lock(symbol)
	defer unlock()

	h, err := s.load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	missing := s.engine.UpdateHistory(h, quotes, r)
	if err := s.storage.SaveHistory(ctx, h); err != nil {
		return missing, fmt.Errorf("failed to save history for %s: %w", symbol, err)
	}
	return missing, nil
}

// Plan returns the date ranges still missing for symbol.
func (s *Service) Plan(ctx context.Context, symbol string) ([]models.DateRange, error) {
	unlock := s.lock(symbol)
	defer unlock()

	h, err := s.load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.engine.PlanFetch(h, s.config.YearsToCheck), nil
}

// Maintain removes duplicate and undated records from the stored history of
// symbol, saving only when something changed.
func (s *Service) Maintain(ctx context.Context, symbol string) (bool, error) {
	unlock := s.lock(symbol)
	defer unlock()

	h, err := s.storage.LoadHistory(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	if h == nil || !s.engine.RemoveDuplicates(h) {
		return false, nil
	}
	if err := s.storage.SaveHistory(ctx, h); err != nil {
		return true, fmt.Errorf("failed to save history for %s: %w", symbol, err)
	}
	return true, nil
}

// Refresh fetches every missing range for symbol and saves the result.
// Symbols flagged not-found and histories that are current are skipped
// unless force is set. Provider calls are paced by the configured rate.
func (s *Service) Refresh(ctx context.Context, symbol string, force bool) (*RefreshResult, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("quote provider not configured")
	}

	result := &RefreshResult{RunID: uuid.NewString(), Symbol: symbol}
	log := s.logger.With().Str("run_id", result.RunID).Str("symbol", symbol).Logger()

	unlock := s.lock(symbol)
	defer unlock()

	h, err := s.load(ctx, symbol)
	if err != nil {
		return result, err
	}
	if !force && (h.NotFound || !s.engine.NeedsUpdating(h)) {
		result.Skipped = true
		result.NotFound = h.NotFound
		log.Debug().Bool("not_found", h.NotFound).Msg("History current, refresh skipped")
		return result, nil
	}
	changed := false
	if force && h.NotFound {
		h.NotFound = false
		changed = true
	}

	result.Ranges = s.engine.PlanFetch(h, s.config.YearsToCheck)
	var fetchErr error
	for _, r := range result.Ranges {
		if err := s.limiter.Wait(ctx); err != nil {
			fetchErr = err
			break
		}
		quotes, err := s.provider.GetDailyQuotes(ctx, symbol, r)
		if errors.Is(err, interfaces.ErrSymbolNotFound) {
			log.Info().Msg("Provider reports symbol not found")
			h.NotFound = true
			result.NotFound = true
			changed = true
			break
		}
		if err != nil {
			fetchErr = fmt.Errorf("failed to fetch %s %s: %w", symbol, r, err)
			break
		}

		missing := s.engine.UpdateHistory(h, quotes, r)
		result.Quotes += len(quotes)
		result.MissingDays = append(result.MissingDays, missing...)
		changed = changed || len(quotes) > 0

		log.Debug().
			Time("start", r.Start).
			Time("end", r.End).
			Int("quotes", len(quotes)).
			Int("missing_days", len(missing)).
			Msg("Range fetched")
	}

	if changed {
		if err := s.storage.SaveHistory(ctx, h); err != nil {
			return result, errors.Join(fetchErr, fmt.Errorf("failed to save history for %s: %w", symbol, err))
		}
	}

	log.Info().
		Int("ranges", len(result.Ranges)).
		Int("quotes", result.Quotes).
		Int("records", len(h.Records)).
		Msg("Refresh complete")
	return result, fetchErr
}

// RefreshAll refreshes symbols in parallel, limited to the configured number
// of workers. A failing symbol does not stop the others; its error is kept
// on its result and joined into the returned error.
func (s *Service) RefreshAll(ctx context.Context, symbols []string, force bool) ([]*RefreshResult, error) {
	results := make([]*RefreshResult, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			res, err := s.Refresh(ctx, symbol, force)
			if res == nil {
				res = &RefreshResult{Symbol: symbol}
			}
			res.Err = err
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}
