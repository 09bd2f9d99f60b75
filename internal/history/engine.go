// Package history maintains per-symbol daily price series: ordered merge of
// fetched quotes, staleness checks, gap detection and duplicate repair.
//
// An Engine holds no per-symbol state. All mutating calls on one
// *models.History must be serialized by the caller; different histories may
// be mutated in parallel.
package history

import (
	"slices"
	"time"

	"github.com/bobmcallan/pricehistory/internal/calendar"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/models"
)

// Engine applies merge and gap-detection rules to histories
type Engine struct {
	logger *common.Logger
	now    func() time.Time
}

// NewEngine creates a new history engine
func NewEngine(logger *common.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source used for "today".
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) today() time.Time {
	return calendar.Date(e.now())
}

// touch moves LastUpdate forward to today; it never moves backward.
func (e *Engine) touch(h *models.History) {
	if t := e.today(); t.After(h.LastUpdate) {
		h.LastUpdate = t
	}
}

// Merge inserts or updates q in h.Records, keeping them strictly ascending
// by date. The quote's date is normalized to midnight and a non-empty name
// is promoted to h.Name.
//
// hint is the index to start scanning from and receives the index of the
// merged record, so folding an ascending batch is linear overall. A nil hint
// scans from the start. Merge never rejects a quote and always returns true.
func (e *Engine) Merge(h *models.History, q models.QuoteRecord, hint *int) bool {
	q.Date = calendar.Date(q.Date)
	if q.Name != "" {
		h.Name = q.Name
		q.Name = ""
	}

	start := 0
	if hint != nil {
		start = *hint
	}
	// A hint past the quote's position would break ordering; rescan instead.
	if start < 0 || start > len(h.Records) || (start > 0 && !h.Records[start-1].Date.Before(q.Date)) {
		start = 0
	}

	idx := len(h.Records)
	updated := false
	for i := start; i < len(h.Records); i++ {
		r := &h.Records[i]
		if r.Date.Equal(q.Date) {
			r.Downloaded = q.Downloaded
			r.Open = q.Open
			r.Close = q.Close
			r.High = q.High
			r.Low = q.Low
			r.Volume = q.Volume
			idx, updated = i, true
			break
		}
		if r.Date.After(q.Date) {
			idx = i
			break
		}
	}
	if !updated {
		h.Records = slices.Insert(h.Records, idx, q)
	}

	if hint != nil {
		*hint = idx
	}
	e.touch(h)
	return true
}

// UpdateHistory folds a freshly fetched batch requested for r into h.
//
// The batch is sorted by date and merged in order. While walking forward
// from r.Start, every market-open day up to r.End and before the next quote
// that the provider did not return is collected and returned. Those days are only
// reported; whether they belong in h.AdditionalClosures is a provider
// policy decision left to the caller.
func (e *Engine) UpdateHistory(h *models.History, quotes []models.QuoteRecord, r models.DateRange) []time.Time {
	batch := make([]models.QuoteRecord, len(quotes))
	copy(batch, quotes)
	for i := range batch {
		batch[i].Date = calendar.Date(batch[i].Date)
	}
	slices.SortStableFunc(batch, func(a, b models.QuoteRecord) int {
		return a.Date.Compare(b.Date)
	})

	var missing []time.Time
	end := calendar.Date(r.End)
	cursor := calendar.Date(r.Start)
	if !calendar.IsMarketOpen(cursor, h.AdditionalClosures) {
		cursor = calendar.NextMarketOpenDate(cursor, h.AdditionalClosures)
	}

	hint := 0
	for _, q := range batch {
		for cursor.Before(q.Date) && !cursor.After(end) {
			if calendar.IsMarketOpen(cursor, h.AdditionalClosures) {
				missing = append(missing, cursor)
			}
			cursor = calendar.NextMarketOpenDate(cursor, h.AdditionalClosures)
		}
		e.Merge(h, q, &hint)
		if !q.Date.Before(cursor) {
			cursor = calendar.NextMarketOpenDate(q.Date, h.AdditionalClosures)
		}
	}

	if len(missing) > 0 {
		e.logger.Debug().
			Str("symbol", h.Symbol).
			Str("range", r.String()).
			Int("missing_days", len(missing)).
			Time("first_missing", missing[0]).
			Msg("Provider returned no data for open market days")
	}
	return missing
}

// NeedsUpdating returns true when h has never been updated or the most
// recent trading day is after its last update.
func (e *Engine) NeedsUpdating(h *models.History) bool {
	if h.LastUpdate.IsZero() {
		return true
	}
	latest := calendar.MostRecentTradingDay(e.now(), h.AdditionalClosures)
	return latest.After(calendar.Date(h.LastUpdate))
}
