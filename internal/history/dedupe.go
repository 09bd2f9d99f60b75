package history

import (
	"slices"

	"github.com/bobmcallan/pricehistory/internal/models"
)

// RemoveDuplicates repairs records loaded from legacy or untrusted data.
// Records without a date are dropped, and of two records sharing a date the
// later one in the slice wins. Out-of-order records are first stably sorted
// so insertion order still decides between duplicates. Returns true if the
// records changed. LastUpdate is left alone since no quotes were fetched.
//
// Merge already keeps records unique; this is a maintenance pass only.
func (e *Engine) RemoveDuplicates(h *models.History) bool {
	changed := false
	byDate := func(a, b models.QuoteRecord) int { return a.Date.Compare(b.Date) }
	if !slices.IsSortedFunc(h.Records, byDate) {
		slices.SortStableFunc(h.Records, byDate)
		changed = true
	}

	remove := make([]bool, len(h.Records))
	removed := 0
	for i, r := range h.Records {
		if r.Date.IsZero() {
			remove[i] = true
		}
		if i > 0 && h.Records[i-1].Date.Equal(r.Date) {
			remove[i-1] = true
		}
	}

	kept := h.Records[:0]
	for i, r := range h.Records {
		if remove[i] {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	h.Records = kept

	if removed > 0 {
		e.logger.Info().
			Str("symbol", h.Symbol).
			Int("removed", removed).
			Msg("Removed duplicate or undated records")
		changed = true
	}
	return changed
}
