package history

import (
	"iter"
	"time"

	"github.com/bobmcallan/pricehistory/internal/calendar"
	"github.com/bobmcallan/pricehistory/internal/models"
)

const (
	// maxScanRanges stops the backward scan on long histories with many small gaps.
	maxScanRanges = 10
	// consolidateWithin merges neighbouring ranges separated by less than this.
	consolidateWithin = 7 * 24 * time.Hour
	// maxFetchRanges collapses the plan into one full fetch when exceeded.
	maxFetchRanges = 5
)

// MissingRanges yields the date ranges of h that still need fetching,
// looking back yearsToCheck years from the most recent trading day.
// Ranges are yielded most recent first, with inclusive bounds.
//
// The plan is computed from h's current records each time the sequence is
// ranged over, so it must not be iterated concurrently with a mutation of h.
// Recent gaps are found by scanning backward. Ranges less than a week apart
// are merged, and more than five ranges collapse into a single fetch back to
// the lookback limit.
func (e *Engine) MissingRanges(h *models.History, yearsToCheck int) iter.Seq[models.DateRange] {
	return func(yield func(models.DateRange) bool) {
		for _, r := range e.missingRanges(h, yearsToCheck) {
			if !yield(r) {
				return
			}
		}
	}
}

// PlanFetch returns MissingRanges as a slice.
func (e *Engine) PlanFetch(h *models.History, yearsToCheck int) []models.DateRange {
	return e.missingRanges(h, yearsToCheck)
}

func (e *Engine) missingRanges(h *models.History, yearsToCheck int) []models.DateRange {
	if h.NotFound {
		return nil
	}
	closures := h.AdditionalClosures

	workDay := calendar.MostRecentTradingDay(e.now(), closures)
	stopDate := lookbackStart(workDay, yearsToCheck, closures)
	if h.EarliestTime != nil {
		if earliest := calendar.Date(*h.EarliestTime); earliest.After(stopDate) {
			stopDate = earliest
		}
	}
	if stopDate.After(workDay) {
		return nil
	}

	if len(h.Records) == 0 {
		return []models.DateRange{{Start: stopDate, End: workDay}}
	}

	var ranges []models.DateRange
	for i := len(h.Records) - 1; i >= 0; i-- {
		rec := h.Records[i].Date
		if rec.After(workDay) {
			continue
		}
		if workDay.Before(stopDate) {
			break
		}
		if rec.Before(workDay) {
			ranges = append(ranges, models.DateRange{Start: rec, End: workDay})
			workDay = rec
		}
		workDay = calendar.PreviousMarketOpenDate(workDay, closures)
		if len(ranges) >= maxScanRanges {
			break
		}
	}

	if workDay.After(stopDate) {
		ranges = append(ranges, models.DateRange{Start: stopDate, End: workDay})
	}

	ranges = consolidate(ranges)
	if len(ranges) > maxFetchRanges {
		return []models.DateRange{{Start: stopDate, End: ranges[0].End}}
	}
	return ranges
}

// lookbackStart returns workDay minus years, moved forward onto a market-open day.
func lookbackStart(workDay time.Time, years int, closures []time.Time) time.Time {
	stop := workDay.AddDate(-years, 0, 0)
	if !calendar.IsMarketOpen(stop, closures) {
		stop = calendar.NextMarketOpenDate(stop, closures)
	}
	return stop
}

// consolidate merges adjacent ranges (ordered most recent first) whose
// separation is under consolidateWithin.
func consolidate(ranges []models.DateRange) []models.DateRange {
	for merged := true; merged; {
		merged = false
		for i := 0; i+1 < len(ranges); i++ {
			newer, older := ranges[i], ranges[i+1]
			if newer.Start.Sub(older.End) < consolidateWithin {
				ranges[i].Start = older.Start
				ranges = append(ranges[:i+1], ranges[i+2:]...)
				merged = true
			}
		}
	}
	return ranges
}
