package history

import (
	"slices"
	"testing"
	"time"

	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Friday evening; one-year lookback stops at 2023-06-07 (a Wednesday)
var gapNow = time.Date(2024, 6, 7, 21, 0, 0, 0, time.UTC)

// completeHistory returns a history holding every open day from start to end
// except the listed days.
func completeHistory(start, end time.Time, except ...string) *models.History {
	h := models.NewHistory("AAPL")
	skip := make(map[time.Time]bool)
	for _, s := range except {
		skip[day(s)] = true
	}
	for _, d := range openDays(start, end) {
		if skip[d] {
			continue
		}
		h.Records = append(h.Records, models.QuoteRecord{Date: d, Close: 100})
	}
	return h
}

func TestMissingRanges_EmptyHistory(t *testing.T) {
	e := newTestEngine(gapNow)
	got := slices.Collect(e.MissingRanges(models.NewHistory("AAPL"), 1))
	assert.Equal(t, []models.DateRange{{Start: day("2023-06-07"), End: day("2024-06-07")}}, got)
}

func TestMissingRanges_EmptyHistoryStopDateOnClosure(t *testing.T) {
	// One year before 2025-01-15 is Martin Luther King Jr. Day 2024
	e := newTestEngine(day("2025-01-15"))
	got := e.PlanFetch(models.NewHistory("AAPL"), 1)
	assert.Equal(t, []models.DateRange{{Start: day("2024-01-16"), End: day("2025-01-15")}}, got)
}

func TestMissingRanges_EmptyHistoryOnWeekend(t *testing.T) {
	e := newTestEngine(day("2024-06-09"))
	got := e.PlanFetch(models.NewHistory("AAPL"), 1)
	require.Len(t, got, 1)
	assert.Equal(t, day("2024-06-07"), got[0].End)
}

func TestMissingRanges_CompleteHistory(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-07"))
	assert.Empty(t, e.PlanFetch(h, 1))
}

func TestMissingRanges_StaleTail(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-03"))
	assert.Equal(t, []models.DateRange{{Start: day("2024-06-03"), End: day("2024-06-07")}}, e.PlanFetch(h, 1))
}

func TestMissingRanges_ShortHistoryNeedsBackfill(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2024-01-02"), day("2024-06-07"))
	assert.Equal(t, []models.DateRange{{Start: day("2023-06-07"), End: day("2023-12-29")}}, e.PlanFetch(h, 1))
}

func TestMissingRanges_EarliestTimeLimitsBackfill(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2024-01-02"), day("2024-06-07"))
	listed := day("2024-01-02")
	h.EarliestTime = &listed
	assert.Empty(t, e.PlanFetch(h, 1))
}

func TestMissingRanges_NotFoundYieldsNothing(t *testing.T) {
	e := newTestEngine(gapNow)
	h := models.NewHistory("ZZZZ")
	h.NotFound = true
	assert.Empty(t, slices.Collect(e.MissingRanges(h, 1)))
}

func TestMissingRanges_SkipsFutureRecords(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-07"))
	h.Records = append(h.Records, models.QuoteRecord{Date: day("2024-06-12"), Close: 1})
	assert.Empty(t, e.PlanFetch(h, 1))
}

func TestMissingRanges_NearbyGapsConsolidate(t *testing.T) {
	e := newTestEngine(gapNow)
	// Gaps [05-28, 05-29] and [06-03, 06-04] are 5 days apart
	h := completeHistory(day("2023-06-07"), day("2024-06-07"), "2024-06-04", "2024-05-29")
	assert.Equal(t, []models.DateRange{{Start: day("2024-05-28"), End: day("2024-06-04")}}, e.PlanFetch(h, 1))
}

func TestMissingRanges_DistantGapsStaySeparate(t *testing.T) {
	e := newTestEngine(gapNow)
	// Gaps [05-21, 05-22] and [06-03, 06-04] are 12 days apart
	h := completeHistory(day("2023-06-07"), day("2024-06-07"), "2024-06-04", "2024-05-22")
	assert.Equal(t, []models.DateRange{
		{Start: day("2024-06-03"), End: day("2024-06-04")},
		{Start: day("2024-05-21"), End: day("2024-05-22")},
	}, e.PlanFetch(h, 1))
}

func TestMissingRanges_TooManyRangesCollapse(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-07"),
		"2024-06-05", "2024-05-22", "2024-05-08", "2024-04-24", "2024-04-10", "2024-03-27")
	assert.Equal(t, []models.DateRange{{Start: day("2023-06-07"), End: day("2024-06-05")}}, e.PlanFetch(h, 1))
}

func TestMissingRanges_FiveRangesKept(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-07"),
		"2024-06-05", "2024-05-22", "2024-05-08", "2024-04-24", "2024-04-10")
	got := e.PlanFetch(h, 1)
	require.Len(t, got, 5)
	assert.Equal(t, day("2024-06-05"), got[0].End)
	assert.Equal(t, day("2024-04-09"), got[4].Start)
}

func TestMissingRanges_ScanCapStopsEarly(t *testing.T) {
	e := newTestEngine(gapNow)
	var except []string
	for d := day("2024-06-05"); d.After(day("2023-09-01")); d = d.AddDate(0, 0, -14) {
		except = append(except, d.Format("2006-01-02"))
	}
	h := completeHistory(day("2023-06-07"), day("2024-06-07"), except...)
	got := e.PlanFetch(h, 1)
	assert.Equal(t, []models.DateRange{{Start: day("2023-06-07"), End: day("2024-06-05")}}, got)
}

func TestMissingRanges_RecomputedPerIteration(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-03"))
	seq := e.MissingRanges(h, 1)
	require.Len(t, slices.Collect(seq), 1)

	for _, d := range []string{"2024-06-04", "2024-06-05", "2024-06-06", "2024-06-07"} {
		e.Merge(h, quote(d, 100), nil)
	}
	assert.Empty(t, slices.Collect(seq))
}

func TestMissingRanges_StopsWhenYieldReturnsFalse(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2023-06-07"), day("2024-06-07"), "2024-06-04", "2024-05-22")
	n := 0
	for range e.MissingRanges(h, 1) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestConsolidate(t *testing.T) {
	r := func(s, e string) models.DateRange { return models.DateRange{Start: day(s), End: day(e)} }
	tests := []struct {
		name string
		in   []models.DateRange
		want []models.DateRange
	}{
		{"empty", nil, nil},
		{"six days apart merge", []models.DateRange{r("2024-06-10", "2024-06-11"), r("2024-06-01", "2024-06-04")},
			[]models.DateRange{r("2024-06-01", "2024-06-11")}},
		{"eight days apart stay", []models.DateRange{r("2024-06-12", "2024-06-13"), r("2024-06-01", "2024-06-04")},
			[]models.DateRange{r("2024-06-12", "2024-06-13"), r("2024-06-01", "2024-06-04")}},
		{"chain merges", []models.DateRange{r("2024-06-20", "2024-06-21"), r("2024-06-15", "2024-06-17"), r("2024-06-10", "2024-06-12")},
			[]models.DateRange{r("2024-06-10", "2024-06-21")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, consolidate(tt.in))
		})
	}
}
