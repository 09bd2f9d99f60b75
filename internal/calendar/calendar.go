// Package calendar classifies calendar days as US exchange trading days.
//
// A day is a work day when it falls on a weekday that is not a standard
// exchange holiday. A work day is a market-open day when it is also absent
// from the exceptional closure table and from any symbol-specific closures.
// All dates are handled as UTC midnight; see Date.
package calendar

import (
	"slices"
	"time"
)

// knownClosures lists unscheduled full-day closures that no holiday rule
// produces. Built once at init and never mutated.
var knownClosures = map[time.Time]struct{}{}

func init() {
	for _, s := range []string{
		"1977-07-14", // New York City blackout
		"1985-09-27", // Hurricane Gloria
		"1994-04-27", // President Nixon funeral
		"2001-09-11", // September 11 attacks
		"2001-09-12",
		"2001-09-13",
		"2001-09-14",
		"2004-06-11", // President Reagan funeral
		"2007-01-02", // President Ford mourning
		"2012-10-29", // Hurricane Sandy
		"2012-10-30",
		"2018-12-05", // President G.H.W. Bush mourning
		"2025-01-09", // President Carter mourning
	} {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			panic("calendar: bad closure date " + s)
		}
		knownClosures[Date(d)] = struct{}{}
	}
}

// Date strips the time of day, returning midnight UTC of t's calendar day
// in t's own location. The zero time stays zero.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsKnownClosure reports whether d is in the exceptional closure table
func IsKnownClosure(d time.Time) bool {
	_, ok := knownClosures[Date(d)]
	return ok
}

// KnownClosures returns the exceptional closure dates in ascending order
func KnownClosures() []time.Time {
	out := make([]time.Time, 0, len(knownClosures))
	for d := range knownClosures {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// IsWorkDay returns true for weekdays that are not exchange holidays
func IsWorkDay(d time.Time) bool {
	d = Date(d)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsHoliday(d)
}

// IsMarketOpen returns true when d is a work day, not a known closure, and
// not in the symbol-specific closures.
func IsMarketOpen(d time.Time, additional []time.Time) bool {
	d = Date(d)
	if !IsWorkDay(d) || IsKnownClosure(d) {
		return false
	}
	return !containsDate(additional, d)
}

// NextMarketOpenDate returns the first market-open day strictly after d
func NextMarketOpenDate(d time.Time, additional []time.Time) time.Time {
	n := nextWorkDay(Date(d))
	for !IsMarketOpen(n, additional) {
		n = nextWorkDay(n)
	}
	return n
}

// PreviousMarketOpenDate returns the last market-open day strictly before d
func PreviousMarketOpenDate(d time.Time, additional []time.Time) time.Time {
	p := previousWorkDay(Date(d))
	for !IsMarketOpen(p, additional) {
		p = previousWorkDay(p)
	}
	return p
}

// MostRecentTradingDay returns now's date if the market opens that day,
// otherwise the previous market-open day.
func MostRecentTradingDay(now time.Time, additional []time.Time) time.Time {
	d := Date(now)
	if IsMarketOpen(d, additional) {
		return d
	}
	return PreviousMarketOpenDate(d, additional)
}

func nextWorkDay(d time.Time) time.Time {
	n := d.AddDate(0, 0, 1)
	for !IsWorkDay(n) {
		n = n.AddDate(0, 0, 1)
	}
	return n
}

func previousWorkDay(d time.Time) time.Time {
	p := d.AddDate(0, 0, -1)
	for !IsWorkDay(p) {
		p = p.AddDate(0, 0, -1)
	}
	return p
}

func containsDate(dates []time.Time, d time.Time) bool {
	return slices.ContainsFunc(dates, func(c time.Time) bool {
		return Date(c).Equal(d)
	})
}
