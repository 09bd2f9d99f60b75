package calendar

import (
	"sync"
	"time"
)

// holidayCache holds the computed holidays per year; entries are never modified
var holidayCache = struct {
	mu    sync.RWMutex
	years map[int][]time.Time
}{years: make(map[int][]time.Time)}

// cachedHolidays returns the shared holiday slice for year. Callers must not
// modify it.
func cachedHolidays(year int) []time.Time {
	holidayCache.mu.RLock()
	hs, ok := holidayCache.years[year]
	holidayCache.mu.RUnlock()
	if ok {
		return hs
	}

	hs = Holidays(year)
	holidayCache.mu.Lock()
	holidayCache.years[year] = hs
	holidayCache.mu.Unlock()
	return hs
}

// IsHoliday returns true when d is a standard US exchange holiday.
// Rules follow the NYSE schedule: fixed-date holidays move to the nearest
// weekday, except New Year's Day which is not observed on the prior Friday.
func IsHoliday(d time.Time) bool {
	d = Date(d)
	for _, h := range cachedHolidays(d.Year()) {
		if h.Equal(d) {
			return true
		}
	}
	return false
}

// Holidays returns the observed exchange holidays for year, in calendar order.
// The slice is newly allocated on each call.
func Holidays(year int) []time.Time {
	out := make([]time.Time, 0, 10)

	if ny := day(year, time.January, 1); ny.Weekday() == time.Sunday {
		out = append(out, ny.AddDate(0, 0, 1))
	} else if ny.Weekday() != time.Saturday {
		out = append(out, ny)
	}
	if year >= 1998 {
		out = append(out, nthWeekday(year, time.January, time.Monday, 3)) // Martin Luther King Jr. Day
	}
	out = append(out, nthWeekday(year, time.February, time.Monday, 3)) // Washington's Birthday
	out = append(out, easter(year).AddDate(0, 0, -2))                 // Good Friday
	out = append(out, lastWeekday(year, time.May, time.Monday))        // Memorial Day
	if year >= 2022 {
		out = append(out, observed(day(year, time.June, 19))) // Juneteenth
	}
	out = append(out, observed(day(year, time.July, 4)))                 // Independence Day
	out = append(out, nthWeekday(year, time.September, time.Monday, 1))  // Labor Day
	out = append(out, nthWeekday(year, time.November, time.Thursday, 4)) // Thanksgiving
	out = append(out, observed(day(year, time.December, 25)))            // Christmas

	return out
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// observed moves a Saturday holiday to Friday and a Sunday holiday to Monday
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := day(year, month, 1)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := day(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// easter returns Easter Sunday using the anonymous Gregorian algorithm
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	dd := (h+l-7*m+114)%31 + 1
	return day(year, time.Month(month), dd)
}
