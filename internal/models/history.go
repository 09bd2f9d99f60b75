// Package models defines data structures for the price history cache
package models

import (
	"time"
)

// QuoteRecord holds one trading day of split-adjusted prices for a symbol
type QuoteRecord struct {
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	Close      float64   `json:"close"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Volume     int64     `json:"volume"`
	Downloaded time.Time `json:"downloaded"`
	// Name is only carried from the provider to the merge; it is promoted
	// to History.Name and cleared on the stored record.
	Name string `json:"name,omitempty"`
}

// History is the locally cached daily series for one symbol.
// Records are kept strictly ascending by Date with no duplicate dates.
type History struct {
	Symbol             string        `json:"symbol"`
	Name               string        `json:"name,omitempty"`
	NotFound           bool          `json:"not_found"`
	LastUpdate         time.Time     `json:"last_update"`
	EarliestTime       *time.Time    `json:"earliest_time,omitempty"`
	AdditionalClosures []time.Time   `json:"additional_closures,omitempty"`
	Records            []QuoteRecord `json:"records"`
}

// NewHistory returns an empty history for symbol
func NewHistory(symbol string) *History {
	return &History{
		Symbol:  symbol,
		Records: []QuoteRecord{},
	}
}

// FirstDate returns the date of the oldest record, or zero when empty
func (h *History) FirstDate() time.Time {
	if len(h.Records) == 0 {
		return time.Time{}
	}
	return h.Records[0].Date
}

// LastDate returns the date of the most recent record, or zero when empty
func (h *History) LastDate() time.Time {
	if len(h.Records) == 0 {
		return time.Time{}
	}
	return h.Records[len(h.Records)-1].Date
}

// DateRange is a span of calendar days. Both Start and End are inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days covered by the range
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// String formats the range as "2006-01-02..2006-01-02"
func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}
