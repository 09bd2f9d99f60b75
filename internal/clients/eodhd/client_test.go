package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
)

var testRange = models.DateRange{
	Start: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC),
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestGetDailyQuotes_RequestAndAdjustment(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"from":      r.URL.Query().Get("from"),
			"to":        r.URL.Query().Get("to"),
			"api_token": r.URL.Query().Get("api_token"),
			"order":     r.URL.Query().Get("order"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date": "2024-06-03", "open": 98, "high": 102, "low": 96, "close": 100, "adjusted_close": 50, "volume": 1000},
			{"date": "2024-06-04", "open": "51", "high": "52", "low": "49", "close": "50", "adjusted_close": "50", "volume": "3000"}
		]`))
	})

	quotes, err := client.GetDailyQuotes(context.Background(), "AAPL.US", testRange)
	require.NoError(t, err)

	assert.Equal(t, "/eod/AAPL.US", gotPath)
	assert.Equal(t, "2024-06-03", gotQuery["from"])
	assert.Equal(t, "2024-06-07", gotQuery["to"])
	assert.Equal(t, "test-key", gotQuery["api_token"])
	assert.Equal(t, "a", gotQuery["order"])

	require.Len(t, quotes, 2)
	// 2:1 split: prices halve, volume doubles
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), quotes[0].Date)
	assert.InDelta(t, 49.0, quotes[0].Open, 1e-9)
	assert.InDelta(t, 51.0, quotes[0].High, 1e-9)
	assert.InDelta(t, 48.0, quotes[0].Low, 1e-9)
	assert.InDelta(t, 50.0, quotes[0].Close, 1e-9)
	assert.Equal(t, int64(2000), quotes[0].Volume)
	assert.False(t, quotes[0].Downloaded.IsZero())

	assert.InDelta(t, 50.0, quotes[1].Close, 1e-9)
	assert.Equal(t, int64(3000), quotes[1].Volume)
}

func TestGetDailyQuotes_SkipsBadDates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date": "yesterday", "close": 1}, {"date": "2024-06-05", "close": 2, "adjusted_close": 2}]`))
	})

	quotes, err := client.GetDailyQuotes(context.Background(), "AAPL.US", testRange)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 2.0, quotes[0].Close)
}

func TestGetDailyQuotes_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Ticker Not Found.", http.StatusNotFound)
	})

	_, err := client.GetDailyQuotes(context.Background(), "NOPE.US", testRange)
	assert.True(t, errors.Is(err, interfaces.ErrSymbolNotFound))
}

func TestGetDailyQuotes_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetDailyQuotes(context.Background(), "AAPL.US", testRange)
	require.Error(t, err)
	assert.False(t, errors.Is(err, interfaces.ErrSymbolNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGetDailyQuotes_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDailyQuotes(ctx, "AAPL.US", testRange)
	assert.Error(t, err)
}

func TestGetDailyQuotes_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithTimeout(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, client.httpClient.Timeout)

	_, err := client.GetDailyQuotes(context.Background(), "AAPL.US", testRange)
	require.Error(t, err)
	assert.False(t, errors.Is(err, interfaces.ErrSymbolNotFound))
}

func TestFlexFloat64(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"12.5"`, 12.5},
		{`""`, 0},
		{`"N/A"`, 0},
		{`"garbage"`, 0},
	}
	for _, tt := range tests {
		var f flexFloat64
		require.NoError(t, f.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, float64(f), tt.in)
	}

	var f flexFloat64
	assert.Error(t, f.UnmarshalJSON([]byte(`{}`)))
}
