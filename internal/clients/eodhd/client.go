// Package eodhd provides a QuoteProvider backed by the EODHD end-of-day API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/pricehistory/internal/calendar"
	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements interfaces.QuoteProvider over EODHD
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit; zero or less disables it
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), max(int(requestsPerSecond), 1))
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// GetDailyQuotes retrieves daily bars for symbol within r and rescales them
// by the adjusted close so every price is split-adjusted. A 404 is reported
// as interfaces.ErrSymbolNotFound.
func (c *Client) GetDailyQuotes(ctx context.Context, symbol string, r models.DateRange) ([]models.QuoteRecord, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !r.Start.IsZero() {
		params.Set("from", r.Start.Format("2006-01-02"))
	}
	if !r.End.IsZero() {
		params.Set("to", r.End.Format("2006-01-02"))
	}

	path := fmt.Sprintf("/eod/%s", url.PathEscape(symbol))

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", symbol, interfaces.ErrSymbolNotFound)
		}
		return nil, err
	}

	downloaded := c.now().UTC()
	quotes := make([]models.QuoteRecord, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Str("date", bar.Date).Msg("Skipping bar with unparseable date")
			continue
		}
		quotes = append(quotes, adjust(bar, calendar.Date(date), downloaded))
	}
	return quotes, nil
}

// adjust converts a raw bar to a split-adjusted quote using the ratio of the
// adjusted close to the close. Volume scales inversely.
func adjust(bar eodBarResponse, date, downloaded time.Time) models.QuoteRecord {
	ratio := 1.0
	if bar.Close != 0 && bar.AdjustedClose != 0 {
		ratio = float64(bar.AdjustedClose) / float64(bar.Close)
	}
	volume := float64(bar.Volume)
	if ratio != 0 {
		volume /= ratio
	}
	return models.QuoteRecord{
		Date:       date,
		Open:       float64(bar.Open) * ratio,
		High:       float64(bar.High) * ratio,
		Low:        float64(bar.Low) * ratio,
		Close:      float64(bar.Close) * ratio,
		Volume:     int64(volume + 0.5),
		Downloaded: downloaded,
	}
}

// Compile-time check
var _ interfaces.QuoteProvider = (*Client)(nil)
