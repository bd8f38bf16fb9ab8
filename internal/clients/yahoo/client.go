// Package yahoo provides quotes and daily history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// ErrNoResult is returned when the chart response has no series.
// It matches domain.ErrNotFound.
var ErrNoResult = fmt.Errorf("yahoo: no result: %w", domain.ErrNotFound)

// Client fetches chart data. It implements domain.QuoteFetcher and domain.HistoryFetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo chart client
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        log.With().Str("client", "yahoo").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-200 response
type APIError struct {
	StatusCode int
	Symbol     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// Unwrap maps unknown symbols to domain.ErrNotFound
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		ShortName          string  `json:"shortName"`
		LongName           string  `json:"longName"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
		PreviousClose      float64 `json:"previousClose"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			// nulls appear for halted sessions
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// GetQuote returns the latest price and day change for symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	r, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	price := r.Meta.RegularMarketPrice
	if price <= 0 {
		if closes := closesOf(r); len(closes) > 0 {
			price = closes[len(closes)-1].Close
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("no price for %s: %w", symbol, ErrNoResult)
	}

	prev := r.Meta.PreviousClose
	if prev <= 0 {
		prev = r.Meta.ChartPreviousClose
	}

	q := &domain.Quote{
		Symbol:        strings.ToUpper(symbol),
		Name:          firstNonEmpty(r.Meta.LongName, r.Meta.ShortName, strings.ToUpper(symbol)),
		Currency:      r.Meta.Currency,
		Price:         price,
		PreviousClose: prev,
		AsOf:          time.Unix(r.Meta.RegularMarketTime, 0).UTC(),
	}
	if prev > 0 {
		q.Change = price - prev
		q.ChangePercent = q.Change / prev * 100
	}
	return q, nil
}

// GetHistory returns daily closes over period (e.g. "1mo", "3mo", "1y"), oldest first
func (c *Client) GetHistory(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	if period == "" {
		period = "3mo"
	}
	r, err := c.chart(ctx, symbol, period, "1d")
	if err != nil {
		return nil, err
	}
	return closesOf(r), nil
}

func (c *Client) chart(ctx context.Context, symbol, rangeParam, interval string) (*chartResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", domain.ErrInvalidInput)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("range", rangeParam)
	params.Set("interval", interval)
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "compass/1.0")

	c.log.Debug().Str("symbol", symbol).Str("range", rangeParam).Msg("Fetching chart")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var raw chartResponse
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &raw) == nil && raw.Chart.Error != nil {
			msg = raw.Chart.Error.Description
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Symbol: symbol, Message: msg}
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(raw.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoResult)
	}
	return &raw.Chart.Result[0], nil
}

func closesOf(r *chartResult) []domain.PricePoint {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close

	points := make([]domain.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: *closes[i],
		})
	}
	return points
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
