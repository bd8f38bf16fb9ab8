// Package finnhub proxies market news and company profiles from Finnhub.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://finnhub.io/api/v1"
	DefaultTimeout = 15 * time.Second
)

// Client implements domain.NewsFetcher and domain.LogoFetcher.
// An empty API key is reported per call as domain.ErrMissingAPIKey.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
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

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log.With().Str("client", "finnhub").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-200 response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// GetMarketNews returns general market news for category, passed through untouched
func (c *Client) GetMarketNews(ctx context.Context, category string) (json.RawMessage, error) {
	if category == "" {
		category = "general"
	}
	params := url.Values{}
	params.Set("category", category)
	return c.get(ctx, "/news", params)
}

// GetCompanyNews returns news for symbol between from and to (YYYY-MM-DD)
func (c *Client) GetCompanyNews(ctx context.Context, symbol, from, to string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("from", from)
	params.Set("to", to)
	return c.get(ctx, "/company-news", params)
}

// GetLogoURL returns the logo from the company profile; empty when Finnhub has none
func (c *Client) GetLogoURL(ctx context.Context, symbol string) (string, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	raw, err := c.get(ctx, "/stock/profile2", params)
	if err != nil {
		return "", err
	}

	var profile struct {
		Logo string `json:"logo"`
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return "", fmt.Errorf("failed to parse profile: %w", err)
	}
	return profile.Logo, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("FINNHUB_API_KEY: %w", domain.ErrMissingAPIKey)
	}

	c.log.Debug().Str("endpoint", path).Str("params", params.Encode()).Msg("Calling Finnhub")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Finnhub-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Endpoint: path}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON from %s", path)
	}
	return json.RawMessage(body), nil
}

// stripURL drops the request URL from transport errors so callers never
// echo upstream addresses back to clients
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
