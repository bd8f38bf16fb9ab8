package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// Common errors shared across modules
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrMissingAPIKey   = errors.New("API key not configured")
)

// QuoteFetcher returns the latest quote for a symbol.
// Implemented by the Yahoo client (server side) and the API client (CLI side).
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// HistoryFetcher returns daily closes for a symbol over a range such as "3mo"
type HistoryFetcher interface {
	GetHistory(ctx context.Context, symbol, period string) ([]PricePoint, error)
}

// ContentGenerator produces free text (commentary) from a prompt
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// NewsFetcher proxies market news. Payloads are passed through untouched.
type NewsFetcher interface {
	GetMarketNews(ctx context.Context, category string) (json.RawMessage, error)
	GetCompanyNews(ctx context.Context, symbol, from, to string) (json.RawMessage, error)
}

// LogoFetcher resolves a company logo URL for a ticker
type LogoFetcher interface {
	GetLogoURL(ctx context.Context, symbol string) (string, error)
}
