package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aristath/compass/internal/domain"
)

// MockQuoteFetcher is a mock implementation of domain.QuoteFetcher and
// domain.HistoryFetcher for testing
type MockQuoteFetcher struct {
	mu      sync.RWMutex
	quotes  map[string]domain.Quote
	history map[string][]domain.PricePoint
	errs    map[string]error
	calls   map[string]int
}

// NewMockQuoteFetcher creates a new mock quote fetcher
func NewMockQuoteFetcher() *MockQuoteFetcher {
	return &MockQuoteFetcher{
		quotes:  make(map[string]domain.Quote),
		history: make(map[string][]domain.PricePoint),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// SetQuote sets the quote returned for symbol
func (m *MockQuoteFetcher) SetQuote(q domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.Symbol] = q
}

// SetHistory sets the history returned for symbol
func (m *MockQuoteFetcher) SetHistory(symbol string, points []domain.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[symbol] = points
}

// SetError makes every call for symbol fail with err
func (m *MockQuoteFetcher) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// Calls returns how many quote requests were made for symbol
func (m *MockQuoteFetcher) Calls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[symbol]
}

// GetQuote returns the configured quote
func (m *MockQuoteFetcher) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol]++
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s: %w", symbol, domain.ErrNotFound)
	}
	return &q, nil
}

// GetHistory returns the configured history
func (m *MockQuoteFetcher) GetHistory(_ context.Context, symbol, _ string) ([]domain.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	return m.history[symbol], nil
}

// MockContentGenerator is a mock implementation of domain.ContentGenerator for testing
type MockContentGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

// NewMockContentGenerator returns a generator that always answers text
func NewMockContentGenerator(text string) *MockContentGenerator {
	return &MockContentGenerator{text: text}
}

// SetError makes generation fail
func (m *MockContentGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns every prompt received
func (m *MockContentGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// GenerateContent records the prompt and returns the configured text
func (m *MockContentGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// MockNewsFetcher is a mock implementation of domain.NewsFetcher and domain.LogoFetcher
type MockNewsFetcher struct {
	News    json.RawMessage
	LogoURL string
	Err     error
}

// GetMarketNews returns News
func (m *MockNewsFetcher) GetMarketNews(context.Context, string) (json.RawMessage, error) {
	return m.News, m.Err
}

// GetCompanyNews returns News
func (m *MockNewsFetcher) GetCompanyNews(context.Context, string, string, string) (json.RawMessage, error) {
	return m.News, m.Err
}

// GetLogoURL returns LogoURL
func (m *MockNewsFetcher) GetLogoURL(context.Context, string) (string, error) {
	return m.LogoURL, m.Err
}
