package market

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/compass/internal/domain"
	testhelpers "github.com/aristath/compass/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyOf(n int) []domain.PricePoint {
	points := make([]domain.PricePoint, n)
	for i := range points {
		points[i] = domain.PricePoint{Date: "2026-07-01", Close: 100 + float64(i%5)}
	}
	return points
}

func TestService_QuoteNormalizesSymbol(t *testing.T) {
	quotes := testhelpers.NewMockQuoteFetcher()
	quotes.SetQuote(domain.Quote{Symbol: "AAPL", Price: 230})
	svc := NewService(quotes, quotes, nil, zerolog.Nop())

	q, err := svc.Quote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, 230.0, q.Price)

	_, err = svc.Quote(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Card(t *testing.T) {
	quotes := testhelpers.NewMockQuoteFetcher()
	quotes.SetQuote(domain.Quote{Symbol: "AAPL", Price: 230})
	quotes.SetHistory("AAPL", historyOf(60))
	logos := &testhelpers.MockNewsFetcher{LogoURL: "https://static.example.com/aapl.png"}

	card, err := NewService(quotes, quotes, logos, zerolog.Nop()).Card(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, 230.0, card.Quote.Price)
	require.NotNil(t, card.LogoURL)
	assert.Equal(t, "https://static.example.com/aapl.png", *card.LogoURL)
	assert.Len(t, card.History, 60)
	assert.NotNil(t, card.RSI14)
	assert.NotNil(t, card.SMA20)
	assert.NotNil(t, card.Volatility30)
}

func TestService_CardDegradesWithoutHistoryOrLogo(t *testing.T) {
	quotes := testhelpers.NewMockQuoteFetcher()
	quotes.SetQuote(domain.Quote{Symbol: "NEW", Price: 10})
	logos := &testhelpers.MockNewsFetcher{Err: domain.ErrMissingAPIKey}

	card, err := NewService(quotes, quotes, logos, zerolog.Nop()).Card(context.Background(), "NEW")
	require.NoError(t, err)

	assert.Nil(t, card.LogoURL)
	assert.Empty(t, card.History)
	assert.Nil(t, card.RSI14)
	assert.Nil(t, card.SMA20)
	assert.Nil(t, card.Volatility30)
}

func TestService_CardRequiresQuote(t *testing.T) {
	quotes := testhelpers.NewMockQuoteFetcher()
	quotes.SetError("AAPL", errors.New("upstream down"))

	_, err := NewService(quotes, quotes, nil, zerolog.Nop()).Card(context.Background(), "AAPL")
	assert.Error(t, err)
}
