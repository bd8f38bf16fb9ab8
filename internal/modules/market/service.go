package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
)

// CardHistoryPeriod is the history range shown on the stock card
const CardHistoryPeriod = "3mo"

// Service serves quotes, history and stock cards
type Service struct {
	quotes  domain.QuoteFetcher
	history domain.HistoryFetcher
	logos   domain.LogoFetcher
	log     zerolog.Logger
}

// NewService creates a market service. logos may be nil.
func NewService(quotes domain.QuoteFetcher, history domain.HistoryFetcher, logos domain.LogoFetcher, log zerolog.Logger) *Service {
	return &Service{
		quotes:  quotes,
		history: history,
		logos:   logos,
		log:     log.With().Str("service", "market").Logger(),
	}
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote returns the latest quote for symbol
func (s *Service) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidInput)
	}
	return s.quotes.GetQuote(ctx, symbol)
}

// History returns daily closes for symbol over period
func (s *Service) History(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidInput)
	}
	if period == "" {
		period = CardHistoryPeriod
	}
	return s.history.GetHistory(ctx, symbol, period)
}

// Card builds the stock card. Only the quote is required: missing history or
// logo leave the corresponding fields empty.
func (s *Service) Card(ctx context.Context, symbol string) (*domain.StockCard, error) {
	symbol = NormalizeSymbol(symbol)
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	card := &domain.StockCard{Quote: *q, History: []domain.PricePoint{}}

	history, err := s.history.GetHistory(ctx, symbol, CardHistoryPeriod)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("History unavailable for stock card")
	} else {
		card.History = append(card.History, history...)
		closes := make([]float64, len(history))
		for i, p := range history {
			closes[i] = p.Close
		}
		card.RSI14 = RSI(closes, rsiPeriod)
		card.SMA20 = SMA(closes, smaPeriod)
		card.Volatility30 = Volatility(closes, volatilityWindow)
	}

	if s.logos != nil {
		logo, err := s.logos.GetLogoURL(ctx, symbol)
		switch {
		case err == nil && logo != "":
			card.LogoURL = &logo
		case err != nil && !errors.Is(err, domain.ErrMissingAPIKey):
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Logo unavailable for stock card")
		}
	}

	return card, nil
}
