// Package portfolio manages user portfolios, their positions and live valuations.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Valuation is a portfolio's holdings valued at live prices plus totals
// over the holdings whose price was available
type Valuation struct {
	Holdings      []domain.Holding `json:"holdings"`
	TotalValue    float64          `json:"total_value"`
	TotalCost     float64          `json:"total_cost"`
	TotalReturn   float64          `json:"total_return"`
	ReturnPercent float64          `json:"return_percent"`
	Priced        int              `json:"priced"`
}

// PositionInput is the user payload for adding or replacing a position
type PositionInput struct {
	TickerSymbol string  `json:"ticker_symbol"`
	CompanyName  string  `json:"company_name"`
	Shares       float64 `json:"shares"`
	AveragePrice float64 `json:"average_price"`
}

// Service orchestrates portfolio operations and valuations
type Service struct {
	repo   *Repository
	quotes domain.QuoteFetcher
	events *events.Manager
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a portfolio service. eventManager may be nil.
func NewService(repo *Repository, quotes domain.QuoteFetcher, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		quotes: quotes,
		events: eventManager,
		now:    time.Now,
		log:    log.With().Str("service", "portfolio").Logger(),
	}
}

// Create creates a portfolio for userID
func (s *Service) Create(ctx context.Context, userID, name string, description *string) (*domain.Portfolio, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if description != nil && strings.TrimSpace(*description) == "" {
		description = nil
	}

	p, err := s.repo.CreatePortfolio(ctx, userID, name, description, s.now())
	if err != nil {
		return nil, err
	}

	s.events.EmitTyped("portfolio", &events.PortfolioCreatedData{PortfolioID: p.ID, UserID: userID, Name: p.Name})
	return p, nil
}

// List returns the user's portfolios; empty for anonymous callers
func (s *Service) List(ctx context.Context, userID string) ([]domain.Portfolio, error) {
	if userID == "" {
		return []domain.Portfolio{}, nil
	}
	return s.repo.ListPortfolios(ctx, userID)
}

// Positions returns the positions of a portfolio owned by userID
func (s *Service) Positions(ctx context.Context, userID, portfolioID string) ([]domain.Position, error) {
	if _, err := s.repo.GetPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListPositions(ctx, portfolioID)
}

// SetPosition adds or replaces a position in a portfolio owned by userID
func (s *Service) SetPosition(ctx context.Context, userID, portfolioID string, in PositionInput) (*domain.Position, error) {
	if _, err := s.repo.GetPortfolio(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	ticker := strings.ToUpper(strings.TrimSpace(in.TickerSymbol))
	switch {
	case ticker == "":
		return nil, fmt.Errorf("%w: ticker_symbol is required", domain.ErrInvalidInput)
	case in.Shares <= 0:
		return nil, fmt.Errorf("%w: shares must be positive", domain.ErrInvalidInput)
	case in.AveragePrice < 0:
		return nil, fmt.Errorf("%w: average_price must not be negative", domain.ErrInvalidInput)
	}

	pos := domain.Position{
		PortfolioID:  portfolioID,
		TickerSymbol: ticker,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		Shares:       in.Shares,
		AveragePrice: in.AveragePrice,
		UpdatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := s.repo.UpsertPosition(ctx, pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// RemovePosition deletes a position from a portfolio owned by userID
func (s *Service) RemovePosition(ctx context.Context, userID, portfolioID, ticker string) error {
	if _, err := s.repo.GetPortfolio(ctx, userID, portfolioID); err != nil {
		return err
	}
	return s.repo.DeletePosition(ctx, portfolioID, ticker)
}

// Holdings values every position at its live price. Prices are fetched in
// parallel; a failed fetch leaves that holding unpriced rather than failing
// the whole valuation.
func (s *Service) Holdings(ctx context.Context, userID, portfolioID string) (*Valuation, error) {
	positions, err := s.Positions(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	prices := s.fetchPrices(ctx, positions)

	v := &Valuation{Holdings: make([]domain.Holding, 0, len(positions))}
	totalValue, totalCost := decimal.Zero, decimal.Zero
	for _, pos := range positions {
		price, ok := prices[pos.TickerSymbol]
		h := ValueHolding(pos, price, ok)
		v.Holdings = append(v.Holdings, h)

		if ok {
			v.Priced++
			totalValue = totalValue.Add(decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(price)))
			totalCost = totalCost.Add(decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(pos.AveragePrice)))
		}
	}

	totalReturn := totalValue.Sub(totalCost)
	v.TotalValue = totalValue.Round(2).InexactFloat64()
	v.TotalCost = totalCost.Round(2).InexactFloat64()
	v.TotalReturn = totalReturn.Round(2).InexactFloat64()
	if !totalCost.IsZero() {
		v.ReturnPercent = totalReturn.Div(totalCost).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return v, nil
}

// ValueHolding derives a holding from a position and its current price.
// When the price is unavailable the holding carries zero price, value and return.
func ValueHolding(pos domain.Position, price float64, available bool) domain.Holding {
	h := domain.Holding{
		TickerSymbol:   pos.TickerSymbol,
		CompanyName:    pos.CompanyName,
		Shares:         pos.Shares,
		AveragePrice:   pos.AveragePrice,
		PriceAvailable: available,
	}
	if !available {
		return h
	}

	shares := decimal.NewFromFloat(pos.Shares)
	current := decimal.NewFromFloat(price)
	cost := shares.Mul(decimal.NewFromFloat(pos.AveragePrice))
	value := shares.Mul(current)
	ret := value.Sub(cost)

	h.CurrentPrice = price
	h.TotalValue = value.Round(2).InexactFloat64()
	h.TotalReturn = ret.Round(2).InexactFloat64()
	if !cost.IsZero() {
		h.ReturnPercent = ret.Div(cost).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return h
}

func (s *Service) fetchPrices(ctx context.Context, positions []domain.Position) map[string]float64 {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		prices = make(map[string]float64, len(positions))
	)

	for _, pos := range positions {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			q, err := s.quotes.GetQuote(ctx, symbol)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price unavailable")
				return
			}

			mu.Lock()
			prices[symbol] = q.Price
			mu.Unlock()
		}(pos.TickerSymbol)
	}
	wg.Wait()

	return prices
}
