// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DecisionDateLayout is the calendar-date format of Decision.DecisionDate
const DecisionDateLayout = "2006-01-02"

// DecisionAction is the side of a recorded trade decision
type DecisionAction string

const (
	ActionBuy  DecisionAction = "buy"
	ActionSell DecisionAction = "sell"
)

// Valid reports whether the action is buy or sell
func (a DecisionAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Emotional state bounds (1 = calm, 10 = highly agitated)
const (
	MinEmotionalState = 1
	MaxEmotionalState = 10
)

// User is an authenticated account
type User struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Email     string    `json:"email"`
}

// Decision is a recorded trade intent annotated with self-assessed rationality signals.
// Decisions are immutable once created.
type Decision struct {
	CreatedAt       time.Time      `json:"created_at"`
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	TickerSymbol    string         `json:"ticker_symbol"`
	Action          DecisionAction `json:"action"`
	DecisionDate    string         `json:"decision_date"`
	Shares          float64        `json:"shares"`
	PricePerShare   float64        `json:"price_per_share"`
	EmotionalState  int            `json:"emotional_state"`
	FollowedPlan    bool           `json:"followed_plan"`
	DidResearch     bool           `json:"did_research"`
	CheckedEmotions bool           `json:"checked_emotions"`
}

// IsRational reports whether all three discipline flags are set
func (d Decision) IsRational() bool {
	return d.FollowedPlan && d.DidResearch && d.CheckedEmotions
}

// DecisionInput is the user-submitted payload for a new decision
type DecisionInput struct {
	TickerSymbol    string         `json:"ticker_symbol"`
	Action          DecisionAction `json:"action"`
	DecisionDate    string         `json:"decision_date,omitempty"`
	Shares          float64        `json:"shares"`
	PricePerShare   float64        `json:"price_per_share"`
	EmotionalState  int            `json:"emotional_state"`
	FollowedPlan    bool           `json:"followed_plan"`
	DidResearch     bool           `json:"did_research"`
	CheckedEmotions bool           `json:"checked_emotions"`
}

// Normalize upper-cases the ticker and defaults the decision date to today
func (in *DecisionInput) Normalize(now time.Time) {
	in.TickerSymbol = strings.ToUpper(strings.TrimSpace(in.TickerSymbol))
	in.Action = DecisionAction(strings.ToLower(strings.TrimSpace(string(in.Action))))
	if in.DecisionDate == "" {
		in.DecisionDate = now.Format(DecisionDateLayout)
	}
}

// Validate checks the input against the decision invariants
func (in DecisionInput) Validate() error {
	if in.TickerSymbol == "" {
		return fmt.Errorf("%w: ticker_symbol is required", ErrInvalidInput)
	}
	if !in.Action.Valid() {
		return fmt.Errorf("%w: action must be buy or sell, got %q", ErrInvalidInput, in.Action)
	}
	if in.Shares <= 0 {
		return fmt.Errorf("%w: shares must be positive", ErrInvalidInput)
	}
	if in.PricePerShare <= 0 {
		return fmt.Errorf("%w: price_per_share must be positive", ErrInvalidInput)
	}
	if in.EmotionalState < MinEmotionalState || in.EmotionalState > MaxEmotionalState {
		return fmt.Errorf("%w: emotional_state must be between %d and %d", ErrInvalidInput, MinEmotionalState, MaxEmotionalState)
	}
	if _, err := time.Parse(DecisionDateLayout, in.DecisionDate); err != nil {
		return fmt.Errorf("%w: decision_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return nil
}

// WeeklyStats summarizes the decisions recorded in the trailing seven days
type WeeklyStats struct {
	TotalDecisions        int     `json:"totalDecisions"`
	RationalDecisions     int     `json:"rationalDecisions"`
	RationalPercentage    int     `json:"rationalPercentage"`
	AverageEmotionalState float64 `json:"averageEmotionalState"`
}

// Portfolio is a named container of positions
type Portfolio struct {
	CreatedAt   time.Time `json:"created_at"`
	Description *string   `json:"description"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
}

// Position is the persisted share count and cost basis of one ticker in a portfolio
type Position struct {
	UpdatedAt    time.Time `json:"updated_at"`
	PortfolioID  string    `json:"portfolio_id"`
	TickerSymbol string    `json:"ticker_symbol"`
	CompanyName  string    `json:"company_name"`
	Shares       float64   `json:"shares"`
	AveragePrice float64   `json:"average_price"`
}

// Holding is a position valued at the live price. It is derived, never persisted.
type Holding struct {
	TickerSymbol   string  `json:"ticker_symbol"`
	CompanyName    string  `json:"company_name"`
	Shares         float64 `json:"shares"`
	AveragePrice   float64 `json:"average_price"`
	CurrentPrice   float64 `json:"current_price"`
	TotalValue     float64 `json:"total_value"`
	TotalReturn    float64 `json:"total_return"`
	ReturnPercent  float64 `json:"return_percent"`
	PriceAvailable bool    `json:"price_available"`
}

// IndexData is a snapshot of one market index
type IndexData struct {
	Symbol        string  `json:"symbol" msgpack:"symbol"`
	Name          string  `json:"name" msgpack:"name"`
	Price         float64 `json:"price" msgpack:"price"`
	Change        float64 `json:"change" msgpack:"change"`
	ChangePercent float64 `json:"change_percent" msgpack:"change_percent"`
}

// Quote is the latest price of a tradable symbol or index
type Quote struct {
	AsOf          time.Time `json:"as_of"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Currency      string    `json:"currency"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
}

// PricePoint is a daily close
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// StockCard is the per-symbol dashboard card: quote, logo and technical context
type StockCard struct {
	Quote        Quote        `json:"quote"`
	LogoURL      *string      `json:"logo_url"`
	RSI14        *float64     `json:"rsi_14"`
	SMA20        *float64     `json:"sma_20"`
	Volatility30 *float64     `json:"volatility_30"`
	History      []PricePoint `json:"history"`
}
