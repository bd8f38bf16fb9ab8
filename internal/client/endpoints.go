package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/functions"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/aristath/compass/internal/modules/portfolio"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates an account and keeps its token
func (c *Client) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	var s auth.Session
	if err := c.post(ctx, "/auth/v1/signup", credentials{email, password}, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.AccessToken)
	return &s, nil
}

// SignIn exchanges credentials for a session and keeps its token
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var s auth.Session
	if err := c.post(ctx, "/auth/v1/token", credentials{email, password}, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.AccessToken)
	return &s, nil
}

// CurrentUser returns the signed-in user, or nil when anonymous
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var resp struct {
		User *domain.User `json:"user"`
	}
	return resp.User, c.get(ctx, "/auth/v1/user", nil, &resp)
}

// Decisions lists the caller's decisions, newest first. limit <= 0 means all.
func (c *Client) Decisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var list []domain.Decision
	return list, c.get(ctx, "/api/decisions", params, &list)
}

// CreateDecision records a decision
func (c *Client) CreateDecision(ctx context.Context, in domain.DecisionInput) (*domain.Decision, error) {
	var d domain.Decision
	if err := c.post(ctx, "/api/decisions", in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// WeeklyStats returns the caller's stats over the trailing seven days
func (c *Client) WeeklyStats(ctx context.Context) (domain.WeeklyStats, error) {
	var s domain.WeeklyStats
	return s, c.get(ctx, "/api/decisions/stats/weekly", nil, &s)
}

// Portfolios lists the caller's portfolios
func (c *Client) Portfolios(ctx context.Context) ([]domain.Portfolio, error) {
	var list []domain.Portfolio
	return list, c.get(ctx, "/api/portfolios", nil, &list)
}

// CreatePortfolio creates a portfolio
func (c *Client) CreatePortfolio(ctx context.Context, name, description string) (*domain.Portfolio, error) {
	body := map[string]string{"name": name, "description": description}
	var p domain.Portfolio
	if err := c.post(ctx, "/api/portfolios", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPosition adds or replaces a position
func (c *Client) SetPosition(ctx context.Context, portfolioID string, in portfolio.PositionInput) (*domain.Position, error) {
	var pos domain.Position
	path := "/api/portfolios/" + url.PathEscape(portfolioID) + "/positions"
	if err := c.post(ctx, path, in, &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// Holdings returns priced holdings and totals for a portfolio
func (c *Client) Holdings(ctx context.Context, portfolioID string) (*portfolio.Valuation, error) {
	var v portfolio.Valuation
	path := "/api/portfolios/" + url.PathEscape(portfolioID) + "/holdings"
	if err := c.get(ctx, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Indices returns the index board snapshot
func (c *Client) Indices(ctx context.Context) (*market.Snapshot, error) {
	var s market.Snapshot
	if err := c.get(ctx, "/api/market/indices", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// StockCard returns quote, logo and indicators for symbol
func (c *Client) StockCard(ctx context.Context, symbol string) (*domain.StockCard, error) {
	var card domain.StockCard
	if err := c.get(ctx, "/api/stocks/"+url.PathEscape(symbol)+"/card", nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Commentary fetches commentary of kind; symbol is required for stock commentary
func (c *Client) Commentary(ctx context.Context, kind, symbol string) (*commentary.Commentary, error) {
	var path string
	switch kind {
	case commentary.KindMarket:
		path = "/api/commentary/market"
	case commentary.KindStock:
		if symbol == "" {
			return nil, fmt.Errorf("symbol is required: %w", domain.ErrInvalidInput)
		}
		path = "/api/commentary/stocks/" + url.PathEscape(symbol)
	case commentary.KindCoach:
		path = "/api/commentary/coach"
	default:
		return nil, fmt.Errorf("unknown commentary kind %q: %w", kind, domain.ErrInvalidInput)
	}

	var out commentary.Commentary
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarketNews invokes market-news with action general
func (c *Client) MarketNews(ctx context.Context, category string) (json.RawMessage, error) {
	return c.news(ctx, functions.Request{Action: functions.ActionGeneral, Category: category})
}

// CompanyNews invokes market-news with action company; from and to are YYYY-MM-DD
func (c *Client) CompanyNews(ctx context.Context, symbol, from, to string) (json.RawMessage, error) {
	return c.news(ctx, functions.Request{Action: functions.ActionCompany, Symbol: symbol, From: from, To: to})
}

func (c *Client) news(ctx context.Context, req functions.Request) (json.RawMessage, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.invoke(ctx, functions.MarketNews, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// LogoURL invokes company-logo. A nil result means no logo is known.
func (c *Client) LogoURL(ctx context.Context, symbol string) (*string, error) {
	var resp struct {
		LogoURL *string `json:"logoUrl"`
	}
	req := functions.Request{Action: functions.ActionLogo, Symbol: symbol}
	if err := c.invoke(ctx, functions.CompanyLogo, req, &resp); err != nil {
		return nil, err
	}
	return resp.LogoURL, nil
}

// ErrFunction marks a function that ran and reported an error
var ErrFunction = errors.New("function failed")

// invoke posts to /functions/v1/{name}; a 500 {error} body becomes ErrFunction
func (c *Client) invoke(ctx context.Context, name string, req functions.Request, target any) error {
	err := c.post(ctx, "/functions/v1/"+url.PathEscape(name), req, target)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 500 {
		return fmt.Errorf("%s: %s: %w", name, apiErr.Message, ErrFunction)
	}
	return err
}
