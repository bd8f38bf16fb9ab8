package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles portfolio and position database operations on app.db.
// Every read is scoped by the owning user.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// CreatePortfolio inserts a portfolio for userID
func (r *Repository) CreatePortfolio(ctx context.Context, userID, name string, description *string, now time.Time) (*domain.Portfolio, error) {
	p := &domain.Portfolio{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now.UTC().Truncate(time.Millisecond),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO portfolios (id, user_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.UserID, p.Name, nullableString(description), p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert portfolio: %w", err)
	}
	return p, nil
}

// ListPortfolios returns the user's portfolios, oldest first
func (r *Repository) ListPortfolios(ctx context.Context, userID string) ([]domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, name, description, created_at FROM portfolios WHERE user_id = ? ORDER BY created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]domain.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}

// GetPortfolio returns the portfolio if it belongs to userID, domain.ErrNotFound otherwise
func (r *Repository) GetPortfolio(ctx context.Context, userID, id string) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, description, created_at FROM portfolios WHERE id = ? AND user_id = ?",
		id, userID,
	)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// UpsertPosition inserts or replaces the position for (portfolio, ticker)
func (r *Repository) UpsertPosition(ctx context.Context, pos domain.Position) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO positions
		(portfolio_id, ticker_symbol, company_name, shares, average_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, ticker_symbol) DO UPDATE SET
			company_name = excluded.company_name,
			shares = excluded.shares,
			average_price = excluded.average_price,
			updated_at = excluded.updated_at`,
		pos.PortfolioID, pos.TickerSymbol, pos.CompanyName, pos.Shares, pos.AveragePrice, pos.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", pos.TickerSymbol, err)
	}
	return nil
}

// DeletePosition removes a position; it reports domain.ErrNotFound when none existed
func (r *Repository) DeletePosition(ctx context.Context, portfolioID, ticker string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM positions WHERE portfolio_id = ? AND ticker_symbol = ?",
		portfolioID, strings.ToUpper(ticker),
	)
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", ticker, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListPositions returns the positions of a portfolio ordered by ticker
func (r *Repository) ListPositions(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT portfolio_id, ticker_symbol, company_name, shares, average_price, updated_at
		FROM positions WHERE portfolio_id = ? ORDER BY ticker_symbol`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		var pos domain.Position
		var updatedAt int64
		if err := rows.Scan(&pos.PortfolioID, &pos.TickerSymbol, &pos.CompanyName, &pos.Shares, &pos.AveragePrice, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (*domain.Portfolio, error) {
	var p domain.Portfolio
	var description sql.NullString
	var createdAt int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan portfolio: %w", err)
	}
	if description.Valid {
		p.Description = &description.String
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &p, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
