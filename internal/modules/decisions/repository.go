// Package decisions records buy/sell decisions and summarizes decision discipline.
package decisions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
)

const decisionColumns = `id, user_id, ticker_symbol, action, shares, price_per_share,
	followed_plan, did_research, checked_emotions, emotional_state, decision_date, created_at`

// Repository handles decision database operations on app.db.
// Decisions are append-only; there is no update path.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new decision repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "decision").Logger(),
	}
}

// Create inserts d. CreatedAt is stored with millisecond precision.
func (r *Repository) Create(ctx context.Context, d *domain.Decision) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO decisions (`+decisionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.TickerSymbol, string(d.Action), d.Shares, d.PricePerShare,
		boolToInt(d.FollowedPlan), boolToInt(d.DidResearch), boolToInt(d.CheckedEmotions),
		d.EmotionalState, d.DecisionDate, d.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// ListByUser returns the user's decisions, newest first. limit <= 0 means no limit.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// ListSince returns the user's decisions created at or after since, newest first
func (r *Repository) ListSince(ctx context.Context, userID string, since time.Time) ([]domain.Decision, error) {
	return r.query(ctx, `SELECT `+decisionColumns+` FROM decisions
		WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC, rowid DESC`,
		userID, since.UnixMilli(),
	)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.Decision, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]domain.Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}
	return decisions, nil
}

func scanDecision(rows *sql.Rows) (domain.Decision, error) {
	var d domain.Decision
	var action string
	var followedPlan, didResearch, checkedEmotions int
	var createdAt int64

	err := rows.Scan(&d.ID, &d.UserID, &d.TickerSymbol, &action, &d.Shares, &d.PricePerShare,
		&followedPlan, &didResearch, &checkedEmotions, &d.EmotionalState, &d.DecisionDate, &createdAt)
	if err != nil {
		return d, fmt.Errorf("failed to scan decision: %w", err)
	}

	d.Action = domain.DecisionAction(action)
	d.FollowedPlan = followedPlan != 0
	d.DidResearch = didResearch != 0
	d.CheckedEmotions = checkedEmotions != 0
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
