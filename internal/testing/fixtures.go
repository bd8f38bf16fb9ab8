package testing

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/domain"
	"github.com/google/uuid"
)

// InsertUser creates a user row so foreign keys on decisions and portfolios hold.
// Returns the new user id.
func InsertUser(t *testing.T, db *database.DB, email string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		id, email, "x", time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("Failed to insert test user %s: %v", email, err)
	}
	return id
}

// NewDecisionFixture returns a fully rational buy of 10 AAPL at 150
func NewDecisionFixture() domain.DecisionInput {
	return domain.DecisionInput{
		TickerSymbol:    "AAPL",
		Action:          domain.ActionBuy,
		Shares:          10,
		PricePerShare:   150,
		EmotionalState:  3,
		FollowedPlan:    true,
		DidResearch:     true,
		CheckedEmotions: true,
	}
}

// NewIndexFixtures returns a snapshot of the four default indices
func NewIndexFixtures() []domain.IndexData {
	return []domain.IndexData{
		{Symbol: "^GSPC", Name: "S&P 500", Price: 5800.25, Change: 12.5, ChangePercent: 0.22},
		{Symbol: "^IXIC", Name: "NASDAQ", Price: 18400.1, Change: -40.2, ChangePercent: -0.22},
		{Symbol: "^DJI", Name: "Dow Jones", Price: 42100, Change: 85.3, ChangePercent: 0.2},
		{Symbol: "^RUT", Name: "Russell 2000", Price: 2200.7, Change: 3.1, ChangePercent: 0.14},
	}
}
