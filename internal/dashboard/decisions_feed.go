// Package dashboard holds client-side state containers that back the dashboard
// views: each one fetches through the API client and keeps loading, error and
// data state for its consumer.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/rs/zerolog"
)

// DecisionSource reads and writes the current user's decisions.
// *client.Client implements it.
type DecisionSource interface {
	Decisions(ctx context.Context, limit int) ([]domain.Decision, error)
	CreateDecision(ctx context.Context, in domain.DecisionInput) (*domain.Decision, error)
}

// DecisionsState is a snapshot of the feed
type DecisionsState struct {
	Decisions []domain.Decision
	Loading   bool
	Loaded    bool
	Err       error
}

// DecisionsFeed caches the user's decisions, newest first. It is safe for
// concurrent use.
type DecisionsFeed struct {
	source DecisionSource
	log    zerolog.Logger

	mu        sync.RWMutex
	decisions []domain.Decision
	loading   bool
	loaded    bool
	err       error
}

// NewDecisionsFeed creates an empty feed over source
func NewDecisionsFeed(source DecisionSource, log zerolog.Logger) *DecisionsFeed {
	return &DecisionsFeed{
		source:    source,
		log:       log.With().Str("component", "decisions_feed").Logger(),
		decisions: []domain.Decision{},
	}
}

// Load fetches decisions the first time it is called; later calls return the
// held state. An unauthenticated source yields an empty list without error.
func (f *DecisionsFeed) Load(ctx context.Context) DecisionsState {
	f.mu.Lock()
	if f.loaded || f.loading {
		f.mu.Unlock()
		return f.State()
	}
	f.loading = true
	f.mu.Unlock()

	return f.fetch(ctx)
}

// Reload fetches decisions again regardless of earlier loads
func (f *DecisionsFeed) Reload(ctx context.Context) DecisionsState {
	f.mu.Lock()
	f.loading = true
	f.mu.Unlock()

	return f.fetch(ctx)
}

func (f *DecisionsFeed) fetch(ctx context.Context) DecisionsState {
	list, err := f.source.Decisions(ctx, 0)

	f.mu.Lock()
	f.loading = false
	f.loaded = true
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		f.decisions = []domain.Decision{}
		f.err = nil
	case err != nil:
		f.log.Warn().Err(err).Msg("Failed to load decisions")
		f.err = err
	default:
		if list == nil {
			list = []domain.Decision{}
		}
		f.decisions = list
		f.err = nil
	}
	f.mu.Unlock()

	return f.State()
}

// Create records a decision remotely and, on success, prepends it locally
func (f *DecisionsFeed) Create(ctx context.Context, in domain.DecisionInput) (*domain.Decision, error) {
	d, err := f.source.CreateDecision(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision: %w", err)
	}

	f.mu.Lock()
	f.decisions = append([]domain.Decision{*d}, f.decisions...)
	f.mu.Unlock()

	return d, nil
}

// State returns a copy of the current state
func (f *DecisionsFeed) State() DecisionsState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list := make([]domain.Decision, len(f.decisions))
	copy(list, f.decisions)

	return DecisionsState{
		Decisions: list,
		Loading:   f.loading,
		Loaded:    f.loaded,
		Err:       f.err,
	}
}

// WeeklyStats computes stats over held decisions created in the seven days before now
func (f *DecisionsFeed) WeeklyStats(now time.Time) domain.WeeklyStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return decisions.ComputeWeeklyStats(f.decisions, now)
}
