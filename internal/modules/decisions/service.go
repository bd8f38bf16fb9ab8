package decisions

import (
	"context"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service records decisions and computes weekly stats
type Service struct {
	repo   *Repository
	events *events.Manager
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a decision service. eventManager may be nil.
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventManager,
		now:    time.Now,
		log:    log.With().Str("service", "decisions").Logger(),
	}
}

// Create validates and stores a decision for userID and returns the inserted record
func (s *Service) Create(ctx context.Context, userID string, in domain.DecisionInput) (*domain.Decision, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	now := s.now().UTC()
	in.Normalize(now)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	d := &domain.Decision{
		ID:              uuid.NewString(),
		UserID:          userID,
		TickerSymbol:    in.TickerSymbol,
		Action:          in.Action,
		DecisionDate:    in.DecisionDate,
		Shares:          in.Shares,
		PricePerShare:   in.PricePerShare,
		EmotionalState:  in.EmotionalState,
		FollowedPlan:    in.FollowedPlan,
		DidResearch:     in.DidResearch,
		CheckedEmotions: in.CheckedEmotions,
		CreatedAt:       now.Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("ticker", d.TickerSymbol).
		Str("action", string(d.Action)).
		Bool("rational", d.IsRational()).
		Msg("Decision recorded")

	s.events.EmitTyped("decisions", &events.DecisionCreatedData{
		DecisionID:   d.ID,
		UserID:       d.UserID,
		TickerSymbol: d.TickerSymbol,
		Action:       string(d.Action),
		Rational:     d.IsRational(),
	})
	return d, nil
}

// List returns the user's decisions newest first. An anonymous caller gets an empty list.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Decision, error) {
	if userID == "" {
		return []domain.Decision{}, nil
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// WeeklyStats summarizes the user's decisions from the last seven days
func (s *Service) WeeklyStats(ctx context.Context, userID string) (domain.WeeklyStats, error) {
	if userID == "" {
		return domain.WeeklyStats{}, nil
	}
	now := s.now()
	recent, err := s.repo.ListSince(ctx, userID, now.Add(-StatsWindow))
	if err != nil {
		return domain.WeeklyStats{}, err
	}
	return ComputeWeeklyStats(recent, now), nil
}
