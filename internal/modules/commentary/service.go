// Package commentary generates AI market, stock and coaching commentary.
// Every generated text goes through the response cache.
package commentary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/compass/internal/clientdata"
	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// generateTimeout bounds one shared generation. It runs detached from the
// caller that started it so other waiters are not failed by its disconnect.
const generateTimeout = 2 * time.Minute

// ErrUnavailable is returned when no generator is configured and nothing is cached
var ErrUnavailable = errors.New("commentary generator not configured")

// Kinds of commentary
const (
	KindMarket = "market"
	KindStock  = "stock"
	KindCoach  = "coach"
)

// Commentary is a generated text and its provenance
type Commentary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	Text        string    `json:"text"`
	Cached      bool      `json:"cached"`
}

// IndexSource provides the current index snapshot
type IndexSource interface {
	Snapshot() market.Snapshot
}

// CardSource provides stock cards
type CardSource interface {
	Card(ctx context.Context, symbol string) (*domain.StockCard, error)
}

// DecisionSource lists a user's recent decisions
type DecisionSource interface {
	ListSince(ctx context.Context, userID string, since time.Time) ([]domain.Decision, error)
}

// Service produces commentary through the response cache
type Service struct {
	cache     *clientdata.Cache
	generator domain.ContentGenerator
	indices   IndexSource
	cards     CardSource
	decisions DecisionSource
	events    *events.Manager
	group     singleflight.Group
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a commentary service. generator and eventManager may be nil.
func NewService(
	cache *clientdata.Cache,
	generator domain.ContentGenerator,
	indices IndexSource,
	cards CardSource,
	decisionSource DecisionSource,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		cache:     cache,
		generator: generator,
		indices:   indices,
		cards:     cards,
		decisions: decisionSource,
		events:    eventManager,
		now:       time.Now,
		log:       log.With().Str("service", "commentary").Logger(),
	}
}

// Available reports whether new commentary can be generated
func (s *Service) Available() bool {
	return s.generator != nil
}

// MarketKey is the cache key of the daily market overview
func MarketKey(day time.Time) string {
	return "market_" + day.Format("2006-01-02")
}

// StockKey is the cache key of the daily commentary on symbol
func StockKey(symbol string, day time.Time) string {
	return "stock_" + market.NormalizeSymbol(symbol) + "_" + day.Format("2006-01-02")
}

// CoachKey is the cache key of a user's weekly coaching
func CoachKey(userID string, day time.Time) string {
	year, week := day.ISOWeek()
	return fmt.Sprintf("%s%d-W%02d", CoachKeyPrefix(userID), year, week)
}

// CoachKeyPrefix is shared by every coaching key of userID
func CoachKeyPrefix(userID string) string {
	return KindCoach + "_" + userID + "_"
}

// OwnsKey reports whether userID may clear key. Coaching entries belong to
// the user they were generated for; everything else is shared.
func OwnsKey(userID, key string) bool {
	if !strings.HasPrefix(key, KindCoach+"_") {
		return true
	}
	return userID != "" && strings.HasPrefix(key, CoachKeyPrefix(userID))
}

// Market returns the market overview for today
func (s *Service) Market(ctx context.Context) (*Commentary, error) {
	now := s.now().UTC()
	return s.produce(ctx, MarketKey(now), KindMarket, clientdata.TTLMarketCommentary, func(ctx context.Context) (string, error) {
		snap := s.indices.Snapshot()
		if len(snap.Indices) == 0 {
			return "", fmt.Errorf("%w: no index data available", domain.ErrNotFound)
		}
		return marketPrompt(now, snap.Indices), nil
	})
}

// Stock returns today's commentary on symbol
func (s *Service) Stock(ctx context.Context, symbol string) (*Commentary, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	return s.produce(ctx, StockKey(symbol, now), KindStock, clientdata.TTLStockCommentary, func(ctx context.Context) (string, error) {
		card, err := s.cards.Card(ctx, symbol)
		if err != nil {
			return "", err
		}
		return stockPrompt(symbol, card), nil
	})
}

// Coach returns this week's coaching for userID based on their recent decisions
func (s *Service) Coach(ctx context.Context, userID string) (*Commentary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	now := s.now().UTC()
	return s.produce(ctx, CoachKey(userID, now), KindCoach, clientdata.TTLCoaching, func(ctx context.Context) (string, error) {
		recent, err := s.decisions.ListSince(ctx, userID, now.Add(-decisions.StatsWindow))
		if err != nil {
			return "", err
		}
		return coachPrompt(recent, now), nil
	})
}

// ClearCache removes one cached commentary, or all of them when key is empty
func (s *Service) ClearCache(ctx context.Context, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		s.cache.ClearAll(ctx)
	} else {
		s.cache.Clear(ctx, key)
	}
	s.log.Info().Str("key", key).Msg("Commentary cache cleared")
	s.events.EmitTyped("commentary", &events.CacheClearedData{Key: key})
}

// CacheStats describes the response cache
func (s *Service) CacheStats() clientdata.Stats {
	return s.cache.Stats()
}

// produce serves key from the cache or generates it. Concurrent misses for
// the same key share one generation.
func (s *Service) produce(ctx context.Context, key, kind string, ttl time.Duration, prompt func(context.Context) (string, error)) (*Commentary, error) {
	var cached Commentary
	if s.cache.GetInto(ctx, key, &cached) {
		cached.Cached = true
		s.events.EmitTyped("commentary", &events.CommentaryGeneratedData{Key: key, Cached: true})
		return &cached, nil
	}

	if s.generator == nil {
		return nil, ErrUnavailable
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generateTimeout)
		defer cancel()

		p, err := prompt(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		text, err := s.generator.GenerateContent(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s commentary: %w", kind, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("failed to generate %s commentary: empty response", kind)
		}

		c := &Commentary{
			GeneratedAt: s.now().UTC(),
			Key:         key,
			Kind:        kind,
			Text:        text,
		}
		s.cache.SetWithTTL(ctx, key, c, ttl)

		s.log.Info().
			Str("key", key).
			Dur("duration", time.Since(start)).
			Int("chars", len(text)).
			Msg("Generated commentary")
		s.events.EmitTyped("commentary", &events.CommentaryGeneratedData{Key: key})
		return c, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	c := *res.Val.(*Commentary)
	return &c, nil
}
