// Package market provides the index board, quotes and stock cards.
package market

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/rs/zerolog"
)

// DefaultRefreshInterval is how often the index board re-fetches
const DefaultRefreshInterval = 5 * time.Minute

// FetchFailedMessage is the snapshot error when no index could be fetched
const FetchFailedMessage = "failed to fetch market indices"

// IndexSymbol is a tracked index and its display name
type IndexSymbol struct {
	Symbol string
	Name   string
}

// ParseIndexSymbols parses "SYMBOL=Name" pairs. A bare symbol is its own name.
func ParseIndexSymbols(pairs []string) []IndexSymbol {
	out := make([]IndexSymbol, 0, len(pairs))
	for _, p := range pairs {
		symbol, name, _ := strings.Cut(p, "=")
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = symbol
		}
		out = append(out, IndexSymbol{Symbol: symbol, Name: name})
	}
	return out
}

// Snapshot is the index board state. Indices is replaced wholesale on each refresh.
type Snapshot struct {
	UpdatedAt time.Time          `json:"updated_at"`
	Indices   []domain.IndexData `json:"indices"`
	Error     string             `json:"error,omitempty"`
	Loading   bool               `json:"loading"`
}

// IndexBoard keeps a periodically refreshed snapshot of the configured indices
type IndexBoard struct {
	quotes   domain.QuoteFetcher
	symbols  []IndexSymbol
	interval time.Duration
	events   *events.Manager
	now      func() time.Time
	log      zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIndexBoard creates a board. eventManager may be nil.
func NewIndexBoard(quotes domain.QuoteFetcher, symbols []IndexSymbol, interval time.Duration, eventManager *events.Manager, log zerolog.Logger) *IndexBoard {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &IndexBoard{
		quotes:   quotes,
		symbols:  symbols,
		interval: interval,
		events:   eventManager,
		now:      time.Now,
		log:      log.With().Str("component", "index_board").Logger(),
		snap:     Snapshot{Indices: []domain.IndexData{}, Loading: true},
	}
}

// Symbols returns the tracked indices
func (b *IndexBoard) Symbols() []IndexSymbol {
	return b.symbols
}

// Snapshot returns a copy of the current state
func (b *IndexBoard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.snap
	s.Indices = make([]domain.IndexData, len(b.snap.Indices))
	copy(s.Indices, b.snap.Indices)
	return s
}

// Refresh fetches every symbol in parallel and replaces the snapshot.
// A failed symbol is left out; the error is set only when every symbol fails.
// A refresh whose ctx ends leaves the snapshot untouched.
func (b *IndexBoard) Refresh(ctx context.Context) Snapshot {
	results := make([]*domain.IndexData, len(b.symbols))

	var wg sync.WaitGroup
	for i, sym := range b.symbols {
		wg.Add(1)
		go func(i int, sym IndexSymbol) {
			defer wg.Done()

			q, err := b.quotes.GetQuote(ctx, sym.Symbol)
			if err != nil {
				b.log.Warn().Err(err).Str("symbol", sym.Symbol).Msg("Index fetch failed")
				return
			}
			results[i] = &domain.IndexData{
				Symbol:        sym.Symbol,
				Name:          sym.Name,
				Price:         q.Price,
				Change:        q.Change,
				ChangePercent: q.ChangePercent,
			}
		}(i, sym)
	}
	wg.Wait()

	// a cancelled refresh keeps the last snapshot
	if ctx.Err() != nil {
		b.log.Debug().Err(ctx.Err()).Msg("Index board refresh cancelled")
		return b.Snapshot()
	}

	indices := make([]domain.IndexData, 0, len(results))
	for _, r := range results {
		if r != nil {
			indices = append(indices, *r)
		}
	}
	failed := len(b.symbols) - len(indices)

	next := Snapshot{UpdatedAt: b.now(), Indices: indices}
	if len(b.symbols) > 0 && len(indices) == 0 {
		next.Error = FetchFailedMessage
	}

	b.mu.Lock()
	b.snap = next
	b.mu.Unlock()

	b.log.Debug().Int("fetched", len(indices)).Int("failed", failed).Msg("Index board refreshed")
	b.events.EmitTyped("market", &events.IndicesRefreshedData{Indices: indices, Failed: failed})

	return b.Snapshot()
}

// Start refreshes immediately and then on every interval until Stop or ctx is done.
// Calling Start on a running board is a no-op.
func (b *IndexBoard) Start(ctx context.Context) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx, b.done)

	b.log.Info().Dur("interval", b.interval).Int("symbols", len(b.symbols)).Msg("Index board started")
}

// Stop cancels the periodic refresh and waits for an in-flight refresh to finish
func (b *IndexBoard) Stop() {
	b.runMu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	b.log.Info().Msg("Index board stopped")
}

func (b *IndexBoard) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b.Refresh(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Refresh(ctx)
		}
	}
}
