package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONKeepsTypedData(t *testing.T) {
	in := Event{
		Type:      DecisionCreated,
		Timestamp: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		Module:    "decisions",
		Data:      &DecisionCreatedData{DecisionID: "d1", UserID: "u1", TickerSymbol: "AAPL", Action: "buy", Rational: true},
	}

	raw, err := json.Marshal(&in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ticker_symbol":"AAPL"`)

	var out Event
	require.NoError(t, json.Unmarshal(raw, &out))
	data, ok := out.Data.(*DecisionCreatedData)
	require.True(t, ok)
	assert.Equal(t, "d1", data.DecisionID)
	assert.True(t, out.Timestamp.Equal(in.Timestamp))
}

func TestEvent_UnknownTypeFallsBackToGeneric(t *testing.T) {
	var out Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"SOMETHING","data":{"a":1}}`), &out))

	data, ok := out.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, EventType("SOMETHING"), data.EventType())
	assert.Equal(t, float64(1), data.Data["a"])
}

func TestBus_FiltersByType(t *testing.T) {
	bus := NewBus()
	indices, unsubIndices := bus.Subscribe(IndicesRefreshed)
	defer unsubIndices()
	all, unsubAll := bus.Subscribe()
	defer unsubAll()

	bus.Publish(Event{Type: DecisionCreated})
	bus.Publish(Event{Type: IndicesRefreshed, Data: &IndicesRefreshedData{Indices: []domain.IndexData{{Symbol: "^GSPC"}}}})

	got := <-indices
	assert.Equal(t, IndicesRefreshed, got.Type)
	assert.Len(t, all, 2)
	assert.Len(t, indices, 0)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(Event{Type: CacheCleared})
	}
	assert.Equal(t, int64(5), bus.Dropped())
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())

	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus()
	m := NewManager(bus, zerolog.Nop())
	ch, unsub := bus.Subscribe()
	defer unsub()

	m.EmitTyped("cache", &CacheClearedData{Key: "market_2026-10-17"})
	m.EmitError("market", errors.New("fetch failed"), map[string]interface{}{"symbol": "^DJI"})

	first := <-ch
	assert.Equal(t, CacheCleared, first.Type)
	assert.Equal(t, "cache", first.Module)

	second := <-ch
	assert.Equal(t, ErrorOccurred, second.Type)
	assert.Equal(t, "fetch failed", second.Data.(*ErrorEventData).Error)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.EmitTyped("x", &CacheClearedData{})
	})
}

func TestEvent_VisibleTo(t *testing.T) {
	decision := Event{Type: DecisionCreated, Data: &DecisionCreatedData{DecisionID: "d1", UserID: "u1"}}
	portfolio := Event{Type: PortfolioCreated, Data: &PortfolioCreatedData{PortfolioID: "p1", UserID: "u1"}}
	indices := Event{Type: IndicesRefreshed, Data: &IndicesRefreshedData{}}

	assert.True(t, decision.VisibleTo("u1"))
	assert.False(t, decision.VisibleTo("u2"))
	assert.False(t, decision.VisibleTo(""))
	assert.False(t, portfolio.VisibleTo(""))
	assert.True(t, indices.VisibleTo(""))
	assert.True(t, indices.VisibleTo("u2"))
}
