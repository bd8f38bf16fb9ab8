package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/market"
	testhelpers "github.com/aristath/compass/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fixture struct {
	router http.Handler
	board  *market.IndexBoard
	quotes *testhelpers.MockQuoteFetcher
	bus    *events.Bus
}

func setup(t *testing.T) *fixture {
	quotes := testhelpers.NewMockQuoteFetcher()
	symbols := make([]market.IndexSymbol, 0, 4)
	for _, idx := range testhelpers.NewIndexFixtures() {
		quotes.SetQuote(domain.Quote{Symbol: idx.Symbol, Price: idx.Price, Change: idx.Change, ChangePercent: idx.ChangePercent})
		symbols = append(symbols, market.IndexSymbol{Symbol: idx.Symbol, Name: idx.Name})
	}
	quotes.SetQuote(domain.Quote{Symbol: "AAPL", Price: 230})

	bus := events.NewBus()
	board := market.NewIndexBoard(quotes, symbols, time.Minute, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	service := market.NewService(quotes, quotes, &testhelpers.MockNewsFetcher{LogoURL: "https://logo/aapl.png"}, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", NewHandler(board, service, bus, zerolog.Nop()).RegisterRoutes)
	return &fixture{router: r, board: board, quotes: quotes, bus: bus}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleIndices(t *testing.T) {
	f := setup(t)

	rec := get(f.router, "/api/market/indices")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap market.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Loading)

	f.board.Refresh(context.Background())

	rec = get(f.router, "/api/market/indices")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.Loading)
	assert.Equal(t, testhelpers.NewIndexFixtures(), snap.Indices)
}

func TestHandleRefresh(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/market/indices/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap market.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Indices, 4)
}

func TestHandleQuote(t *testing.T) {
	f := setup(t)

	rec := get(f.router, "/api/market/quotes/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	var q domain.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, 230.0, q.Price)

	rec = get(f.router, "/api/market/quotes/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStockCard(t *testing.T) {
	f := setup(t)

	rec := get(f.router, "/api/stocks/AAPL/card")
	require.Equal(t, http.StatusOK, rec.Code)

	var card domain.StockCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	require.NotNil(t, card.LogoURL)
	assert.Equal(t, "https://logo/aapl.png", *card.LogoURL)
	assert.Equal(t, 230.0, card.Quote.Price)
}

func dialStream(t *testing.T, f *fixture, query string) *websocket.Conn {
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/market/stream" + query
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (websocket.MessageType, StreamFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	typ, payload, err := conn.Read(ctx)
	require.NoError(t, err)
	frame, err := DecodeFrame(typ, payload)
	require.NoError(t, err)
	return typ, frame
}

func TestHandleStream_JSON(t *testing.T) {
	f := setup(t)
	conn := dialStream(t, f, "")

	typ, frame := readFrame(t, conn)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, FrameSnapshot, frame.Type)
	assert.True(t, frame.Loading)

	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	f.board.Refresh(context.Background())

	_, frame = readFrame(t, conn)
	assert.Equal(t, FrameSnapshot, frame.Type)
	assert.False(t, frame.Loading)
	assert.Len(t, frame.Indices, 4)
}

func TestHandleStream_Msgpack(t *testing.T) {
	f := setup(t)
	f.board.Refresh(context.Background())
	conn := dialStream(t, f, "?format=msgpack")

	typ, frame := readFrame(t, conn)
	assert.Equal(t, websocket.MessageBinary, typ)
	assert.Equal(t, testhelpers.NewIndexFixtures(), frame.Indices)
}
