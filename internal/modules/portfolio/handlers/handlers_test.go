package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/portfolio"
	testhelpers "github.com/aristath/compass/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router http.Handler
	token  string
	other  string
}

func setupRouter(t *testing.T) *fixture {
	db, cleanup := testhelpers.NewTestDB(t, "app")
	t.Cleanup(cleanup)

	tokens := auth.NewTokenManager("secret", time.Hour)
	userID := testhelpers.InsertUser(t, db, "investor@example.com")
	otherID := testhelpers.InsertUser(t, db, "other@example.com")
	token, err := tokens.Sign(userID, "investor@example.com")
	require.NoError(t, err)
	other, err := tokens.Sign(otherID, "other@example.com")
	require.NoError(t, err)

	quotes := testhelpers.NewMockQuoteFetcher()
	quotes.SetQuote(domain.Quote{Symbol: "AAPL", Price: 200})
	service := portfolio.NewService(portfolio.NewRepository(db.Conn(), zerolog.Nop()), quotes, nil, zerolog.Nop())

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens, zerolog.Nop()))
	r.Route("/api", NewHandler(service, zerolog.Nop()).RegisterRoutes)
	return &fixture{router: r, token: token, other: other}
}

func request(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createPortfolio(t *testing.T, f *fixture) string {
	rec := request(f.router, http.MethodPost, "/api/portfolios", `{"name":"Core"}`, f.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ID
}

func TestHandleList_AnonymousEmpty(t *testing.T) {
	f := setupRouter(t)

	rec := request(f.router, http.MethodGet, "/api/portfolios", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleCreate(t *testing.T) {
	f := setupRouter(t)

	t.Run("anonymous", func(t *testing.T) {
		rec := request(f.router, http.MethodPost, "/api/portfolios", `{"name":"Core"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := request(f.router, http.MethodPost, "/api/portfolios", `{"name":""}`, f.token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		createPortfolio(t, f)

		rec := request(f.router, http.MethodGet, "/api/portfolios", "", f.token)
		var list []domain.Portfolio
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)
	})
}

func TestHandleHoldings(t *testing.T) {
	f := setupRouter(t)
	id := createPortfolio(t, f)

	rec := request(f.router, http.MethodPost, "/api/portfolios/"+id+"/positions",
		`{"ticker_symbol":"AAPL","shares":2,"average_price":150}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(f.router, http.MethodPost, "/api/portfolios/"+id+"/positions",
		`{"ticker_symbol":"NOPE","shares":1,"average_price":10}`, f.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(f.router, http.MethodGet, "/api/portfolios/"+id+"/holdings", "", f.token)
	require.Equal(t, http.StatusOK, rec.Code)

	var v portfolio.Valuation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Len(t, v.Holdings, 2)
	assert.Equal(t, 400.0, v.Holdings[0].TotalValue)
	assert.False(t, v.Holdings[1].PriceAvailable)
	assert.Equal(t, 100.0, v.TotalReturn)
}

func TestHandlePositions_OtherUserNotFound(t *testing.T) {
	f := setupRouter(t)
	id := createPortfolio(t, f)

	rec := request(f.router, http.MethodGet, "/api/portfolios/"+id+"/positions", "", f.other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(f.router, http.MethodGet, "/api/portfolios/"+id+"/positions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleDeletePosition(t *testing.T) {
	f := setupRouter(t)
	id := createPortfolio(t, f)

	request(f.router, http.MethodPost, "/api/portfolios/"+id+"/positions",
		`{"ticker_symbol":"AAPL","shares":2,"average_price":150}`, f.token)

	rec := request(f.router, http.MethodDelete, "/api/portfolios/"+id+"/positions/AAPL", "", f.token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = request(f.router, http.MethodDelete, "/api/portfolios/"+id+"/positions/AAPL", "", f.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
