package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/compass/internal/config"
	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/di"
	"github.com/aristath/compass/internal/events"
	testhelpers "github.com/aristath/compass/internal/testing"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:     t.TempDir(),
		Port:        0,
		JWTSecret:   "test-secret",
		TokenExpiry: time.Hour,
		Cache: config.CacheConfig{
			Backend:   config.CacheBackendSQLite,
			Namespace: "openai_cache_",
			TTL:       time.Hour,
		},
		Market: config.MarketConfig{
			IndexSymbols:    config.DefaultIndexSymbols,
			RefreshInterval: time.Minute,
		},
		Jobs: config.JobsConfig{
			CacheCleanupSchedule: "@daily",
			MaintenanceSchedule:  "@hourly",
			VacuumSchedule:       "@weekly",
		},
	}

	container, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	s := New(Config{
		Log:       zerolog.Nop(),
		Config:    cfg,
		Container: container,
		DevMode:   true,
	})
	s.systemHandlers.hostStats = func() (float64, float64) { return 12.5, 40 }
	return s, container
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "compass", body["service"])
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 12.5, status.CPUPercent)
	assert.Equal(t, 40.0, status.MemoryPercent)
	require.Len(t, status.Databases, 2)
	for _, db := range status.Databases {
		assert.True(t, db.Healthy, db.Name)
		assert.NotNil(t, db.Stats)
	}
	require.NotNil(t, status.Cache)
	assert.Equal(t, "sqlite", status.Cache.Backend)
	assert.False(t, status.CommentaryAvailable)
	require.NotNil(t, status.Indices)
	assert.Equal(t, 4, status.Indices.Symbols)
	assert.True(t, status.Indices.Loading)
	assert.Len(t, status.Jobs, 3)
}

func TestTriggerJob(t *testing.T) {
	s, c := newTestServer(t)

	userID := testhelpers.InsertUser(t, c.AppDB, "ada@example.com")
	token, err := c.Tokens.Sign(userID, "ada@example.com")
	require.NoError(t, err)

	t.Run("anonymous is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/database_vacuum", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("registered job runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/response_cache_cleanup", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success"`)
	})

	t.Run("unknown job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/nope", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"job not found"}`, w.Body.String())
	})
}

func TestJobsStatus(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body JobsStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	names := make([]string, 0, len(body.Jobs))
	for _, j := range body.Jobs {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"response_cache_cleanup", "check_wal_checkpoints", "database_vacuum"}, names)
}

func TestModuleRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/auth/v1/user", http.StatusOK},
		{http.MethodGet, "/api/decisions", http.StatusOK},
		{http.MethodGet, "/api/portfolios", http.StatusOK},
		{http.MethodGet, "/api/market/indices", http.StatusOK},
		{http.MethodGet, "/api/commentary/cache", http.StatusOK},
		{http.MethodPost, "/api/decisions", http.StatusUnauthorized},
		{http.MethodDelete, "/api/commentary/cache", http.StatusUnauthorized},
		{http.MethodPost, "/functions/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBearerTokenReachesHandlers(t *testing.T) {
	s, c := newTestServer(t)

	userID := testhelpers.InsertUser(t, c.AppDB, "ada@example.com")
	token, err := c.Tokens.Sign(userID, "ada@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")
}

func TestEventsStream(t *testing.T) {
	s, c := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream?types=cache_cleared", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var v map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v))
				return v
			}
		}
	}

	assert.Equal(t, "connected", readData()["type"])

	// filtered out
	c.EventManager.EmitTyped("test", &events.PortfolioCreatedData{PortfolioID: "p1"})
	c.EventManager.EmitTyped("test", &events.CacheClearedData{Key: "market_2026-10-17"})

	got := readData()
	assert.Equal(t, string(events.CacheCleared), got["type"])
	assert.Equal(t, "test", got["module"])
}

func openStream(t *testing.T, ctx context.Context, url, token string) func() map[string]interface{} {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	reader := bufio.NewReader(resp.Body)
	return func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var v map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v))
				return v
			}
		}
	}
}

func TestEventsStream_UserEventsStayPrivate(t *testing.T) {
	s, c := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userID := testhelpers.InsertUser(t, c.AppDB, "ada@example.com")
	token, err := c.Tokens.Sign(userID, "ada@example.com")
	require.NoError(t, err)

	url := ts.URL + "/api/events/stream?types=decision_created,cache_cleared"
	anonymous := openStream(t, ctx, url, "")
	owner := openStream(t, ctx, url, token)
	assert.Equal(t, "connected", anonymous()["type"])
	assert.Equal(t, "connected", owner()["type"])

	c.EventManager.EmitTyped("decisions", &events.DecisionCreatedData{DecisionID: "d1", UserID: userID, TickerSymbol: "AAPL"})
	c.EventManager.EmitTyped("decisions", &events.DecisionCreatedData{DecisionID: "d2", UserID: "someone-else", TickerSymbol: "MSFT"})
	c.EventManager.EmitTyped("commentary", &events.CacheClearedData{Key: "market_2026-10-17"})

	// the anonymous stream skips both decisions
	assert.Equal(t, string(events.CacheCleared), anonymous()["type"])

	got := owner()
	assert.Equal(t, string(events.DecisionCreated), got["type"])
	assert.Equal(t, "d1", got["data"].(map[string]interface{})["decision_id"])
	assert.Equal(t, string(events.CacheCleared), owner()["type"])
}

func TestStatusMonitor_EmitsOnTransition(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "app")
	defer cleanup()

	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(events.ErrorOccurred)
	defer unsubscribe()

	monitor := NewStatusMonitor(events.NewManager(bus, zerolog.Nop()), []*database.DB{db, nil}, zerolog.Nop())

	monitor.CheckNow(context.Background())
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event while healthy: %v", ev.Type)
	default:
	}

	require.NoError(t, db.Close())

	monitor.CheckNow(context.Background())
	select {
	case ev := <-ch:
		assert.Equal(t, events.ErrorOccurred, ev.Type)
	default:
		t.Fatal("expected error event after database closed")
	}

	// still unhealthy: no repeat
	monitor.CheckNow(context.Background())
	select {
	case ev := <-ch:
		t.Fatalf("unexpected repeat event: %v", ev.Type)
	default:
	}
}

func TestStatusMonitor_StartStop(t *testing.T) {
	monitor := NewStatusMonitor(nil, nil, zerolog.Nop())
	monitor.Start(time.Hour)
	monitor.Start(time.Hour)
	monitor.Stop()
	monitor.Stop()
}

func TestIsStream(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/api/market/indices", nil)
	assert.False(t, isStream(plain))

	sse := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil)
	assert.True(t, isStream(sse))

	ws := httptest.NewRequest(http.MethodGet, "/anything", nil)
	ws.Header.Set("Upgrade", "websocket")
	assert.True(t, isStream(ws))
}
