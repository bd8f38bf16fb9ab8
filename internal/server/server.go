// Package server provides the HTTP server and routing for Compass.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/compass/internal/config"
	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/di"
	"github.com/aristath/compass/internal/modules/auth"
	authhandlers "github.com/aristath/compass/internal/modules/auth/handlers"
	commentaryhandlers "github.com/aristath/compass/internal/modules/commentary/handlers"
	decisionshandlers "github.com/aristath/compass/internal/modules/decisions/handlers"
	"github.com/aristath/compass/internal/modules/functions"
	markethandlers "github.com/aristath/compass/internal/modules/market/handlers"
	portfoliohandlers "github.com/aristath/compass/internal/modules/portfolio/handlers"
)

// requestTimeout bounds ordinary requests; streams are exempt
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Port      int            // overrides Config.Port when set
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container
	databases := []*database.DB{c.AppDB, c.CacheDB}

	port := cfg.Port
	if port == 0 && cfg.Config != nil {
		port = cfg.Config.Port
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      port,
		container: c,
		systemHandlers: NewSystemHandlers(SystemDeps{
			Databases:  databases,
			Cache:      c.Cache,
			Scheduler:  c.Scheduler,
			Bus:        c.EventBus,
			Board:      c.IndexBoard,
			Commentary: c.CommentaryService,
		}, cfg.Log),
		statusMonitor: NewStatusMonitor(c.EventManager, databases, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket and SSE connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware installs middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Bearer token, when present, becomes the request user
	s.router.Use(auth.OptionalAuth(s.container.Tokens, s.log))
}

func (s *Server) setupRoutes(devMode bool) {
	c := s.container

	// Proxy functions carry their own CORS policy and preflight response
	s.router.Group(func(r chi.Router) {
		r.Use(streamAwareTimeout(requestTimeout))
		functions.NewHandler(c.FinnhubClient, c.FinnhubClient, s.log).RegisterRoutes(r)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(streamAwareTimeout(requestTimeout))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)

		authhandlers.NewHandler(c.AuthService, s.log).RegisterRoutes(r)

		r.Route("/api", func(r chi.Router) {
			// Unified events stream (SSE)
			r.Get("/events/stream", NewEventsStreamHandler(c.EventBus, s.log).ServeHTTP)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.With(auth.RequireAuth).Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
			})

			decisionshandlers.NewHandler(c.DecisionService, s.log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(c.PortfolioService, s.log).RegisterRoutes(r)
			markethandlers.NewHandler(c.IndexBoard, c.MarketService, c.EventBus, s.log).RegisterRoutes(r)
			commentaryhandlers.NewHandler(c.CommentaryService, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the status monitor and blocks serving HTTP
func (s *Server) Start() error {
	s.statusMonitor.Start(60 * time.Second)
	s.log.Info().Msg("Status monitor started")

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.statusMonitor.Stop()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// streamAwareTimeout applies middleware.Timeout except to streaming endpoints
func streamAwareTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStream(r) {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

func isStream(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
