// Package handlers provides HTTP handlers for AI commentary.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles commentary HTTP requests
type Handler struct {
	service *commentary.Service
	log     zerolog.Logger
}

// NewHandler creates a new commentary handler
func NewHandler(service *commentary.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "commentary").Logger(),
	}
}

// RegisterRoutes registers commentary routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/commentary", func(r chi.Router) {
		r.Get("/market", h.HandleMarket)                              // Daily market overview
		r.Get("/stocks/{symbol}", h.HandleStock)                      // Daily stock commentary
		r.With(auth.RequireAuth).Get("/coach", h.HandleCoach)         // Weekly decision coaching
		r.Get("/cache", h.HandleCacheStats)                           // Cache backend and size
		r.With(auth.RequireAuth).Delete("/cache", h.HandleClearCache) // ?key= clears one entry, otherwise all
	})
}

// HandleMarket returns the market overview
func (h *Handler) HandleMarket(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Market(r.Context())
	h.respond(w, c, err)
}

// HandleStock returns commentary on one stock
func (h *Handler) HandleStock(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Stock(r.Context(), chi.URLParam(r, "symbol"))
	h.respond(w, c, err)
}

// HandleCoach returns the caller's weekly coaching
func (h *Handler) HandleCoach(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Coach(r.Context(), auth.UserIDFromContext(r.Context()))
	h.respond(w, c, err)
}

// HandleCacheStats describes the response cache
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.CacheStats())
}

// HandleClearCache clears cached commentary
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if !commentary.OwnsKey(auth.UserIDFromContext(r.Context()), key) {
		h.writeError(w, http.StatusForbidden, "cannot clear another user's commentary")
		return
	}
	h.service.ClearCache(r.Context(), key)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true, "key": key})
}

func (h *Handler) respond(w http.ResponseWriter, c *commentary.Commentary, err error) {
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, c)
	case errors.Is(err, commentary.ErrUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to produce commentary")
		h.writeError(w, http.StatusBadGateway, "commentary generation failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
