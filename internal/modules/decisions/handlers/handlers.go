// Package handlers provides HTTP handlers for trade decisions.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles decision HTTP requests
type Handler struct {
	service *decisions.Service
	log     zerolog.Logger
}

// NewHandler creates a new decision handler
func NewHandler(service *decisions.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "decisions").Logger(),
	}
}

// RegisterRoutes registers decision routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/decisions", func(r chi.Router) {
		r.Get("/", h.HandleList)                           // Newest first; empty when anonymous
		r.With(auth.RequireAuth).Post("/", h.HandleCreate) // Record a decision
		r.Get("/stats/weekly", h.HandleWeeklyStats)        // Trailing seven days
	})
}

// HandleList returns the caller's decisions
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := h.service.List(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list decisions")
		h.writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate records a decision and returns the inserted record
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.DecisionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.service.Create(r.Context(), auth.UserIDFromContext(r.Context()), in)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, d)
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to create decision")
		h.writeError(w, http.StatusInternalServerError, "failed to create decision")
	}
}

// HandleWeeklyStats returns the caller's weekly stats
func (h *Handler) HandleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.WeeklyStats(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute weekly stats")
		h.writeError(w, http.StatusInternalServerError, "failed to compute weekly stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
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
