// Package handlers provides HTTP handlers for portfolios and holdings.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

type createPortfolioRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// HandleList returns the caller's portfolios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, "failed to list portfolios")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate creates a portfolio
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.Create(r.Context(), auth.UserIDFromContext(r.Context()), req.Name, req.Description)
	if err != nil {
		h.handleServiceError(w, err, "Failed to create portfolio")
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleListPositions returns the positions of a portfolio
func (h *Handler) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to list positions")
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleSetPosition adds or replaces a position
func (h *Handler) HandleSetPosition(w http.ResponseWriter, r *http.Request) {
	var in portfolio.PositionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := h.service.SetPosition(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.handleServiceError(w, err, "Failed to save position")
		return
	}
	h.writeJSON(w, http.StatusOK, pos)
}

// HandleDeletePosition removes a position
func (h *Handler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemovePosition(r.Context(), auth.UserIDFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to delete position")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHoldings returns the portfolio valued at live prices
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Holdings(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to value holdings")
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	default:
		h.log.Error().Err(err).Msg(msg)
		h.writeError(w, http.StatusInternalServerError, "internal error")
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
