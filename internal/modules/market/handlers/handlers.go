// Package handlers provides HTTP handlers for market data and the index stream.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles market HTTP requests
type Handler struct {
	board   *market.IndexBoard
	service *market.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new market handler. bus may be nil, which disables streaming updates.
func NewHandler(board *market.IndexBoard, service *market.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		board:   board,
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers market routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/indices", h.HandleIndices)          // Current index snapshot
		r.Post("/indices/refresh", h.HandleRefresh) // Refresh now
		r.Get("/quotes/{symbol}", h.HandleQuote)    // Latest quote
		r.Get("/history/{symbol}", h.HandleHistory) // Daily closes, ?period=3mo
		r.Get("/stream", h.HandleStream)            // Websocket snapshots, ?format=msgpack
	})

	r.Get("/stocks/{symbol}/card", h.HandleStockCard) // Quote, logo and indicators
}

// HandleIndices returns the index board snapshot
func (h *Handler) HandleIndices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.board.Snapshot())
}

// HandleRefresh refreshes the board synchronously and returns the new snapshot
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.board.Refresh(r.Context()))
}

// HandleQuote returns the latest quote for a symbol
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleUpstreamError(w, err, "Failed to fetch quote")
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

// HandleHistory returns daily closes for a symbol
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.History(r.Context(), chi.URLParam(r, "symbol"), r.URL.Query().Get("period"))
	if err != nil {
		h.handleUpstreamError(w, err, "Failed to fetch history")
		return
	}
	h.writeJSON(w, http.StatusOK, points)
}

// HandleStockCard returns the stock card for a symbol
func (h *Handler) HandleStockCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.Card(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.handleUpstreamError(w, err, "Failed to build stock card")
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

func (h *Handler) handleUpstreamError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "symbol not found")
	default:
		h.log.Warn().Err(err).Msg(msg)
		h.writeError(w, http.StatusBadGateway, "market data unavailable")
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
