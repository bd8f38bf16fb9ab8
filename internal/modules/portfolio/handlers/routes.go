package handlers

import (
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)                           // Caller's portfolios; empty when anonymous
		r.With(auth.RequireAuth).Post("/", h.HandleCreate) // Create a portfolio

		r.Route("/{id}", func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/positions", h.HandleListPositions)              // Persisted positions
			r.Post("/positions", h.HandleSetPosition)               // Add or replace a position
			r.Delete("/positions/{symbol}", h.HandleDeletePosition) // Remove a position
			r.Get("/holdings", h.HandleHoldings)                    // Positions valued at live prices
		})
	})
}
