package server

import (
	"net/http"
)

// Version is reported by /health and the status endpoint
const Version = "1.0.0"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "compass",
	}

	writeJSON(w, http.StatusOK, response, s.log)
}
