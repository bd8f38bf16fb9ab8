// Package handlers provides HTTP handlers for authentication.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *auth.Service
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *auth.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers auth routes under /auth/v1
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", h.HandleSignUp)
		r.Post("/token", h.HandleToken)
		r.Get("/user", h.HandleGetUser)
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignUp creates an account and returns a session
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, session)
	case errors.Is(err, auth.ErrEmailTaken):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Sign up failed")
		h.writeError(w, http.StatusInternalServerError, "failed to create account")
	}
}

// HandleToken exchanges email and password for a session
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, session)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.log.Error().Err(err).Msg("Sign in failed")
		h.writeError(w, http.StatusInternalServerError, "failed to sign in")
	}
}

// HandleGetUser returns {user} for the bearer token, or {user: null} when anonymous
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		// token for a deleted account
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user")
		h.writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
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
