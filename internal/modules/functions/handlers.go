// Package functions serves the proxy functions that wrap third-party market
// APIs behind a single {action, ...params} request shape.
package functions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aristath/compass/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Function names
const (
	MarketNews  = "market-news"
	CompanyLogo = "company-logo"
)

// Actions
const (
	ActionGeneral = "general"
	ActionCompany = "company"
	ActionLogo    = "logo"
)

// Request is the body accepted by every function
type Request struct {
	Action   string `json:"action"`
	Category string `json:"category,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// errInvalidRequest marks failures caused by the request itself
var errInvalidRequest = errors.New("invalid request")

// Handler dispatches function invocations
type Handler struct {
	news  domain.NewsFetcher
	logos domain.LogoFetcher
	log   zerolog.Logger
}

// NewHandler creates the function handler
func NewHandler(news domain.NewsFetcher, logos domain.LogoFetcher, log zerolog.Logger) *Handler {
	return &Handler{
		news:  news,
		logos: logos,
		log:   log.With().Str("handler", "functions").Logger(),
	}
}

// RegisterRoutes registers /functions/v1 routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
			MaxAge:         300,
		}))

		r.Options("/{name}", h.HandlePreflight) // Non-browser preflight
		r.Post("/{name}", h.HandleInvoke)       // Invoke a function
	})
}

// HandlePreflight answers OPTIONS with an empty body and permissive headers
func (h *Handler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

// HandleInvoke runs the named function
func (h *Handler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var field string
	switch name {
	case MarketNews:
		field = "data"
	case CompanyLogo:
		field = "logoUrl"
	default:
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown function %q", name)})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, name, field, fmt.Errorf("%w: body must be a JSON object", errInvalidRequest))
		return
	}
	req.Action = strings.TrimSpace(req.Action)

	var (
		result interface{}
		err    error
	)
	if name == MarketNews {
		result, err = h.marketNews(r, req)
	} else {
		result, err = h.companyLogo(r, req)
	}
	if err != nil {
		h.fail(w, name, field, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{field: result})
}

func (h *Handler) marketNews(r *http.Request, req Request) (json.RawMessage, error) {
	if h.news == nil {
		return nil, fmt.Errorf("news provider: %w", domain.ErrMissingAPIKey)
	}

	switch req.Action {
	case ActionGeneral:
		category := req.Category
		if category == "" {
			category = "general"
		}
		return h.news.GetMarketNews(r.Context(), category)
	case ActionCompany:
		if req.Symbol == "" || req.From == "" || req.To == "" {
			return nil, fmt.Errorf("%w: symbol, from and to are required", errInvalidRequest)
		}
		return h.news.GetCompanyNews(r.Context(), strings.ToUpper(req.Symbol), req.From, req.To)
	default:
		return nil, fmt.Errorf("%w: invalid action %q", errInvalidRequest, req.Action)
	}
}

func (h *Handler) companyLogo(r *http.Request, req Request) (*string, error) {
	if h.logos == nil {
		return nil, fmt.Errorf("logo provider: %w", domain.ErrMissingAPIKey)
	}
	if req.Action != ActionLogo {
		return nil, fmt.Errorf("%w: invalid action %q", errInvalidRequest, req.Action)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", errInvalidRequest)
	}

	logo, err := h.logos.GetLogoURL(r.Context(), strings.ToUpper(strings.TrimSpace(req.Symbol)))
	if err != nil {
		return nil, err
	}
	if logo == "" {
		return nil, nil
	}
	return &logo, nil
}

// fail writes the normalized {error, <field>: null} body with status 500
func (h *Handler) fail(w http.ResponseWriter, name, field string, err error) {
	if errors.Is(err, errInvalidRequest) || errors.Is(err, domain.ErrMissingAPIKey) {
		h.log.Warn().Err(err).Str("function", name).Msg("Function request rejected")
	} else {
		h.log.Error().Err(err).Str("function", name).Msg("Function call failed")
	}
	h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": err.Error(),
		field:   nil,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
