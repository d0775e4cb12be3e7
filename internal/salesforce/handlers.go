package salesforce

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// accountsQuery is the canned SOQL behind the accounts convenience
// endpoint.
const accountsQuery = "SELECT Id, Name, Industry, AnnualRevenue, Website FROM Account ORDER BY Name LIMIT 50"

// Handler handles Salesforce proxy HTTP requests
type Handler struct {
	cfg    *Config
	client *Client
	tokens *TokenManager
	log    zerolog.Logger

	// state of the in-flight operator authorization, one at a time
	stateMu    sync.Mutex
	oauthState string
}

// NewHandler creates a new Salesforce proxy handler.
func NewHandler(cfg *Config, client *Client, tokens *TokenManager, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		client: client,
		tokens: tokens,
		log:    log.With().Str("handler", "salesforce").Logger(),
	}
}

// RegisterRoutes mounts the proxy endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/salesforce", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/accounts", h.HandleAccounts)
		r.Post("/query", h.HandleQuery)
	})
	r.Route("/auth/salesforce", func(r chi.Router) {
		r.Get("/start", h.HandleAuthStart)
		r.Get("/callback", h.HandleAuthCallback)
	})
}

// StatusResponse reports whether the proxy can reach Salesforce.
type StatusResponse struct {
	Configured  bool     `json:"configured"`
	Connected   bool     `json:"connected"`
	InstanceURL string   `json:"instance_url,omitempty"`
	Missing     []string `json:"missing"`
}

// HandleStatus reports credential and connection state
// GET /api/salesforce/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		Configured: h.cfg.Configured(),
		Missing:    h.cfg.Missing(),
	}
	if token, err := h.currentOrRefreshed(r); err == nil && token != nil {
		status.Connected = true
		status.InstanceURL = token.InstanceURL
	}
	h.writeJSON(w, http.StatusOK, status)
}

// HandleAccounts returns the fifty first accounts by name
// GET /api/salesforce/accounts
func (h *Handler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, accountsQuery)
}

// HandleQuery forwards an arbitrary SOQL query
// POST /api/salesforce/query {"query": "SELECT ..."}
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be JSON with a 'query' field")
		return
	}
	soql := strings.TrimSpace(body.Query)
	if soql == "" {
		h.writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	h.runQuery(w, r, soql)
}

// runQuery is the shared query path: refresh-if-needed, forward, classify.
func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request, soql string) {
	if !h.cfg.Configured() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"message": "Salesforce credentials are missing; set " + strings.Join(h.cfg.Missing(), ", "),
			"missing": h.cfg.Missing(),
		})
		return
	}

	token, err := h.tokens.Get(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Token refresh failed")
		h.writeError(w, http.StatusServiceUnavailable, "Unable to authenticate with Salesforce; check credential configuration")
		return
	}

	result, err := h.client.Query(r.Context(), token, soql)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// writeQueryError maps Salesforce query failures onto HTTP statuses.
func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	var queryErr *QueryError
	switch {
	case errors.Is(err, ErrUnauthorized):
		// The token died before its expected expiry; drop it so the next
		// request refreshes. No retry within this request.
		h.tokens.Invalidate()
		h.writeError(w, http.StatusBadGateway, "Salesforce session expired, try again")
	case errors.As(err, &queryErr):
		h.log.Warn().Int("status", queryErr.StatusCode).Str("message", queryErr.Message).Msg("Query rejected")
		if queryErr.BadRequest() {
			h.writeError(w, http.StatusBadRequest, queryErr.Message)
			return
		}
		h.writeError(w, http.StatusBadGateway, queryErr.Message)
	default:
		h.log.Error().Err(err).Msg("Query request failed")
		h.writeError(w, http.StatusBadGateway, "Salesforce request failed")
	}
}

// HandleAuthStart redirects the operator into the authorization flow
// GET /auth/salesforce/start
func (h *Handler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ClientID == "" {
		h.writeError(w, http.StatusServiceUnavailable, "SALESFORCE_CLIENT_ID is not configured")
		return
	}

	state := uuid.NewString()
	h.stateMu.Lock()
	h.oauthState = state
	h.stateMu.Unlock()

	http.Redirect(w, r, h.client.AuthorizeURL(h.cfg.RedirectURI, state), http.StatusFound)
}

// HandleAuthCallback exchanges the authorization code and hands the
// refresh token back to the operator
// GET /auth/salesforce/callback?code=&state=
func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	h.stateMu.Lock()
	expected := h.oauthState
	h.oauthState = ""
	h.stateMu.Unlock()

	if expected == "" || query.Get("state") != expected {
		h.writeError(w, http.StatusBadRequest, "state mismatch; restart the flow at /auth/salesforce/start")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	payload, err := h.client.ExchangeAuthCode(r.Context(), code, h.cfg.RedirectURI)
	if err != nil {
		h.log.Error().Err(err).Msg("Authorization code exchange failed")
		h.writeError(w, http.StatusBadGateway, "Failed to exchange authorization code")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Place the refresh token into SALESFORCE_REFRESH_TOKEN and restart the proxy",
		"refresh_token": payload.RefreshToken,
		"instance_url":  payload.InstanceURL,
	})
}

// currentOrRefreshed returns a usable token for status reporting,
// attempting one refresh when credentials exist but the slot is empty.
func (h *Handler) currentOrRefreshed(r *http.Request) (*Token, error) {
	if !h.cfg.Configured() {
		return nil, errors.New("not configured")
	}
	if token := h.tokens.Current(); token != nil {
		return token, nil
	}
	return h.tokens.Get(r.Context())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
