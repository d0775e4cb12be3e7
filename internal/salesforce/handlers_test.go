package salesforce

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSalesforce stands in for both the login host and the instance.
type fakeSalesforce struct {
	server      *httptest.Server
	tokenCalls  int
	queryCalls  int
	lastSOQL    string
	tokenStatus int
	queryStatus int
	queryBody   string
}

func newFakeSalesforce(t *testing.T) *fakeSalesforce {
	t.Helper()
	f := &fakeSalesforce{
		tokenStatus: http.StatusOK,
		queryStatus: http.StatusOK,
		queryBody:   `{"totalSize":1,"done":true,"records":[{"Name":"Acme"}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"expired access/refresh token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(TokenPayload{
			AccessToken: "00D-access",
			InstanceURL: f.server.URL,
		})
	})
	mux.HandleFunc("/services/data/v59.0/query", func(w http.ResponseWriter, r *http.Request) {
		f.queryCalls++
		f.lastSOQL = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.queryStatus)
		_, _ = w.Write([]byte(f.queryBody))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestProxy(t *testing.T, cfg *Config) (*chi.Mux, *Handler) {
	t.Helper()
	client := NewClient(cfg, zerolog.Nop())
	tokens := NewTokenManager(client, cfg.RefreshToken, zerolog.Nop())
	handler := NewHandler(cfg, client, tokens, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, handler
}

func configuredConfig(loginURL string) *Config {
	return &Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		LoginURL:     loginURL,
		APIVersion:   "v59.0",
		RedirectURI:  "http://localhost:3001/auth/salesforce/callback",
	}
}

func postQuery(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/salesforce/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestQueryWithoutCredentials(t *testing.T) {
	cfg := configuredConfig("https://login.salesforce.com")
	cfg.RefreshToken = ""
	router, _ := newTestProxy(t, cfg)

	rec := postQuery(t, router, `{"query":"SELECT Id FROM Account"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Message string   `json:"message"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "credentials are missing")
	assert.Equal(t, []string{"SALESFORCE_REFRESH_TOKEN"}, body.Missing)
}

func TestQueryEmptyBody(t *testing.T) {
	router, _ := newTestProxy(t, configuredConfig("https://login.salesforce.com"))

	rec := postQuery(t, router, `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postQuery(t, router, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryForwardsSOQL(t *testing.T) {
	upstream := newFakeSalesforce(t)
	router, _ := newTestProxy(t, configuredConfig(upstream.server.URL))

	rec := postQuery(t, router, `{"query":"SELECT Id, Name FROM Account"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalSize)
	assert.True(t, result.Done)
	assert.Equal(t, "SELECT Id, Name FROM Account", upstream.lastSOQL)
	assert.Equal(t, 1, upstream.tokenCalls)

	// The second query reuses the cached token.
	rec = postQuery(t, router, `{"query":"SELECT Id FROM Contact"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, upstream.tokenCalls)
	assert.Equal(t, 2, upstream.queryCalls)
}

func TestQueryRefreshFailure(t *testing.T) {
	upstream := newFakeSalesforce(t)
	upstream.tokenStatus = http.StatusBadRequest
	router, _ := newTestProxy(t, configuredConfig(upstream.server.URL))

	rec := postQuery(t, router, `{"query":"SELECT Id FROM Account"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, upstream.tokenCalls, "refresh is attempted exactly once per request")
	assert.Equal(t, 0, upstream.queryCalls)
}

func TestQueryInvalidSOQL(t *testing.T) {
	upstream := newFakeSalesforce(t)
	upstream.queryStatus = http.StatusBadRequest
	upstream.queryBody = `[{"message":"unexpected token: FORM","errorCode":"MALFORMED_QUERY"}]`
	router, _ := newTestProxy(t, configuredConfig(upstream.server.URL))

	rec := postQuery(t, router, `{"query":"SELECT Id FORM Account"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unexpected token")
}

func TestQueryExpiredSessionInvalidatesToken(t *testing.T) {
	upstream := newFakeSalesforce(t)
	upstream.queryStatus = http.StatusUnauthorized
	upstream.queryBody = `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`
	router, handler := newTestProxy(t, configuredConfig(upstream.server.URL))

	rec := postQuery(t, router, `{"query":"SELECT Id FROM Account"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Nil(t, handler.tokens.Current(), "rejected token must be dropped")

	// The next request performs a fresh refresh.
	upstream.queryStatus = http.StatusOK
	upstream.queryBody = `{"totalSize":0,"done":true,"records":[]}`
	rec = postQuery(t, router, `{"query":"SELECT Id FROM Account"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, upstream.tokenCalls)
}

func TestAccountsUsesCannedQuery(t *testing.T) {
	upstream := newFakeSalesforce(t)
	router, _ := newTestProxy(t, configuredConfig(upstream.server.URL))

	req := httptest.NewRequest(http.MethodGet, "/api/salesforce/accounts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, accountsQuery, upstream.lastSOQL)
}

func TestStatusUnconfigured(t *testing.T) {
	cfg := &Config{LoginURL: "https://login.salesforce.com", APIVersion: "v59.0"}
	router, _ := newTestProxy(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/salesforce/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Configured)
	assert.False(t, status.Connected)
	assert.ElementsMatch(t, []string{
		"SALESFORCE_CLIENT_ID", "SALESFORCE_CLIENT_SECRET", "SALESFORCE_REFRESH_TOKEN",
	}, status.Missing)
}

func TestStatusConnected(t *testing.T) {
	upstream := newFakeSalesforce(t)
	router, _ := newTestProxy(t, configuredConfig(upstream.server.URL))

	req := httptest.NewRequest(http.MethodGet, "/api/salesforce/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Configured)
	assert.True(t, status.Connected)
	assert.Equal(t, upstream.server.URL, status.InstanceURL)
}

func TestAuthCallbackStateMismatch(t *testing.T) {
	router, _ := newTestProxy(t, configuredConfig("https://login.salesforce.com"))

	req := httptest.NewRequest(http.MethodGet, "/auth/salesforce/callback?code=abc&state=forged", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "state mismatch")
}

func TestAuthStartRedirects(t *testing.T) {
	cfg := configuredConfig("https://login.salesforce.com")
	router, _ := newTestProxy(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/auth/salesforce/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://login.salesforce.com/services/oauth2/authorize")
	assert.Contains(t, location, "response_type=code")
	assert.Contains(t, location, "state=")
}
