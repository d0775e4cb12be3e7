package tickers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexanderII/101-Demo/internal/cache"
	"github.com/jalexanderII/101-Demo/internal/market"
)

func newTestRouter(t *testing.T, p market.Provider) *chi.Mux {
	t.Helper()
	store, err := cache.New(time.Minute, 32)
	require.NoError(t, err)
	svc := NewService(p, store, zerolog.Nop())
	h := NewHandler(svc, time.Minute, zerolog.Nop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doGet(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetOverviewNormalizedResponse(t *testing.T) {
	mcap := 3000000000000.0
	provider := &fakeProvider{overview: &market.TickerOverview{
		Ticker:    "AAPL",
		Name:      "Apple Inc.",
		MarketCap: &mcap,
	}}
	router := newTestRouter(t, provider)

	rec := doGet(t, router, "/api/ticker/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var body struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
		Results   struct {
			Ticker    string  `json:"ticker"`
			Name      string  `json:"name"`
			MarketCap float64 `json:"market_cap"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "AAPL", body.Results.Ticker)
	assert.Equal(t, "Apple Inc.", body.Results.Name)
	assert.Equal(t, 3000000000000.0, body.Results.MarketCap)

	// Second request is served from cache.
	rec = doGet(t, router, "/api/ticker/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, provider.overviewCalls)
}

func TestGetOverviewLowercaseTickerIsNormalized(t *testing.T) {
	provider := &fakeProvider{overview: &market.TickerOverview{Ticker: "AAPL", Name: "Apple Inc."}}
	router := newTestRouter(t, provider)

	rec := doGet(t, router, "/api/ticker/aapl")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOverviewInvalidDate(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doGet(t, router, "/api/ticker/AAPL?date=14-11-2023")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

func TestGetOverviewUnknownTicker(t *testing.T) {
	provider := &fakeProvider{err: market.ErrNotFound}
	router := newTestRouter(t, provider)

	rec := doGet(t, router, "/api/ticker/UNKNOWNXYZ")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWNXYZ")
}

func TestGetOverviewUpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"server error maps to 502", market.NewAPIError("fake", 500, "boom"), http.StatusBadGateway},
		{"rate limit maps to 503", market.NewAPIError("fake", 429, "slow down"), http.StatusServiceUnavailable},
		{"network failure maps to 502", market.NewNetworkError("fake", context.DeadlineExceeded), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeProvider{err: tt.err})
			rec := doGet(t, router, "/api/ticker/AAPL")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetHistoryInvalidPeriod(t *testing.T) {
	router := newTestRouter(t, &fakeProvider{})

	rec := doGet(t, router, "/api/ticker/AAPL/history?period=2d")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "7d, 3mo, 6mo, 1y")
}

func TestGetHistoryResponseShape(t *testing.T) {
	provider := &fakeProvider{history: []market.HistoryPoint{
		{Date: "2023-11-01", Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Date: "2023-11-02", Open: 100.5, High: 103, Low: 100, Close: 102, Volume: 1200},
	}}
	router := newTestRouter(t, provider)

	rec := doGet(t, router, "/api/ticker/AAPL/history?period=7d")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticker string                `json:"ticker"`
		Period string                `json:"period"`
		Data   []market.HistoryPoint `json:"data"`
		Count  int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Ticker)
	assert.Equal(t, "7d", body.Period)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "2023-11-01", body.Data[0].Date)
}

func TestGetFinancialsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"bad timeframe", "/api/ticker/AAPL/financials?timeframe=monthly"},
		{"limit too large", "/api/ticker/AAPL/financials?limit=500"},
		{"limit not a number", "/api/ticker/AAPL/financials?limit=ten"},
		{"bad order", "/api/ticker/AAPL/financials?order=sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeProvider{})
			rec := doGet(t, router, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetPriceSummary(t *testing.T) {
	provider := &fakeProvider{history: []market.HistoryPoint{
		{Date: "2023-11-01", Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Date: "2023-11-02", Open: 100, High: 111, Low: 100, Close: 110, Volume: 2000},
	}}
	router := newTestRouter(t, provider)

	rec := doGet(t, router, "/api/ticker/AAPL/price-summary?period=3mo")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary market.PriceSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "AAPL", summary.Ticker)
	assert.Equal(t, "3mo", summary.Period)
	assert.InDelta(t, 10.0, summary.Change, 1e-9)
	assert.InDelta(t, 10.0, summary.ChangePercent, 1e-9)
}
