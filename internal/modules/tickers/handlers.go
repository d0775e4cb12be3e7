package tickers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jalexanderII/101-Demo/internal/market"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const (
	defaultHistoryPeriod  = "7d"
	defaultFinancialLimit = 8
	maxFinancialLimit     = 100
)

// Handler handles ticker HTTP requests
type Handler struct {
	service *Service
	maxAge  int
	log     zerolog.Logger
}

// NewHandler creates a new ticker handler. ttl drives the Cache-Control
// max-age advertised on cacheable responses.
func NewHandler(service *Service, ttl time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		maxAge:  int(ttl.Seconds()),
		log:     log.With().Str("handler", "tickers").Logger(),
	}
}

// RegisterRoutes mounts the ticker endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ticker/{ticker}", func(r chi.Router) {
		r.Get("/", h.HandleGetOverview)
		r.Get("/snapshot", h.HandleGetSnapshot)
		r.Get("/financials", h.HandleGetFinancials)
		r.Get("/history", h.HandleGetHistory)
		r.Get("/price-summary", h.HandleGetPriceSummary)
	})
}

// HandleGetOverview returns company details for a ticker
// GET /api/ticker/{ticker}?date=YYYY-MM-DD
func (h *Handler) HandleGetOverview(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" && !datePattern.MatchString(date) {
		h.writeError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		return
	}

	result, err := h.service.Overview(r.Context(), ticker, date)
	if err != nil {
		h.writeMarketError(w, err, fmt.Sprintf("No details found for ticker '%s'", ticker))
		return
	}
	h.writeCached(w, result)
}

// HandleGetSnapshot returns the latest trade state for a ticker
// GET /api/ticker/{ticker}/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r)
	if !ok {
		return
	}

	result, err := h.service.Snapshot(r.Context(), ticker)
	if err != nil {
		h.writeMarketError(w, err, fmt.Sprintf("No snapshot found for ticker '%s'", ticker))
		return
	}
	h.writeCached(w, result)
}

// HandleGetFinancials returns financial statements for a ticker
// GET /api/ticker/{ticker}/financials?timeframe=&limit=&include_sources=&sort=&order=&filing_date=&period_of_report_date=
func (h *Handler) HandleGetFinancials(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	timeframe := query.Get("timeframe")
	if timeframe != "" && timeframe != "annual" && timeframe != "quarterly" && timeframe != "ttm" {
		h.writeError(w, http.StatusBadRequest, "timeframe must be one of: annual, quarterly, ttm")
		return
	}

	limit := defaultFinancialLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxFinancialLimit {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", maxFinancialLimit))
			return
		}
		limit = parsed
	}

	includeSources := false
	if raw := query.Get("include_sources"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "include_sources must be a boolean")
			return
		}
		includeSources = parsed
	}

	order := query.Get("order")
	if order != "" && order != "asc" && order != "desc" {
		h.writeError(w, http.StatusBadRequest, "order must be one of: asc, desc")
		return
	}

	q := market.FinancialsQuery{
		Timeframe:          timeframe,
		Limit:              limit,
		IncludeSources:     includeSources,
		Sort:               query.Get("sort"),
		Order:              order,
		FilingDate:         query.Get("filing_date"),
		PeriodOfReportDate: query.Get("period_of_report_date"),
	}

	result, err := h.service.Financials(r.Context(), ticker, q)
	if err != nil {
		h.writeMarketError(w, err, fmt.Sprintf("No financials found for ticker '%s'", ticker))
		return
	}
	h.writeCached(w, result)
}

// HandleGetHistory returns daily closing prices for a ticker
// GET /api/ticker/{ticker}/history?period=7d|3mo|6mo|1y
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r)
	if !ok {
		return
	}

	period, ok := h.period(w, r)
	if !ok {
		return
	}

	result, err := h.service.History(r.Context(), ticker, period)
	if err != nil {
		h.writeMarketError(w, err, fmt.Sprintf("No historical data found for ticker '%s'", ticker))
		return
	}
	h.writeCached(w, result)
}

// HandleGetPriceSummary returns aggregate statistics over the history series
// GET /api/ticker/{ticker}/price-summary?period=7d|3mo|6mo|1y
func (h *Handler) HandleGetPriceSummary(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r)
	if !ok {
		return
	}

	period, ok := h.period(w, r)
	if !ok {
		return
	}

	result, err := h.service.PriceSummary(r.Context(), ticker, period)
	if err != nil {
		h.writeMarketError(w, err, fmt.Sprintf("No historical data found for ticker '%s'", ticker))
		return
	}
	h.writeCached(w, result)
}

// ticker extracts and normalizes the path ticker, writing a 400 on failure.
func (h *Handler) ticker(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker, err := market.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid ticker symbol")
		return "", false
	}
	return ticker, true
}

// period extracts the period query parameter, writing a 400 when it is not
// one of the supported ranges.
func (h *Handler) period(w http.ResponseWriter, r *http.Request) (string, bool) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = defaultHistoryPeriod
	}
	if !market.IsValidPeriod(period) {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid period. Must be one of: %s", strings.Join(market.ValidPeriods, ", ")))
		return "", false
	}
	return period, true
}

// writeCached writes a payload from the service along with cache headers.
func (h *Handler) writeCached(w http.ResponseWriter, result Result) {
	w.Header().Set("Content-Type", "application/json")
	if result.Hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAge))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write response")
	}
}

// writeMarketError maps provider errors onto HTTP statuses. notFoundMsg is
// used when the upstream reports the ticker as unknown.
func (h *Handler) writeMarketError(w http.ResponseWriter, err error, notFoundMsg string) {
	var apiErr *market.APIError
	switch {
	case errors.Is(err, market.ErrInvalidTicker):
		h.writeError(w, http.StatusBadRequest, "invalid ticker symbol")
	case errors.Is(err, market.ErrInvalidPeriod):
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid period. Must be one of: %s", strings.Join(market.ValidPeriods, ", ")))
	case errors.Is(err, market.ErrNotFound):
		h.writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.As(err, &apiErr):
		h.log.Warn().Err(err).Str("provider", apiErr.Provider).Int("status", apiErr.StatusCode).Msg("Upstream request failed")
		if apiErr.RateLimited() {
			h.writeError(w, http.StatusServiceUnavailable, "Upstream rate limit exceeded, try again shortly")
			return
		}
		h.writeError(w, http.StatusBadGateway, "Upstream market data request failed")
	default:
		h.log.Error().Err(err).Msg("Unexpected error serving market data")
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
