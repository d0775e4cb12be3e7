// Package polygon implements market.Provider against the Polygon.io REST
// API. Requests carry bearer auth, are throttled client-side to stay
// inside the subscription's rate limit and retry on transient failures.
package polygon

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/jalexanderII/101-Demo/internal/market"
)

const providerName = "polygon"

// Client is a Polygon.io API client
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a new Polygon.io client authenticated with apiKey.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryConditions(retryCondition)

	return &Client{
		http: httpClient,
		// Free tier allows 5 requests per minute.
		limiter: rate.NewLimiter(rate.Every(12*time.Second), 5),
		log:     log.With().Str("client", "polygon").Logger(),
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return providerName }

// retryCondition retries on network errors and transient upstream states.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch {
	case r.StatusCode() >= 500:
		return true
	case r.StatusCode() == http.StatusTooManyRequests:
		return true
	case r.StatusCode() == http.StatusRequestTimeout:
		return true
	}
	return false
}

// Overview fetches reference details for a ticker, optionally as of a
// YYYY-MM-DD date.
func (c *Client) Overview(ctx context.Context, ticker, date string) (*market.TickerOverview, error) {
	params := map[string]string{}
	if date != "" {
		params["date"] = date
	}

	var result tickerDetailsResponse
	if err := c.get(ctx, "/v3/reference/tickers/"+ticker, params, &result); err != nil {
		return nil, fmt.Errorf("failed to get ticker details: %w", err)
	}
	if result.Results == nil {
		return nil, fmt.Errorf("no details for %s: %w", ticker, market.ErrNotFound)
	}

	return result.Results.toOverview(), nil
}

// Snapshot fetches the current trade state for a ticker.
func (c *Client) Snapshot(ctx context.Context, ticker string) (*market.Snapshot, error) {
	var result snapshotResponse
	path := "/v2/snapshot/locale/us/markets/stocks/tickers/" + ticker
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if result.Ticker == nil || result.Ticker.Ticker == "" {
		return nil, fmt.Errorf("no snapshot for %s: %w", ticker, market.ErrNotFound)
	}

	return result.Ticker.toSnapshot(), nil
}

// History fetches daily aggregate bars covering one of market.ValidPeriods,
// ending today.
func (c *Client) History(ctx context.Context, ticker, period string) ([]market.HistoryPoint, error) {
	if !market.IsValidPeriod(period) {
		return nil, market.ErrInvalidPeriod
	}

	to := time.Now().UTC()
	from := periodStart(to, period)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var result aggsResponse
	params := map[string]string{
		"adjusted": "true",
		"sort":     "asc",
		"limit":    "50000",
	}
	if err := c.get(ctx, path, params, &result); err != nil {
		return nil, fmt.Errorf("failed to get aggregates: %w", err)
	}

	points := make([]market.HistoryPoint, 0, len(result.Results))
	for i := range result.Results {
		points = append(points, result.Results[i].toHistoryPoint())
	}

	c.log.Info().
		Str("ticker", ticker).
		Str("period", period).
		Int("count", len(points)).
		Msg("Fetched historical prices")

	return points, nil
}

// Financials fetches reported financial statements for a ticker.
func (c *Client) Financials(ctx context.Context, ticker string, q market.FinancialsQuery) ([]market.FinancialPeriod, error) {
	params := map[string]string{
		"ticker": ticker,
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	if q.Timeframe != "" {
		params["timeframe"] = q.Timeframe
	}
	if q.IncludeSources {
		params["include_sources"] = "true"
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	if q.Order != "" {
		params["order"] = q.Order
	}
	if q.FilingDate != "" {
		params["filing_date"] = q.FilingDate
	}
	if q.PeriodOfReportDate != "" {
		params["period_of_report_date"] = q.PeriodOfReportDate
	}

	var result financialsResponse
	if err := c.get(ctx, "/vX/reference/financials", params, &result); err != nil {
		return nil, fmt.Errorf("failed to get financials: %w", err)
	}

	periods := make([]market.FinancialPeriod, 0, len(result.Results))
	for i := range result.Results {
		periods = append(periods, result.Results[i].toPeriod())
	}

	c.log.Info().
		Str("ticker", ticker).
		Str("timeframe", q.Timeframe).
		Int("periods", len(periods)).
		Msg("Fetched financial statements")

	return periods, nil
}

// get performs a rate-limited GET and decodes a successful response into
// out. Failures are classified into the market error taxonomy.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req := c.http.R().SetContext(ctx).SetResult(out)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return market.NewNetworkError(providerName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return market.ErrNotFound
	}
	if !resp.IsSuccess() {
		return market.NewAPIError(providerName, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return nil
}

// periodStart maps a history period onto its start date relative to end.
func periodStart(end time.Time, period string) time.Time {
	switch period {
	case "7d":
		return end.AddDate(0, 0, -7)
	case "3mo":
		return end.AddDate(0, -3, 0)
	case "6mo":
		return end.AddDate(0, -6, 0)
	case "1y":
		return end.AddDate(-1, 0, 0)
	default:
		return end
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
