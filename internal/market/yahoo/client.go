// Package yahoo implements market.Provider against the public Yahoo
// Finance query API. Quotes come from v7/finance/quote, history from
// v8/finance/chart and company data from v10/finance/quoteSummary.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jalexanderII/101-Demo/internal/market"
)

const providerName = "yahoo"

// Client is a Yahoo Finance API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return providerName }

// Snapshot fetches the current quote for a ticker. Yahoo cannot supply a
// full previous-day bar, so PrevDay is omitted.
func (c *Client) Snapshot(ctx context.Context, ticker string) (*market.Snapshot, error) {
	params := url.Values{}
	params.Add("symbols", ticker)
	params.Add("fields", "symbol,regularMarketPrice,regularMarketChange,regularMarketChangePercent,"+
		"regularMarketTime,regularMarketOpen,regularMarketDayHigh,regularMarketDayLow,regularMarketVolume")

	var result struct {
		QuoteResponse struct {
			Result []map[string]interface{} `json:"result"`
			Error  interface{}              `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := c.getJSON(ctx, "/v7/finance/quote", params, &result); err != nil {
		return nil, err
	}
	if result.QuoteResponse.Error != nil {
		return nil, market.NewAPIError(providerName, 0, fmt.Sprintf("quote API error: %v", result.QuoteResponse.Error))
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s: %w", ticker, market.ErrNotFound)
	}

	info := result.QuoteResponse.Result[0]
	snap := &market.Snapshot{
		Ticker:           getString(info, "symbol", ticker),
		Price:            getFloat64OrZero(info, "regularMarketPrice"),
		TodaysChange:     getFloat64OrZero(info, "regularMarketChange"),
		TodaysChangePerc: getFloat64OrZero(info, "regularMarketChangePercent"),
	}
	if ts := getInt64(info, "regularMarketTime"); ts != nil {
		snap.Updated = *ts * int64(time.Second) // unix nanos
	}
	if snap.Price > 0 {
		snap.Day = &market.OHLCV{
			Open:   getFloat64OrZero(info, "regularMarketOpen"),
			High:   getFloat64OrZero(info, "regularMarketDayHigh"),
			Low:    getFloat64OrZero(info, "regularMarketDayLow"),
			Close:  snap.Price,
			Volume: getFloat64OrZero(info, "regularMarketVolume"),
		}
	}

	return snap, nil
}

// History fetches daily OHLCV bars for one of market.ValidPeriods.
func (c *Client) History(ctx context.Context, ticker, period string) ([]market.HistoryPoint, error) {
	if !market.IsValidPeriod(period) {
		return nil, market.ErrInvalidPeriod
	}

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", period)

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []float64 `json:"open"`
						High   []float64 `json:"high"`
						Low    []float64 `json:"low"`
						Close  []float64 `json:"close"`
						Volume []int64   `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), params, &result); err != nil {
		return nil, err
	}
	if result.Chart.Error != nil {
		return nil, market.NewAPIError(providerName, 0, fmt.Sprintf("chart API error: %v", result.Chart.Error))
	}
	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no historical data for %s: %w", ticker, market.ErrNotFound)
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Warn().Str("ticker", ticker).Msg("No quote data in chart response")
		return []market.HistoryPoint{}, nil
	}
	quote := chartData.Indicators.Quote[0]

	var points []market.HistoryPoint
	for i, ts := range chartData.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		// Yahoo returns null rows for holidays and halts
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}
		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}
		points = append(points, market.HistoryPoint{
			Date:   time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:   round2(quote.Open[i]),
			High:   round2(quote.High[i]),
			Low:    round2(quote.Low[i]),
			Close:  round2(quote.Close[i]),
			Volume: volume,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	c.log.Info().
		Str("ticker", ticker).
		Str("period", period).
		Int("count", len(points)).
		Msg("Fetched historical prices")

	return points, nil
}

// quoteSummary fetches the requested v10 quoteSummary modules for a ticker
// and returns the first result as a module-name -> payload map.
func (c *Client) quoteSummary(ctx context.Context, ticker, modules string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("modules", modules)

	var result struct {
		QuoteSummary struct {
			Result []map[string]interface{} `json:"result"`
			Error  interface{}              `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := c.getJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(ticker), params, &result); err != nil {
		return nil, err
	}
	if result.QuoteSummary.Error != nil {
		return nil, market.NewAPIError(providerName, 0, fmt.Sprintf("quoteSummary API error: %v", result.QuoteSummary.Error))
	}
	if len(result.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no summary data for %s: %w", ticker, market.ErrNotFound)
	}

	return result.QuoteSummary.Result[0], nil
}

// getJSON performs a GET against the Yahoo query API and decodes the
// response. Non-200 responses are classified into the market error
// taxonomy; 404 means the symbol is unknown.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.NewNetworkError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return market.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return market.NewAPIError(providerName, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Helper functions to safely extract values from map

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func getFloat64OrZero(m map[string]interface{}, key string) float64 {
	if val := getFloat64(m, key); val != nil {
		return *val
	}
	return 0
}

func getInt64(m map[string]interface{}, key string) *int64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			i := int64(v)
			return &i
		case int:
			i := int64(v)
			return &i
		case int64:
			return &v
		}
	}
	return nil
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getMap returns a nested object field.
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if val, ok := m[key]; ok && val != nil {
		if mm, ok := val.(map[string]interface{}); ok {
			return mm
		}
	}
	return nil
}

// rawFloat extracts a numeric quoteSummary field, unwrapping Yahoo's
// {"raw": n, "fmt": "..."} envelope when present.
func rawFloat(m map[string]interface{}, key string) *float64 {
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case float64:
		return &v
	case map[string]interface{}:
		return getFloat64(v, "raw")
	}
	return nil
}

// rawDate extracts an endDate-style field as YYYY-MM-DD, accepting either
// the fmt string or a raw unix timestamp.
func rawDate(m map[string]interface{}, key string) string {
	obj := getMap(m, key)
	if obj == nil {
		return ""
	}
	if s := getString(obj, "fmt", ""); s != "" {
		return s
	}
	if raw := getFloat64(obj, "raw"); raw != nil {
		return time.Unix(int64(*raw), 0).UTC().Format("2006-01-02")
	}
	return ""
}
