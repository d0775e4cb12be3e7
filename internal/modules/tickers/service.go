// Package tickers serves normalized market data over HTTP, fronting the
// configured provider with the shared response cache.
package tickers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/jalexanderII/101-Demo/internal/cache"
	"github.com/jalexanderII/101-Demo/internal/market"
	"github.com/jalexanderII/101-Demo/internal/metrics"
)

// Service implements the cache-aside read path: serve from the store on a
// hit, otherwise call the provider synchronously, cache the marshaled
// response and return it. Provider failures are never cached.
type Service struct {
	provider market.Provider
	store    *cache.Store
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a ticker data service backed by provider and store.
func NewService(provider market.Provider, store *cache.Store, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		log:      log.With().Str("component", "tickers").Logger(),
		now:      time.Now,
	}
}

// Result carries a response payload plus its cache disposition.
type Result struct {
	Data json.RawMessage
	Hit  bool
}

// envelope mirrors the Polygon-style response wrapper. Overview and
// financials payloads ride in Results, snapshots in Ticker.
type envelope struct {
	RequestID string      `json:"request_id"`
	Results   interface{} `json:"results,omitempty"`
	Ticker    interface{} `json:"ticker,omitempty"`
	Count     *int        `json:"count,omitempty"`
	Status    string      `json:"status"`
}

// historyResponse is the history endpoint payload.
type historyResponse struct {
	Ticker string                `json:"ticker"`
	Period string                `json:"period"`
	Data   []market.HistoryPoint `json:"data"`
	Count  int                   `json:"count"`
}

// Overview returns company metadata for a ticker. When date is empty the
// cache key carries the current date, so overview entries roll over daily
// even if the TTL has not elapsed.
func (s *Service) Overview(ctx context.Context, ticker, date string) (Result, error) {
	key := fmt.Sprintf("overview_%s_%s", ticker, s.effectiveDate(date))
	return s.fetch(ctx, "overview", key, func(ctx context.Context) (interface{}, error) {
		overview, err := s.provider.Overview(ctx, ticker, date)
		if err != nil {
			return nil, err
		}
		return envelope{RequestID: uuid.NewString(), Results: overview, Status: "OK"}, nil
	})
}

// Snapshot returns the current trade state for a ticker.
func (s *Service) Snapshot(ctx context.Context, ticker string) (Result, error) {
	key := fmt.Sprintf("snapshot_%s_%s", ticker, s.effectiveDate(""))
	return s.fetch(ctx, "snapshot", key, func(ctx context.Context) (interface{}, error) {
		snap, err := s.provider.Snapshot(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return envelope{RequestID: uuid.NewString(), Ticker: snap, Status: "OK"}, nil
	})
}

// Financials returns financial statements for a ticker. Every query
// parameter participates in the cache key.
func (s *Service) Financials(ctx context.Context, ticker string, q market.FinancialsQuery) (Result, error) {
	key := fmt.Sprintf("financials_%s_%s_%d_%t_%s_%s_%s_%s_%s",
		ticker, q.Timeframe, q.Limit, q.IncludeSources, q.Sort, q.Order,
		q.FilingDate, q.PeriodOfReportDate, s.effectiveDate(""))
	return s.fetch(ctx, "financials", key, func(ctx context.Context) (interface{}, error) {
		periods, err := s.provider.Financials(ctx, ticker, q)
		if err != nil {
			return nil, err
		}
		count := len(periods)
		return envelope{RequestID: uuid.NewString(), Results: periods, Count: &count, Status: "OK"}, nil
	})
}

// History returns daily bars for a ticker over one of market.ValidPeriods.
// An empty series is treated as an unknown ticker and never cached.
func (s *Service) History(ctx context.Context, ticker, period string) (Result, error) {
	key := fmt.Sprintf("history_%s_%s_%s", ticker, period, s.effectiveDate(""))
	return s.fetch(ctx, "history", key, func(ctx context.Context) (interface{}, error) {
		points, err := s.provider.History(ctx, ticker, period)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("no historical data for %s: %w", ticker, market.ErrNotFound)
		}
		return historyResponse{Ticker: ticker, Period: period, Data: points, Count: len(points)}, nil
	})
}

// PriceSummary aggregates the history series into headline statistics.
func (s *Service) PriceSummary(ctx context.Context, ticker, period string) (Result, error) {
	key := fmt.Sprintf("price-summary_%s_%s_%s", ticker, period, s.effectiveDate(""))
	return s.fetch(ctx, "price_summary", key, func(ctx context.Context) (interface{}, error) {
		points, err := s.provider.History(ctx, ticker, period)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("no historical data for %s: %w", ticker, market.ErrNotFound)
		}
		return buildPriceSummary(ticker, period, points), nil
	})
}

// fetch is the cache-aside core shared by every endpoint. Concurrent
// misses for one key may each call load; the last write wins.
func (s *Service) fetch(ctx context.Context, endpoint, key string, load func(context.Context) (interface{}, error)) (Result, error) {
	if data, ok := s.store.Get(key); ok {
		metrics.RecordCacheLookup(endpoint, true)
		s.log.Debug().Str("key", key).Msg("Cache hit")
		return Result{Data: data, Hit: true}, nil
	}
	metrics.RecordCacheLookup(endpoint, false)

	start := s.now()
	value, err := load(ctx)
	metrics.RecordUpstreamRequest(s.provider.Name(), endpoint, time.Since(start), err)
	if err != nil {
		return Result{}, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal %s response: %w", endpoint, err)
	}
	s.store.Set(key, data)

	s.log.Debug().
		Str("key", key).
		Str("provider", s.provider.Name()).
		Msg("Cache miss, stored fresh response")

	return Result{Data: data, Hit: false}, nil
}

// effectiveDate returns date, or today when empty, for daily key rollover.
func (s *Service) effectiveDate(date string) string {
	if date != "" {
		return date
	}
	return s.now().UTC().Format("2006-01-02")
}

// buildPriceSummary computes range statistics over an ascending series.
func buildPriceSummary(ticker, period string, points []market.HistoryPoint) *market.PriceSummary {
	first := points[0]
	last := points[len(points)-1]

	high := first.High
	low := first.Low
	volumes := make([]float64, len(points))
	returns := make([]float64, 0, len(points)-1)
	for i, p := range points {
		if p.High > high {
			high = p.High
		}
		if p.Low < low && p.Low > 0 {
			low = p.Low
		}
		volumes[i] = float64(p.Volume)
		if i > 0 && points[i-1].Close > 0 {
			returns = append(returns, p.Close/points[i-1].Close-1)
		}
	}

	change := round2(last.Close - first.Close)
	changePct := 0.0
	if first.Close > 0 {
		changePct = round2((last.Close - first.Close) / first.Close * 100)
	}
	volatility := 0.0
	if len(returns) > 1 {
		volatility = stat.StdDev(returns, nil)
	}

	return &market.PriceSummary{
		Ticker:        ticker,
		Period:        period,
		StartDate:     first.Date,
		EndDate:       last.Date,
		Open:          first.Close,
		Close:         last.Close,
		Change:        change,
		ChangePercent: changePct,
		High:          high,
		Low:           low,
		AvgVolume:     math.Round(stat.Mean(volumes, nil)),
		Volatility:    volatility,
		Count:         len(points),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
