package tickers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexanderII/101-Demo/internal/cache"
	"github.com/jalexanderII/101-Demo/internal/market"
)

// fakeProvider counts upstream calls and serves canned data.
type fakeProvider struct {
	overviewCalls int
	historyCalls  int
	overview      *market.TickerOverview
	history       []market.HistoryPoint
	err           error
}

func (f *fakeProvider) Overview(_ context.Context, ticker, _ string) (*market.TickerOverview, error) {
	f.overviewCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.overview, nil
}

func (f *fakeProvider) Snapshot(_ context.Context, ticker string) (*market.Snapshot, error) {
	return &market.Snapshot{Ticker: ticker}, nil
}

func (f *fakeProvider) History(_ context.Context, _, _ string) ([]market.HistoryPoint, error) {
	f.historyCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeProvider) Financials(_ context.Context, _ string, _ market.FinancialsQuery) ([]market.FinancialPeriod, error) {
	return nil, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func marketCap(v float64) *market.TickerOverview {
	return &market.TickerOverview{Ticker: "AAPL", Name: "Apple Inc.", MarketCap: &v}
}

func newTestService(t *testing.T, p market.Provider, now func() time.Time) *Service {
	t.Helper()
	store, err := cache.NewWithClock(time.Minute, 32, now)
	require.NoError(t, err)
	svc := NewService(p, store, zerolog.Nop())
	svc.now = now
	return svc
}

func TestOverviewSecondRequestServedFromCache(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider := &fakeProvider{overview: marketCap(3000000000000)}
	svc := newTestService(t, provider, clock)

	first, err := svc.Overview(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.False(t, first.Hit)

	second, err := svc.Overview(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.True(t, second.Hit)

	assert.Equal(t, 1, provider.overviewCalls, "cached request must not go upstream")
	assert.JSONEq(t, string(first.Data), string(second.Data))
}

func TestOverviewRefetchesAfterTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider := &fakeProvider{overview: marketCap(3000000000000)}
	svc := newTestService(t, provider, clock)

	_, err := svc.Overview(context.Background(), "AAPL", "2023-11-14")
	require.NoError(t, err)

	now = now.Add(61 * time.Second)
	result, err := svc.Overview(context.Background(), "AAPL", "2023-11-14")
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.Equal(t, 2, provider.overviewCalls)

	// The refetch wrote a fresh expiry: still a hit just before it lapses.
	now = now.Add(59 * time.Second)
	result, err = svc.Overview(context.Background(), "AAPL", "2023-11-14")
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 2, provider.overviewCalls)
}

func TestOverviewKeyRollsOverDaily(t *testing.T) {
	now := time.Date(2023, 11, 14, 23, 59, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	provider := &fakeProvider{overview: marketCap(3000000000000)}

	// TTL far longer than the advance below, so only the date in the key
	// can force the refetch.
	store, err := cache.NewWithClock(6*time.Hour, 32, clock)
	require.NoError(t, err)
	svc := NewService(provider, store, zerolog.Nop())
	svc.now = clock

	_, err = svc.Overview(context.Background(), "AAPL", "")
	require.NoError(t, err)

	// TTL has not elapsed, but the calendar date has changed.
	now = now.Add(2 * time.Minute)
	result, err := svc.Overview(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.Equal(t, 2, provider.overviewCalls)
}

func TestFailureIsNotCached(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider := &fakeProvider{err: market.NewAPIError("fake", 500, "boom")}
	svc := newTestService(t, provider, clock)

	_, err := svc.Overview(context.Background(), "AAPL", "")
	require.Error(t, err)

	provider.err = nil
	provider.overview = marketCap(3000000000000)
	result, err := svc.Overview(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.False(t, result.Hit, "failures must not occupy cache slots")
	assert.Equal(t, 2, provider.overviewCalls)
}

func TestHistoryEmptySeriesIsNotFound(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider := &fakeProvider{history: nil}
	svc := newTestService(t, provider, clock)

	_, err := svc.History(context.Background(), "UNKNOWNXYZ", "7d")
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrNotFound)

	// The not-found result was not cached either.
	_, err = svc.History(context.Background(), "UNKNOWNXYZ", "7d")
	require.Error(t, err)
	assert.Equal(t, 2, provider.historyCalls)
}

func TestPriceSummaryStatistics(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	provider := &fakeProvider{history: []market.HistoryPoint{
		{Date: "2023-11-01", Open: 100, High: 106, Low: 99, Close: 100, Volume: 1000},
		{Date: "2023-11-02", Open: 100, High: 112, Low: 100, Close: 110, Volume: 3000},
		{Date: "2023-11-03", Open: 110, High: 122, Low: 108, Close: 120, Volume: 2000},
	}}
	svc := newTestService(t, provider, clock)

	summary := buildPriceSummary("AAPL", "7d", provider.history)

	assert.Equal(t, "2023-11-01", summary.StartDate)
	assert.Equal(t, "2023-11-03", summary.EndDate)
	assert.InDelta(t, 20.0, summary.Change, 1e-9)
	assert.InDelta(t, 20.0, summary.ChangePercent, 1e-9)
	assert.InDelta(t, 122.0, summary.High, 1e-9)
	assert.InDelta(t, 99.0, summary.Low, 1e-9)
	assert.InDelta(t, 2000.0, summary.AvgVolume, 1e-9)
	assert.Greater(t, summary.Volatility, 0.0)
	assert.Equal(t, 3, summary.Count)

	result, err := svc.PriceSummary(context.Background(), "AAPL", "7d")
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.Contains(t, string(result.Data), `"ticker":"AAPL"`)
}
