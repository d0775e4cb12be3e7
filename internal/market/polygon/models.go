package polygon

import (
	"time"

	"github.com/jalexanderII/101-Demo/internal/market"
)

// tickerDetailsResponse is the /v3/reference/tickers/{ticker} payload.
type tickerDetailsResponse struct {
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	Results   *tickerDetails `json:"results"`
}

type tickerDetails struct {
	Ticker          string    `json:"ticker"`
	Name            string    `json:"name"`
	Market          string    `json:"market"`
	Locale          string    `json:"locale"`
	PrimaryExchange string    `json:"primary_exchange"`
	Type            string    `json:"type"`
	Active          bool      `json:"active"`
	CurrencyName    string    `json:"currency_name"`
	CIK             string    `json:"cik"`
	CompositeFIGI   string    `json:"composite_figi"`
	ShareClassFIGI  string    `json:"share_class_figi"`
	MarketCap       *float64  `json:"market_cap"`
	PhoneNumber     string    `json:"phone_number"`
	Address         *address  `json:"address"`
	Description     string    `json:"description"`
	SICCode         string    `json:"sic_code"`
	SICDescription  string    `json:"sic_description"`
	HomepageURL     string    `json:"homepage_url"`
	TotalEmployees  *int64    `json:"total_employees"`
	ListDate        string    `json:"list_date"`
	Branding        *branding `json:"branding"`
	WeightedShares  *float64  `json:"weighted_shares_outstanding"`
}

type address struct {
	Address1   string `json:"address1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type branding struct {
	LogoURL string `json:"logo_url"`
	IconURL string `json:"icon_url"`
}

func (d *tickerDetails) toOverview() *market.TickerOverview {
	overview := &market.TickerOverview{
		Ticker:          d.Ticker,
		Name:            d.Name,
		Market:          d.Market,
		Locale:          d.Locale,
		PrimaryExchange: d.PrimaryExchange,
		Type:            d.Type,
		Active:          d.Active,
		CurrencyName:    d.CurrencyName,
		CIK:             d.CIK,
		CompositeFIGI:   d.CompositeFIGI,
		ShareClassFIGI:  d.ShareClassFIGI,
		MarketCap:       d.MarketCap,
		PhoneNumber:     d.PhoneNumber,
		Description:     d.Description,
		SICCode:         d.SICCode,
		SICDescription:  d.SICDescription,
		HomepageURL:     d.HomepageURL,
		TotalEmployees:  d.TotalEmployees,
		ListDate:        d.ListDate,
		SharesOut:       d.WeightedShares,
	}
	if d.Address != nil {
		overview.Address = &market.Address{
			Address1:   d.Address.Address1,
			City:       d.Address.City,
			State:      d.Address.State,
			PostalCode: d.Address.PostalCode,
		}
	}
	switch {
	case d.Branding != nil:
		overview.Branding = &market.Branding{
			LogoURL: d.Branding.LogoURL,
			IconURL: d.Branding.IconURL,
		}
	default:
		overview.Branding = market.DerivedBranding(d.HomepageURL)
	}
	return overview
}

// snapshotResponse is the /v2/snapshot/.../tickers/{ticker} payload.
type snapshotResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Ticker    *snapshotTicker `json:"ticker"`
}

type snapshotTicker struct {
	Ticker           string     `json:"ticker"`
	TodaysChange     float64    `json:"todaysChange"`
	TodaysChangePerc float64    `json:"todaysChangePerc"`
	Updated          int64      `json:"updated"`
	Day              *bar       `json:"day"`
	PrevDay          *bar       `json:"prevDay"`
	Min              *bar       `json:"min"`
	LastTrade        *lastTrade `json:"lastTrade"`
}

type bar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type lastTrade struct {
	Price float64 `json:"p"`
}

func (b *bar) toOHLCV() *market.OHLCV {
	if b == nil {
		return nil
	}
	return &market.OHLCV{
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

func (s *snapshotTicker) toSnapshot() *market.Snapshot {
	snap := &market.Snapshot{
		Ticker:           s.Ticker,
		TodaysChange:     s.TodaysChange,
		TodaysChangePerc: s.TodaysChangePerc,
		Updated:          s.Updated,
		Day:              s.Day.toOHLCV(),
		PrevDay:          s.PrevDay.toOHLCV(),
	}
	// Prefer the last trade price; fall back to the latest bar close.
	switch {
	case s.LastTrade != nil && s.LastTrade.Price > 0:
		snap.Price = s.LastTrade.Price
	case s.Min != nil && s.Min.Close > 0:
		snap.Price = s.Min.Close
	case s.Day != nil:
		snap.Price = s.Day.Close
	}
	return snap
}

// aggsResponse is the /v2/aggs/ticker/{t}/range/... payload.
type aggsResponse struct {
	Ticker       string      `json:"ticker"`
	ResultsCount int         `json:"resultsCount"`
	Results      []aggResult `json:"results"`
	Status       string      `json:"status"`
	RequestID    string      `json:"request_id"`
}

type aggResult struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // unix millis
}

func (a *aggResult) toHistoryPoint() market.HistoryPoint {
	return market.HistoryPoint{
		Date:   time.UnixMilli(a.Timestamp).UTC().Format("2006-01-02"),
		Open:   round2(a.Open),
		High:   round2(a.High),
		Low:    round2(a.Low),
		Close:  round2(a.Close),
		Volume: int64(a.Volume),
	}
}

// financialsResponse is the /vX/reference/financials payload.
type financialsResponse struct {
	Results   []financialResult `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

type financialResult struct {
	StartDate    string                         `json:"start_date"`
	EndDate      string                         `json:"end_date"`
	FilingDate   string                         `json:"filing_date"`
	Timeframe    string                         `json:"timeframe"`
	FiscalPeriod string                         `json:"fiscal_period"`
	FiscalYear   string                         `json:"fiscal_year"`
	CIK          string                         `json:"cik"`
	CompanyName  string                         `json:"company_name"`
	Financials   map[string]map[string]lineItem `json:"financials"`
}

type lineItem struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Label string  `json:"label"`
	Order int     `json:"order"`
}

func (f *financialResult) toPeriod() market.FinancialPeriod {
	period := market.FinancialPeriod{
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		FilingDate:   f.FilingDate,
		FiscalPeriod: f.FiscalPeriod,
		FiscalYear:   f.FiscalYear,
		Timeframe:    f.Timeframe,
		CIK:          f.CIK,
		CompanyName:  f.CompanyName,
	}
	if len(f.Financials) == 0 {
		return period
	}
	fin := &market.Financials{
		IncomeStatement:     toLineItems(f.Financials["income_statement"]),
		BalanceSheet:        toLineItems(f.Financials["balance_sheet"]),
		CashFlowStatement:   toLineItems(f.Financials["cash_flow_statement"]),
		ComprehensiveIncome: toLineItems(f.Financials["comprehensive_income"]),
	}
	period.Financials = fin
	return period
}

func toLineItems(items map[string]lineItem) map[string]market.LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]market.LineItem, len(items))
	for key, item := range items {
		out[key] = market.LineItem{
			Value: item.Value,
			Unit:  item.Unit,
			Label: item.Label,
			Order: item.Order,
		}
	}
	return out
}
