// Package market defines the normalized market-data domain model and the
// Provider interface that concrete data-source adapters implement.
package market

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// ValidPeriods lists the history ranges the API accepts.
var ValidPeriods = []string{"7d", "3mo", "6mo", "1y"}

// IsValidPeriod reports whether p is one of ValidPeriods.
func IsValidPeriod(p string) bool {
	for _, v := range ValidPeriods {
		if p == v {
			return true
		}
	}
	return false
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NormalizeTicker uppercases and validates a raw ticker symbol.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(t) {
		return "", ErrInvalidTicker
	}
	return t, nil
}

// Address is a company's headquarters address.
type Address struct {
	Address1   string `json:"address1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Branding holds company logo asset URLs.
type Branding struct {
	LogoURL string `json:"logo_url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// DerivedBranding builds logo URLs from a company homepage domain, for
// providers that serve no logo assets of their own.
func DerivedBranding(website string) *Branding {
	if website == "" {
		return nil
	}
	u, err := url.Parse(website)
	if err != nil {
		return nil
	}
	domain := strings.TrimPrefix(u.Hostname(), "www.")
	if domain == "" {
		return nil
	}
	logoURL := "https://logo.clearbit.com/" + domain
	return &Branding{LogoURL: logoURL, IconURL: logoURL}
}

// TickerOverview is normalized company metadata. Field names follow the
// Polygon reference-ticker shape so responses look the same regardless of
// which provider served them. Fields a provider cannot supply are omitted.
type TickerOverview struct {
	Ticker          string    `json:"ticker"`
	Name            string    `json:"name"`
	Market          string    `json:"market,omitempty"`
	Locale          string    `json:"locale,omitempty"`
	PrimaryExchange string    `json:"primary_exchange,omitempty"`
	Type            string    `json:"type,omitempty"`
	Active          bool      `json:"active"`
	CurrencyName    string    `json:"currency_name,omitempty"`
	CIK             string    `json:"cik,omitempty"`
	CompositeFIGI   string    `json:"composite_figi,omitempty"`
	ShareClassFIGI  string    `json:"share_class_figi,omitempty"`
	MarketCap       *float64  `json:"market_cap,omitempty"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	Address         *Address  `json:"address,omitempty"`
	Description     string    `json:"description,omitempty"`
	SICCode         string    `json:"sic_code,omitempty"`
	SICDescription  string    `json:"sic_description,omitempty"`
	HomepageURL     string    `json:"homepage_url,omitempty"`
	TotalEmployees  *int64    `json:"total_employees,omitempty"`
	ListDate        string    `json:"list_date,omitempty"`
	Branding        *Branding `json:"branding,omitempty"`
	SharesOut       *float64  `json:"weighted_shares_outstanding,omitempty"`
}

// OHLCV is a single trading-session bar.
type OHLCV struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// Snapshot is the most recent trade state for a ticker.
type Snapshot struct {
	Ticker           string  `json:"ticker"`
	Price            float64 `json:"price"`
	TodaysChange     float64 `json:"todaysChange"`
	TodaysChangePerc float64 `json:"todaysChangePerc"`
	Updated          int64   `json:"updated"`
	Day              *OHLCV  `json:"day,omitempty"`
	PrevDay          *OHLCV  `json:"prevDay,omitempty"`
}

// HistoryPoint is one day of price history. Prices are rounded to 2
// decimals and points are returned in ascending date order.
type HistoryPoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// LineItem is a single reported value inside a financial statement.
type LineItem struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Label string  `json:"label,omitempty"`
	Order int     `json:"order,omitempty"`
}

// Financials groups the four statements of a reporting period. Statements
// a provider cannot supply are left nil and omitted from JSON.
type Financials struct {
	IncomeStatement     map[string]LineItem `json:"income_statement,omitempty"`
	BalanceSheet        map[string]LineItem `json:"balance_sheet,omitempty"`
	CashFlowStatement   map[string]LineItem `json:"cash_flow_statement,omitempty"`
	ComprehensiveIncome map[string]LineItem `json:"comprehensive_income,omitempty"`
}

// FinancialPeriod is one reporting period of normalized financials.
type FinancialPeriod struct {
	StartDate    string      `json:"start_date,omitempty"`
	EndDate      string      `json:"end_date,omitempty"`
	FilingDate   string      `json:"filing_date,omitempty"`
	FiscalPeriod string      `json:"fiscal_period,omitempty"`
	FiscalYear   string      `json:"fiscal_year,omitempty"`
	Timeframe    string      `json:"timeframe,omitempty"`
	CIK          string      `json:"cik,omitempty"`
	CompanyName  string      `json:"company_name,omitempty"`
	Financials   *Financials `json:"financials,omitempty"`
}

// FinancialsQuery carries the filter parameters of a financials request.
type FinancialsQuery struct {
	Timeframe          string
	Limit              int
	IncludeSources     bool
	Sort               string
	Order              string
	FilingDate         string
	PeriodOfReportDate string
}

// PriceSummary aggregates a history series into headline statistics.
type PriceSummary struct {
	Ticker        string  `json:"ticker"`
	Period        string  `json:"period"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	Open          float64 `json:"open"`
	Close         float64 `json:"close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	AvgVolume     float64 `json:"avg_volume"`
	Volatility    float64 `json:"volatility"`
	Count         int     `json:"count"`
}

// Provider fetches and normalizes data from one upstream market-data
// source. Implementations return *APIError for upstream failures and
// ErrNotFound when the source has no data for the ticker.
type Provider interface {
	// Overview returns company metadata for the ticker. date is optional
	// ("" means latest) and formatted YYYY-MM-DD.
	Overview(ctx context.Context, ticker, date string) (*TickerOverview, error)

	// Snapshot returns the current trade state for the ticker.
	Snapshot(ctx context.Context, ticker string) (*Snapshot, error)

	// History returns daily bars for one of ValidPeriods, ascending by date.
	History(ctx context.Context, ticker, period string) ([]HistoryPoint, error)

	// Financials returns reported financial statements, most recent first.
	Financials(ctx context.Context, ticker string, q FinancialsQuery) ([]FinancialPeriod, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
