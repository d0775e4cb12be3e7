package yahoo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jalexanderII/101-Demo/internal/market"
)

// Overview fetches company metadata and normalizes it into the shared
// overview shape. Yahoo has no point-in-time reference data, so date is
// accepted and ignored. CIK, FIGI identifiers and list date are not
// available from Yahoo and are omitted.
func (c *Client) Overview(ctx context.Context, ticker, date string) (*market.TickerOverview, error) {
	summary, err := c.quoteSummary(ctx, ticker, "assetProfile,price,defaultKeyStatistics")
	if err != nil {
		return nil, fmt.Errorf("failed to get quote summary: %w", err)
	}

	price := getMap(summary, "price")
	profile := getMap(summary, "assetProfile")
	keyStats := getMap(summary, "defaultKeyStatistics")

	if price == nil {
		return nil, fmt.Errorf("no price data for %s: %w", ticker, market.ErrNotFound)
	}

	name := getString(price, "longName", "")
	if name == "" {
		name = getString(price, "shortName", ticker)
	}

	overview := &market.TickerOverview{
		Ticker:          getString(price, "symbol", ticker),
		Name:            name,
		PrimaryExchange: getString(price, "exchangeName", ""),
		Type:            getString(price, "quoteType", ""),
		Active:          true,
		CurrencyName:    strings.ToLower(getString(price, "currency", "")),
		MarketCap:       rawFloat(price, "marketCap"),
	}

	switch overview.Type {
	case "EQUITY", "ETF":
		overview.Market = "stocks"
	}

	if profile != nil {
		overview.Description = getString(profile, "longBusinessSummary", "")
		overview.PhoneNumber = getString(profile, "phone", "")
		overview.HomepageURL = getString(profile, "website", "")
		overview.SICDescription = getString(profile, "industry", "")
		if getString(profile, "country", "") == "United States" {
			overview.Locale = "us"
		}
		if employees := rawFloat(profile, "fullTimeEmployees"); employees != nil {
			n := int64(*employees)
			overview.TotalEmployees = &n
		}

		addr := market.Address{
			Address1:   getString(profile, "address1", ""),
			City:       getString(profile, "city", ""),
			State:      getString(profile, "state", ""),
			PostalCode: getString(profile, "zip", ""),
		}
		if addr != (market.Address{}) {
			overview.Address = &addr
		}
	}

	if keyStats != nil {
		overview.SharesOut = rawFloat(keyStats, "sharesOutstanding")
	}

	overview.Branding = market.DerivedBranding(overview.HomepageURL)

	return overview, nil
}
