package yahoo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jalexanderII/101-Demo/internal/market"
)

// statementModule maps a quoteSummary module to its inner statement array
// and the slot it fills in the normalized financials.
type statementModule struct {
	module string
	inner  string
	assign func(*market.Financials, map[string]market.LineItem)
}

// Financials fetches historical financial statements and normalizes them
// into per-period statements keyed by snake_case line items.
//
// Yahoo publishes no trailing-twelve-month statements and no comprehensive
// income, so timeframe "ttm" degrades to annual and the comprehensive
// income statement is always omitted. Filing dates are unknown to Yahoo;
// the filing_date filter is ignored and period_of_report_date matches
// against the statement end date.
func (c *Client) Financials(ctx context.Context, ticker string, q market.FinancialsQuery) ([]market.FinancialPeriod, error) {
	timeframe := q.Timeframe
	if timeframe == "" || timeframe == "ttm" {
		timeframe = "annual"
	}

	mods := []statementModule{
		{"incomeStatementHistory", "incomeStatementHistory",
			func(f *market.Financials, items map[string]market.LineItem) { f.IncomeStatement = items }},
		{"balanceSheetHistory", "balanceSheetStatements",
			func(f *market.Financials, items map[string]market.LineItem) { f.BalanceSheet = items }},
		{"cashflowStatementHistory", "cashflowStatements",
			func(f *market.Financials, items map[string]market.LineItem) { f.CashFlowStatement = items }},
	}
	if timeframe == "quarterly" {
		for i := range mods {
			mods[i].module += "Quarterly"
		}
	}

	moduleNames := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		moduleNames = append(moduleNames, m.module)
	}
	moduleNames = append(moduleNames, "price")

	summary, err := c.quoteSummary(ctx, ticker, strings.Join(moduleNames, ","))
	if err != nil {
		return nil, fmt.Errorf("failed to get financial statements: %w", err)
	}

	currency := ""
	companyName := ""
	if price := getMap(summary, "price"); price != nil {
		currency = strings.ToUpper(getString(price, "currency", ""))
		companyName = getString(price, "longName", "")
	}

	byEndDate := make(map[string]*market.FinancialPeriod)
	for _, m := range mods {
		mod := getMap(summary, m.module)
		if mod == nil {
			continue
		}
		arr, _ := mod[m.inner].([]interface{})
		for _, el := range arr {
			stmt, ok := el.(map[string]interface{})
			if !ok {
				continue
			}
			endDate := rawDate(stmt, "endDate")
			if endDate == "" {
				continue
			}
			p := byEndDate[endDate]
			if p == nil {
				p = &market.FinancialPeriod{
					EndDate:      endDate,
					FiscalPeriod: fiscalPeriod(timeframe, endDate),
					FiscalYear:   endDate[:4],
					Timeframe:    timeframe,
					CompanyName:  companyName,
					Financials:   &market.Financials{},
				}
				byEndDate[endDate] = p
			}
			if items := lineItems(stmt, currency); len(items) > 0 {
				m.assign(p.Financials, items)
			}
		}
	}

	periods := make([]market.FinancialPeriod, 0, len(byEndDate))
	for _, p := range byEndDate {
		if q.PeriodOfReportDate != "" && p.EndDate != q.PeriodOfReportDate {
			continue
		}
		periods = append(periods, *p)
	}

	// Most recent first unless the caller asked for ascending order.
	sort.Slice(periods, func(i, j int) bool {
		if q.Order == "asc" {
			return periods[i].EndDate < periods[j].EndDate
		}
		return periods[i].EndDate > periods[j].EndDate
	})

	if q.Limit > 0 && len(periods) > q.Limit {
		periods = periods[:q.Limit]
	}

	c.log.Info().
		Str("ticker", ticker).
		Str("timeframe", timeframe).
		Int("periods", len(periods)).
		Msg("Fetched financial statements")

	return periods, nil
}

// lineItems converts one raw statement into normalized line items, keyed
// by the snake_case form of Yahoo's camelCase field names.
func lineItems(stmt map[string]interface{}, currency string) map[string]market.LineItem {
	items := make(map[string]market.LineItem, len(stmt))
	for key := range stmt {
		if key == "maxAge" || key == "endDate" {
			continue
		}
		value := rawFloat(stmt, key)
		if value == nil {
			continue
		}
		items[snakeFromCamel(key)] = market.LineItem{
			Value: *value,
			Unit:  currency,
			Label: labelFromCamel(key),
		}
	}
	return items
}

func fiscalPeriod(timeframe, endDate string) string {
	if timeframe != "quarterly" {
		return "FY"
	}
	t, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Q%d", (int(t.Month())+2)/3)
}

func snakeFromCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func labelFromCamel(s string) string {
	if s == "" {
		return ""
	}
	var words []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || unicode.IsUpper(rune(s[i])) {
			words = append(words, s[start:i])
			start = i
		}
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
