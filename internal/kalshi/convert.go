package kalshi

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

var (
	hundred   = decimal.NewFromInt(100)
	one       = decimal.NewFromInt(1)
	halfPrice = decimal.RequireFromString("0.50")
)

// CentsToPrice converts an ask in cents to a fractional price. A missing
// (zero) ask becomes 0.50.
// 42 -> 0.42, 0 -> 0.50
func CentsToPrice(cents int) decimal.Decimal {
	if cents <= 0 {
		return halfPrice
	}
	return decimal.NewFromInt(int64(cents)).Div(hundred)
}

// Spread is |yes - (1 - no)|.
func Spread(yes, no decimal.Decimal) decimal.Decimal {
	return yes.Sub(one.Sub(no)).Abs()
}

// ToQuote converts an API market to a quote priced at the YES and NO asks.
func ToQuote(m APIMarket) model.Quote {
	yes := CentsToPrice(m.YesAsk)
	no := CentsToPrice(m.NoAsk)

	title := m.Title
	if title == "" {
		title = "Unknown"
	}
	status := m.Status
	if status == "" {
		status = "open"
	}

	return model.Quote{
		Ticker:    m.Ticker,
		Title:     title,
		Category:  DetectCategory(m.Title),
		YesPrice:  yes,
		NoPrice:   no,
		Volume:    m.Volume,
		CloseTime: m.CloseTime,
		Status:    status,
		Spread:    Spread(yes, no),
	}
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"politics", []string{"trump", "biden", "president", "senate", "congress", "election"}},
	{"crypto", []string{"bitcoin", "btc", "ethereum", "crypto"}},
	{"sports", []string{"nfl", "nba", "mlb", "super bowl", "world series"}},
	{"economics", []string{"fed", "rate", "gdp", "inflation", "cpi"}},
	{"companies", []string{"tesla", "apple", "google", "amazon", "microsoft"}},
}

// DetectCategory guesses a category from keywords in a market title.
// Titles matching nothing are "general".
func DetectCategory(title string) string {
	lower := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				return c.category
			}
		}
	}
	return "general"
}
