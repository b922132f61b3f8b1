package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/kalshi"
	"github.com/kalshiplus/paper-engine/internal/model"
)

var errNoSource = errors.New("market: no upstream source configured")

// Category is a dashboard category tab.
type Category struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Categories is the static category catalog keyed by id.
var Categories = map[string]Category{
	"trending":   {Name: "Trending", Icon: "🔥"},
	"new":        {Name: "New", Icon: "✨"},
	"politics":   {Name: "Politics", Icon: "🏛️"},
	"sports":     {Name: "Sports", Icon: "⚽"},
	"culture":    {Name: "Culture", Icon: "🎬"},
	"crypto":     {Name: "Crypto", Icon: "₿"},
	"climate":    {Name: "Climate", Icon: "🌍"},
	"economics":  {Name: "Economics", Icon: "📈"},
	"mentions":   {Name: "Mentions", Icon: "💬"},
	"companies":  {Name: "Companies", Icon: "🏢"},
	"financials": {Name: "Financials", Icon: "💹"},
	"tech":       {Name: "Tech & Science", Icon: "🔬"},
	"health":     {Name: "Health", Icon: "🏥"},
	"world":      {Name: "World", Icon: "🌐"},
}

// seriesFor maps a category to the Kalshi series tickers it covers.
var seriesFor = map[string]string{
	"politics":   "PRES,SENATE,HOUSE,GOV",
	"sports":     "NFL,NBA,MLB,NHL,SOCCER",
	"crypto":     "BTC,ETH,CRYPTO",
	"economics":  "GDP,CPI,FOMC,FED",
	"climate":    "CLIMATE,WEATHER",
	"companies":  "AAPL,GOOGL,TSLA,AMZN",
	"financials": "SPX,NDX,DJI",
	"tech":       "AI,TECH",
	"health":     "COVID,FDA",
}

// isMeta reports whether a category is a view rather than a filter.
func isMeta(category string) bool {
	return category == "trending" || category == "new"
}

// bucket is a half-open probability range [lo, hi).
type bucket struct {
	lo, hi decimal.Decimal
}

func (b bucket) contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(b.lo) && p.LessThan(b.hi)
}

var buckets = map[string]bucket{
	"longshot":  {decimal.Zero, decimal.RequireFromString("0.15")},
	"unlikely":  {decimal.RequireFromString("0.15"), decimal.RequireFromString("0.35")},
	"uncertain": {decimal.RequireFromString("0.35"), decimal.RequireFromString("0.65")},
	"likely":    {decimal.RequireFromString("0.65"), decimal.RequireFromString("0.85")},
	"favorite":  {decimal.RequireFromString("0.85"), decimal.NewFromInt(1)},
}

// bucketRange resolves a bucket name; unknown names do not filter.
func bucketRange(name string) (bucket, bool) {
	b, ok := buckets[name]
	return b, ok
}

type sample struct {
	ticker, title, category string
	yes, no                 string
	volume                  int64
}

var sampleMarkets = []sample{
	{"PRES-2028-DEM", "Who will win the 2028 Democratic Presidential Primary?", "politics", "0.35", "0.67", 125000},
	{"BTC-100K-2025", "Will Bitcoin reach $100,000 by end of 2025?", "crypto", "0.72", "0.30", 89000},
	{"FED-RATE-JAN", "Will Fed cut rates in January 2025?", "economics", "0.45", "0.57", 67000},
	{"NFL-SB-CHIEFS", "Will Chiefs win Super Bowl 2025?", "sports", "0.22", "0.80", 54000},
	{"TSLA-500-Q1", "Will Tesla stock reach $500 in Q1 2025?", "companies", "0.18", "0.84", 43000},
	{"AI-AGI-2025", "Will AGI be announced by a major lab in 2025?", "tech", "0.08", "0.93", 38000},
	{"AAPL-250", "Will Apple stock reach $250 by March 2025?", "companies", "0.62", "0.40", 31000},
	{"ETH-5K", "Will Ethereum reach $5,000 by end of 2025?", "crypto", "0.55", "0.47", 28000},
}

// samples builds the fallback listing, closing 30 days from now.
func (s *Service) samples() []model.Quote {
	closes := s.now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)

	out := make([]model.Quote, 0, len(sampleMarkets))
	for _, m := range sampleMarkets {
		yes, no := decimal.RequireFromString(m.yes), decimal.RequireFromString(m.no)
		out = append(out, model.Quote{
			Ticker:    m.ticker,
			Title:     m.title,
			Category:  m.category,
			YesPrice:  yes,
			NoPrice:   no,
			Volume:    m.volume,
			CloseTime: closes,
			Status:    "open",
			Spread:    kalshi.Spread(yes, no),
		})
	}
	return out
}
