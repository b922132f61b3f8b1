package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

// Opportunity kinds reported by Arbitrage.
const (
	OpportunityUnderpriced = "underpriced"
	OpportunityWideSpread  = "wide_spread"
)

// Spike magnitudes reported by VolumeSpikes.
const (
	SpikeHigh   = "high"
	SpikeMedium = "medium"
)

const (
	maxOpportunities = 20
	maxSpikes        = 15
	spikeScanSize    = 50

	highVolume   = 20000
	mediumVolume = 10000
)

var (
	underpricedBelow = decimal.RequireFromString("0.98")
	wideSpreadAbove  = decimal.RequireFromString("0.05")
	hundred          = decimal.NewFromInt(100)
)

// Opportunity is a quote flagged by the arbitrage scan.
type Opportunity struct {
	model.Quote
	Type            string `json:"type"`
	ProfitPotential string `json:"profit_potential,omitempty"`
	SpreadPct       string `json:"spread_pct,omitempty"`
	Strategy        string `json:"strategy"`
}

// Spike is a quote flagged by the volume scan.
type Spike struct {
	model.Quote
	Magnitude      string `json:"spike_magnitude"`
	Interpretation string `json:"interpretation"`
}

// Arbitrage scans the default listing for YES+NO below 0.98 and for
// spreads wider than 0.05. A market can be reported under both kinds.
func (s *Service) Arbitrage(ctx context.Context) []Opportunity {
	out := []Opportunity{}
	for _, q := range s.List(ctx, ListOptions{}) {
		if sum := q.YesPrice.Add(q.NoPrice); sum.LessThan(underpricedBelow) {
			profit := decimal.NewFromInt(1).Sub(sum)
			out = append(out, Opportunity{
				Quote:           q,
				Type:            OpportunityUnderpriced,
				ProfitPotential: pct(profit, 1),
				Strategy: fmt.Sprintf("Buy YES at %s + NO at %s = guaranteed profit",
					pct(q.YesPrice, 0), pct(q.NoPrice, 0)),
			})
		}

		if q.Spread.GreaterThan(wideSpreadAbove) {
			out = append(out, Opportunity{
				Quote:     q,
				Type:      OpportunityWideSpread,
				SpreadPct: pct(q.Spread, 1),
				Strategy:  "Wide spread indicates potential mispricing",
			})
		}
	}

	if len(out) > maxOpportunities {
		out = out[:maxOpportunities]
	}
	return out
}

// VolumeSpikes flags the highest-volume markets.
func (s *Service) VolumeSpikes(ctx context.Context) []Spike {
	out := []Spike{}
	for _, q := range s.List(ctx, ListOptions{SortBy: SortVolume, Limit: spikeScanSize}) {
		switch {
		case q.Volume > highVolume:
			out = append(out, Spike{
				Quote:          q,
				Magnitude:      SpikeHigh,
				Interpretation: "Significant trading activity - possible news or insider activity",
			})
		case q.Volume > mediumVolume:
			out = append(out, Spike{
				Quote:          q,
				Magnitude:      SpikeMedium,
				Interpretation: "Above average volume",
			})
		}
	}

	if len(out) > maxSpikes {
		out = out[:maxSpikes]
	}
	return out
}

// pct renders a fraction as a percentage: pct(0.021, 1) == "2.1%".
func pct(f decimal.Decimal, places int32) string {
	return f.Mul(hundred).StringFixed(places) + "%"
}
