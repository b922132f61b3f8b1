package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kalshiplus/paper-engine/internal/model"
)

const (
	suggestScanSize  = 50
	suggestMinVolume = 1000
	maxPerSuggestion = 5
)

var (
	balancedLow      = decimal.RequireFromString("0.3")
	balancedHigh     = decimal.RequireFromString("0.7")
	longshotBelow    = decimal.RequireFromString("0.2")
	favoriteAbove    = decimal.RequireFromString("0.75")
	tightSpreadBelow = decimal.RequireFromString("0.03")
	extremeLow       = decimal.RequireFromString("0.15")
	extremeHigh      = decimal.RequireFromString("0.85")
)

// Suggestion is a quote picked by one of the suggestion rules.
type Suggestion struct {
	model.Quote
	Reason string `json:"reason"`
}

// Suggestions groups rule-based picks. Each group holds at most five
// markets and a market may appear in several groups.
type Suggestions struct {
	Balanced      []Suggestion `json:"balanced"`
	HighPotential []Suggestion `json:"high_potential"`
	LowRisk       []Suggestion `json:"low_risk"`
	BestValue     []Suggestion `json:"best_value"`
}

// Suggestions scans the 50 highest-volume markets with at least 1000
// contracts traded.
func (s *Service) Suggestions(ctx context.Context) Suggestions {
	out := Suggestions{
		Balanced:      []Suggestion{},
		HighPotential: []Suggestion{},
		LowRisk:       []Suggestion{},
		BestValue:     []Suggestion{},
	}

	for _, q := range s.List(ctx, ListOptions{Limit: suggestScanSize, MinVolume: suggestMinVolume}) {
		p := q.YesPrice

		if !p.LessThan(balancedLow) && !p.GreaterThan(balancedHigh) && q.Volume > 5000 {
			out.Balanced = appendCapped(out.Balanced, q, "Good probability range with strong volume")
		}
		if p.IsPositive() && p.LessThan(longshotBelow) && q.Volume > 2000 {
			multiple := decimal.NewFromInt(1).Div(p).StringFixed(1)
			out.HighPotential = appendCapped(out.HighPotential, q, fmt.Sprintf("Potential %sx return if YES wins", multiple))
		}
		if p.GreaterThan(favoriteAbove) && q.Spread.LessThan(tightSpreadBelow) {
			out.LowRisk = appendCapped(out.LowRisk, q, "High probability with tight spread")
		}
		if (p.LessThan(extremeLow) || p.GreaterThan(extremeHigh)) && q.Volume > mediumVolume {
			out.BestValue = appendCapped(out.BestValue, q, "Unusual volume at extreme odds")
		}
	}
	return out
}

func appendCapped(group []Suggestion, q model.Quote, reason string) []Suggestion {
	if len(group) >= maxPerSuggestion {
		return group
	}
	return append(group, Suggestion{Quote: q, Reason: reason})
}
