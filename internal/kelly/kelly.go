// Package kelly sizes stakes with the Kelly criterion for binary outcomes
// quoted in decimal odds (total payout per unit staked, stake included).
//
// For win probability p and decimal odds o, with net odds b = o - 1:
//
//	f* = p - (1 - p) / b = (p*o - 1) / b
//
// A negative f* means the bet has negative edge; the recommended stake is
// then zero, never negative. Compute is pure and safe for concurrent use.
package kelly

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidParameters is returned when probability, odds, or bankroll are
// outside their domain.
var ErrInvalidParameters = errors.New("kelly: invalid parameters")

// Recommendation names the stake a caller should prefer.
const (
	RecommendHalf = "half_kelly"
	RecommendFull = "full_kelly"
	RecommendPass = "pass"
)

var (
	one  = decimal.NewFromInt(1)
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)

	// aggressiveFraction is the fraction above which half Kelly is advised
	// to damp variance.
	aggressiveFraction = decimal.NewFromFloat(0.1)
)

// Result is the sizing output. Stake amounts are in bankroll currency;
// ExpectedValue is the expected return per unit staked.
type Result struct {
	Probability    decimal.Decimal `json:"probability"`
	Odds           decimal.Decimal `json:"odds"`
	Bankroll       decimal.Decimal `json:"bankroll"`
	KellyFraction  decimal.Decimal `json:"kelly_fraction"`
	FullKelly      decimal.Decimal `json:"full_kelly"`
	HalfKelly      decimal.Decimal `json:"half_kelly"`
	QuarterKelly   decimal.Decimal `json:"quarter_kelly"`
	ExpectedValue  decimal.Decimal `json:"expected_value"`
	Recommendation string          `json:"recommendation"`
}

// Compute returns Kelly stake sizes for probability in (0,1), odds > 1 and
// bankroll >= 0.
func Compute(probability, odds, bankroll decimal.Decimal) (Result, error) {
	if !probability.IsPositive() || probability.GreaterThanOrEqual(one) {
		return Result{}, fmt.Errorf("%w: probability must be in (0,1), got %s", ErrInvalidParameters, probability)
	}
	if odds.LessThanOrEqual(one) {
		return Result{}, fmt.Errorf("%w: odds must be > 1, got %s", ErrInvalidParameters, odds)
	}
	if bankroll.IsNegative() {
		return Result{}, fmt.Errorf("%w: bankroll must be >= 0, got %s", ErrInvalidParameters, bankroll)
	}

	netOdds := odds.Sub(one)
	ev := probability.Mul(odds).Sub(one)

	fraction := ev.Div(netOdds)
	if fraction.IsNegative() {
		fraction = decimal.Zero
	}

	full := fraction.Mul(bankroll)

	return Result{
		Probability:    probability,
		Odds:           odds,
		Bankroll:       bankroll,
		KellyFraction:  fraction,
		FullKelly:      full,
		HalfKelly:      full.Div(two),
		QuarterKelly:   full.Div(four),
		ExpectedValue:  ev,
		Recommendation: recommend(fraction),
	}, nil
}

func recommend(fraction decimal.Decimal) string {
	switch {
	case fraction.IsZero():
		return RecommendPass
	case fraction.GreaterThan(aggressiveFraction):
		return RecommendHalf
	default:
		return RecommendFull
	}
}
