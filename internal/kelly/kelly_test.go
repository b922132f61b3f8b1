package kelly

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestCompute_PositiveEdge(t *testing.T) {
	res, err := Compute(d(0.6), d(2), d(1000))
	require.NoError(t, err)

	assertDecimal(t, d(0.2), res.KellyFraction, "kelly_fraction")
	assertDecimal(t, d(200), res.FullKelly, "full_kelly")
	assertDecimal(t, d(100), res.HalfKelly, "half_kelly")
	assertDecimal(t, d(50), res.QuarterKelly, "quarter_kelly")
	assertDecimal(t, d(0.2), res.ExpectedValue, "expected_value")
	assert.Equal(t, RecommendHalf, res.Recommendation)
}

func TestCompute_NegativeEdgeClampsToZero(t *testing.T) {
	res, err := Compute(d(0.1), d(1.5), d(500))
	require.NoError(t, err)

	assert.True(t, res.KellyFraction.IsZero(), "fraction should clamp to 0, got %s", res.KellyFraction)
	assert.True(t, res.FullKelly.IsZero())
	assert.True(t, res.HalfKelly.IsZero())
	assert.True(t, res.QuarterKelly.IsZero())
	assertDecimal(t, d(-0.85), res.ExpectedValue, "expected_value")
	assert.Equal(t, RecommendPass, res.Recommendation)
}

func TestCompute_SmallEdgeRecommendsFull(t *testing.T) {
	// f = (0.55*1.9 - 1) / 0.9 = 0.045/0.9 = 0.05
	res, err := Compute(d(0.55), d(1.9), d(1000))
	require.NoError(t, err)

	assertDecimal(t, d(0.05), res.KellyFraction, "kelly_fraction")
	assert.Equal(t, RecommendFull, res.Recommendation)
}

func TestCompute_ZeroBankroll(t *testing.T) {
	res, err := Compute(d(0.7), d(2), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, res.KellyFraction.IsPositive())
	assert.True(t, res.FullKelly.IsZero())
}

func TestCompute_StakeRatiosExact(t *testing.T) {
	cases := [][3]float64{
		{0.6, 2, 1000},
		{0.33, 3.7, 1234.56},
		{0.9, 1.2, 77},
		{0.51, 2.05, 10000},
	}
	for _, c := range cases {
		res, err := Compute(d(c[0]), d(c[1]), d(c[2]))
		require.NoError(t, err)
		assertDecimal(t, res.FullKelly.Div(decimal.NewFromInt(2)), res.HalfKelly, "half_kelly")
		assertDecimal(t, res.FullKelly.Div(decimal.NewFromInt(4)), res.QuarterKelly, "quarter_kelly")
	}
}

func TestCompute_MonotonicInProbability(t *testing.T) {
	for _, odds := range []float64{1.1, 1.5, 2, 3.5, 10} {
		prev := decimal.NewFromInt(-1)
		for p := 1; p < 100; p++ {
			prob := decimal.New(int64(p), -2)
			res, err := Compute(prob, d(odds), d(1000))
			require.NoError(t, err)
			require.Truef(t, res.KellyFraction.GreaterThanOrEqual(prev),
				"odds=%v p=%s: fraction %s < previous %s", odds, prob, res.KellyFraction, prev)
			require.False(t, res.KellyFraction.IsNegative())
			prev = res.KellyFraction
		}
	}
}

func TestCompute_InvalidParameters(t *testing.T) {
	tests := []struct {
		name                    string
		probability, odds, bank float64
	}{
		{"zero probability", 0, 2, 100},
		{"probability one", 1, 2, 100},
		{"negative probability", -0.2, 2, 100},
		{"probability above one", 1.3, 2, 100},
		{"odds one", 0.5, 1, 100},
		{"odds below one", 0.5, 0.8, 100},
		{"negative bankroll", 0.5, 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(d(tt.probability), d(tt.odds), d(tt.bank))
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}
