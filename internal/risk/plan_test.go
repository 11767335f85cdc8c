package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

func TestValidateStopDistanceBoundaries(t *testing.T) {
	entry := money.FromFloat(100)

	cases := []struct {
		name      string
		stopFrom  float64 // distance as a fraction of entry
		wantError bool
	}{
		{"exactly 0.5% accepted", 0.005, false},
		{"0.6% rejected (gap between exact-0.5% and 0.7% floor)", 0.006, true},
		{"exactly 0.7% accepted", 0.007, false},
		{"exactly 10.0% accepted", 0.10, false},
		{"10.0001% rejected", 0.100001, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stop := entry.Mul(money.FromFloat(1 - tc.stopFrom))
			err := validateStopDistance(entry, stop)
			if tc.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComputePlanFallsBackFromUnavailableATRToPercent(t *testing.T) {
	var fallbackFrom, fallbackTo models.StopStrategyTag
	req := PlanRequest{
		Symbol:       "AAPL",
		BuyingPower:  money.FromFloat(100000),
		RiskFraction: money.FromFloat(0.02),
		EntryPrice:   money.FromFloat(100),
		TargetPrice:  money.FromFloat(110),
		Sources: []StopSource{
			{Kind: StopSourceATR}, // zero-value ATRData.Period == 0: unavailable
			{Kind: StopSourcePercent, PercentFraction: money.FromFloat(0.02)},
		},
		OnFallback: func(from, to models.StopStrategyTag, reason string) {
			fallbackFrom, fallbackTo = from, to
		},
	}

	plan, err := ComputePlan(req)
	require.NoError(t, err)
	assert.Equal(t, models.StopStrategyPercent, plan.StopStrategyTag)
	assert.Equal(t, models.StopStrategyATR, fallbackFrom)
	assert.Equal(t, models.StopStrategyPercent, fallbackTo)
	assert.True(t, plan.StopPrice.LessThan(req.EntryPrice))
	assert.True(t, plan.RiskRewardRatio.GreaterThanOrEqual(money.FromFloat(1.5)))
}

func TestComputePlanRejectsNonPositiveEntry(t *testing.T) {
	req := PlanRequest{
		EntryPrice: money.Zero,
		Sources:    []StopSource{{Kind: StopSourcePercent, PercentFraction: money.FromFloat(0.02)}},
	}
	_, err := ComputePlan(req)
	assert.Error(t, err)
}

func TestComputePlanRejectsBelowMinimumRiskReward(t *testing.T) {
	req := PlanRequest{
		Symbol:       "AAPL",
		BuyingPower:  money.FromFloat(100000),
		RiskFraction: money.FromFloat(0.02),
		EntryPrice:   money.FromFloat(100),
		TargetPrice:  money.FromFloat(101), // reward too small relative to a 2% stop
		Sources:      []StopSource{{Kind: StopSourcePercent, PercentFraction: money.FromFloat(0.02)}},
	}
	_, err := ComputePlan(req)
	assert.Error(t, err)
}

func TestComputePlanPullbackStopMustBeBelowEntry(t *testing.T) {
	req := PlanRequest{
		Symbol:       "AAPL",
		BuyingPower:  money.FromFloat(100000),
		RiskFraction: money.FromFloat(0.02),
		EntryPrice:   money.FromFloat(100),
		TargetPrice:  money.FromFloat(110),
		Sources:      []StopSource{{Kind: StopSourcePullback, PullbackLow: money.FromFloat(105)}},
	}
	_, err := ComputePlan(req)
	assert.Error(t, err, "a pullback stop above entry is not a valid stop distance for a long position")
}
