package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ridgecrest/sentrytrader/internal/money"
)

func netPL(f float64) *money.D {
	d := money.FromFloat(f)
	return &d
}

func TestBuildDailyAggregateSkipsOpensWithoutNetPL(t *testing.T) {
	records := []tradeRecordLine{
		{Event: "trade.executed", NetPL: nil}, // open, no realised P/L yet
		{Event: "trade.executed", NetPL: netPL(100), RiskRewardRatio: money.FromFloat(2)},
	}
	agg := BuildDailyAggregate("2026-01-01", records)

	assert.Equal(t, 1, agg.TradeCount)
	assert.True(t, agg.NetPL.Equal(money.FromFloat(100)))
}

func TestBuildDailyAggregateCountsWinsAndLosses(t *testing.T) {
	records := []tradeRecordLine{
		{Event: "trade.executed", NetPL: netPL(50), RiskRewardRatio: money.FromFloat(2)},
		{Event: "trade.executed", NetPL: netPL(-30), RiskRewardRatio: money.FromFloat(1.5)},
		{Event: "trade.executed", NetPL: netPL(20), RiskRewardRatio: money.FromFloat(2.5)},
	}
	agg := BuildDailyAggregate("2026-01-01", records)

	assert.Equal(t, 3, agg.TradeCount)
	assert.Equal(t, 2, agg.Wins)
	assert.Equal(t, 1, agg.Losses)
	assert.True(t, agg.NetPL.Equal(money.FromFloat(40)))
	assert.True(t, agg.GrossPL.Equal(money.FromFloat(100)))
	assert.True(t, agg.SumWinAmounts.Equal(money.FromFloat(70)))
	assert.True(t, agg.SumLossAmounts.Equal(money.FromFloat(30)))
}

func TestBuildDailyAggregateAverageRRIsMeanOfClosingTrades(t *testing.T) {
	records := []tradeRecordLine{
		{Event: "trade.executed", NetPL: netPL(10), RiskRewardRatio: money.FromFloat(2)},
		{Event: "trade.executed", NetPL: netPL(10), RiskRewardRatio: money.FromFloat(4)},
	}
	agg := BuildDailyAggregate("2026-01-01", records)
	assert.True(t, agg.AverageRR.Equal(money.FromFloat(3)))
}

func TestBuildDailyAggregateEmptyDayYieldsZeroes(t *testing.T) {
	agg := BuildDailyAggregate("2026-01-01", nil)
	assert.Equal(t, 0, agg.TradeCount)
	assert.True(t, agg.NetPL.IsZero())
	assert.True(t, agg.AverageRR.IsZero())
}
