package performance

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

// BuildDailyAggregate implements the daily half of spec.md §4.10's
// summary composition: only closing trades (those carrying a realised
// NetPL) contribute to win/loss/P&L counts — an open has no P/L yet.
func BuildDailyAggregate(date string, records []tradeRecordLine) models.DailyAggregate {
	agg := models.DailyAggregate{
		Date:           date,
		GrossPL:        money.Zero,
		NetPL:          money.Zero,
		SumWinAmounts:  money.Zero,
		SumLossAmounts: money.Zero,
	}

	var rrValues []float64
	for _, rec := range records {
		if rec.NetPL == nil {
			continue
		}
		pl := *rec.NetPL
		agg.TradeCount++
		agg.NetPL = agg.NetPL.Add(pl)
		agg.GrossPL = agg.GrossPL.Add(pl.Abs())
		agg.EquityCurve = append(agg.EquityCurve, pl)

		if pl.IsPositive() {
			agg.Wins++
			agg.SumWinAmounts = agg.SumWinAmounts.Add(pl)
		} else if pl.IsNegative() {
			agg.Losses++
			agg.SumLossAmounts = agg.SumLossAmounts.Add(pl.Abs())
		}

		if f, ok := rec.RiskRewardRatio.Float64(); ok {
			rrValues = append(rrValues, f)
		}
	}

	if len(rrValues) > 0 {
		agg.AverageRR = money.FromFloat(stat.Mean(rrValues, nil)).Round(6)
	}

	return agg
}
