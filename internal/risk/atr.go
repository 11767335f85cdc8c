// Package risk is the risk-management core (C8): the ATR calculator,
// the position-plan calculator, and the trailing-stop adjuster. The ATR
// recurrence and position-plan validation are implemented directly
// against spec.md's formulas — no TA library in the retrieval pack
// exposes Wilder's exact seed-then-recurrence contract together with the
// spec's validation error taxonomy, so this is a deliberate standard-
// library implementation (see DESIGN.md). gonum.org/v1/gonum/stat (the
// dependency aristath-sentinel's optimization package contributes to the
// module graph) computes the ATR seed's simple mean.
package risk

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

// trueRange computes the true range for bar i given the previous close.
// i==0 has no previous close, so true range collapses to high-low.
func trueRange(cur models.PriceBar, prevClose money.D, hasPrev bool) money.D {
	hl := cur.High.Sub(cur.Low)
	if !hasPrev {
		return hl
	}
	hc := cur.High.Sub(prevClose).Abs()
	lc := cur.Low.Sub(prevClose).Abs()
	m := hl
	if hc.GreaterThan(m) {
		m = hc
	}
	if lc.GreaterThan(m) {
		m = lc
	}
	return m
}

// ComputeATR implements spec.md §4.7.1. bars must be chronologically
// ordered; period must be >=1 and <= len(bars). Wilder's smoothing is
// applied once a series longer than period is supplied; the first
// `period` true ranges seed the recurrence via their simple mean.
func ComputeATR(bars []models.PriceBar, period int, multiplier money.D) (models.ATRStopData, error) {
	if period < 1 {
		return models.ATRStopData{}, retryx.NewDataValidationError("period", "period must be >= 1")
	}
	if len(bars) < period {
		return models.ATRStopData{}, retryx.NewDataValidationError("bars", "fewer bars than the requested ATR period")
	}

	trueRanges := make([]float64, 0, len(bars))
	var prevTimestamp time.Time
	for i, b := range bars {
		if !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() || !b.Open.IsPositive() {
			return models.ATRStopData{}, retryx.NewDataValidationError("price", "non-positive price in ATR input")
		}
		if i > 0 && !b.TimestampUTC.After(prevTimestamp) {
			return models.ATRStopData{}, retryx.NewDataValidationError("timestamp_utc", "non-monotonic timestamps in ATR input")
		}
		prevTimestamp = b.TimestampUTC

		var tr money.D
		if i == 0 {
			tr = trueRange(b, money.Zero, false)
		} else {
			tr = trueRange(b, bars[i-1].Close, true)
		}
		f, _ := tr.Float64()
		trueRanges = append(trueRanges, f)
	}

	seed := stat.Mean(trueRanges[:period], nil)
	atr := seed
	for t := period; t < len(trueRanges); t++ {
		atr = (atr*float64(period-1) + trueRanges[t]) / float64(period)
	}

	return models.ATRStopData{
		ATRValue:   money.FromFloat(atr).Round(6),
		Period:     period,
		Multiplier: multiplier,
		ComputedAt: time.Now().UTC(),
	}, nil
}
