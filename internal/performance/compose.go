package performance

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

// Engine ties the reader, aggregate builder, and snapshot store together.
type Engine struct {
	store        *Store
	tradeLogDir  string
	onWarn       func(msg string)
}

// NewEngine constructs the performance-tracking engine. tradeLogDir holds
// the logs/YYYY-MM-DD.jsonl source files; aggregateDir holds
// logs/performance/YYYY-MM-DD.json and the index.
func NewEngine(tradeLogDir, aggregateDir string, onWarn func(msg string)) *Engine {
	if onWarn == nil {
		onWarn = func(string) {}
	}
	return &Engine{store: NewStore(aggregateDir), tradeLogDir: tradeLogDir, onWarn: onWarn}
}

func (e *Engine) tradeLogPath(date string) string {
	return fmt.Sprintf("%s/%s.jsonl", e.tradeLogDir, date)
}

// RebuildDay recomputes and persists date's DailyAggregate from its
// source trade log, updating the index entry. Rebuild triggers per
// spec.md §4.10: checksum mismatch or missing aggregate.
func (e *Engine) RebuildDay(date string) (models.DailyAggregate, error) {
	path := e.tradeLogPath(date)
	records, err := ReadTradeLog(path)
	if err != nil {
		return models.DailyAggregate{}, fmt.Errorf("reading trade log for %s: %w", date, err)
	}
	agg := BuildDailyAggregate(date, records)
	if err := e.store.SaveAggregate(agg); err != nil {
		return models.DailyAggregate{}, fmt.Errorf("saving aggregate for %s: %w", date, err)
	}

	idx := e.store.LoadIndex()
	idx.Entries[date] = IndexEntry{
		Checksum:      ChecksumFile(path),
		LastOffset:    int64(len(records)),
		LastWrittenAt: time.Now().UTC(),
	}
	if err := e.store.SaveIndex(idx); err != nil {
		return agg, fmt.Errorf("saving index after rebuilding %s: %w", date, err)
	}
	return agg, nil
}

// LoadOrRebuildDay returns date's aggregate, rebuilding it first if the
// snapshot is missing or stale relative to its source trade log.
func (e *Engine) LoadOrRebuildDay(date string) (models.DailyAggregate, error) {
	if e.store.NeedsRebuild(date, e.tradeLogPath(date)) {
		return e.RebuildDay(date)
	}
	agg, _ := e.store.LoadAggregate(date)
	return agg, nil
}

// DailySummary emits one PerformanceSummary directly from a day's
// DailyAggregate.
func DailySummary(agg models.DailyAggregate, day time.Time) models.PerformanceSummary {
	return composeSummary(models.WindowDaily, day, day.Add(24*time.Hour), []models.DailyAggregate{agg}, false)
}

// ComposeWindow sums the count-and-sum fields across dates' aggregates
// and recomputes rate-based metrics from the composed inputs, per
// spec.md §4.10. Composition is associative and order-independent for
// the count-and-sum fields: callers may pass dates in any order. A
// missing or corrupt day is treated as partial_data, warn-logged, and
// contributes zero to the sums rather than aborting the whole window.
func (e *Engine) ComposeWindow(window models.PerformanceWindow, start, end time.Time, dates []string) models.PerformanceSummary {
	var aggs []models.DailyAggregate
	partial := false
	for _, d := range dates {
		agg, ok := e.store.LoadAggregate(d)
		if !ok {
			partial = true
			e.onWarn(fmt.Sprintf("performance aggregate for %s is missing; marking window partial", d))
			continue
		}
		aggs = append(aggs, agg)
	}
	return composeSummary(window, start, end, aggs, partial)
}

func composeSummary(window models.PerformanceWindow, start, end time.Time, aggs []models.DailyAggregate, partial bool) models.PerformanceSummary {
	summary := models.PerformanceSummary{
		Window:      window,
		Start:       start,
		End:         end,
		GrossPL:     money.Zero,
		NetPL:       money.Zero,
		PartialData: partial,
	}

	var equityCurve []money.D
	var dailyRR, dailyWeights []float64
	wins, losses := 0, 0

	for _, agg := range aggs {
		summary.TradeCount += agg.TradeCount
		summary.GrossPL = summary.GrossPL.Add(agg.GrossPL)
		summary.NetPL = summary.NetPL.Add(agg.NetPL)
		wins += agg.Wins
		losses += agg.Losses
		equityCurve = append(equityCurve, agg.EquityCurve...)

		if agg.TradeCount > 0 {
			if f, ok := agg.AverageRR.Float64(); ok {
				dailyRR = append(dailyRR, f)
				dailyWeights = append(dailyWeights, float64(agg.TradeCount))
			}
		}
	}

	if summary.TradeCount > 0 {
		summary.WinRate = money.FromFloat(float64(wins)).Div(money.FromFloat(float64(summary.TradeCount)))
	}
	if len(dailyRR) > 0 {
		// Weighted mean of each day's own average RR, weighted by that
		// day's trade count — recomputed from the composed inputs rather
		// than re-reading every underlying trade record.
		summary.AverageRR = money.FromFloat(stat.Mean(dailyRR, dailyWeights)).Round(6)
	}

	summary.MaxDrawdown = maxDrawdown(equityCurve)
	summary.CurrentStreak, summary.LongestWin, summary.LongestLoss = streaks(equityCurve)

	return summary
}

// maxDrawdown composes a running equity curve over the ordered per-trade
// P/L stream and returns the largest peak-to-trough decline.
func maxDrawdown(plStream []money.D) money.D {
	if len(plStream) == 0 {
		return money.Zero
	}
	equity := money.Zero
	peak := money.Zero
	maxDD := money.Zero
	for _, pl := range plStream {
		equity = equity.Add(pl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		dd := peak.Sub(equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// streaks returns the current win/loss streak (positive = winning,
// negative = losing) and the longest winning/losing streak lengths.
func streaks(plStream []money.D) (current, longestWin, longestLoss int) {
	runWin, runLoss := 0, 0
	for _, pl := range plStream {
		switch {
		case pl.IsPositive():
			runWin++
			runLoss = 0
			current = runWin
		case pl.IsNegative():
			runLoss++
			runWin = 0
			current = -runLoss
		default:
			runWin, runLoss = 0, 0
			current = 0
		}
		if runWin > longestWin {
			longestWin = runWin
		}
		if runLoss > longestLoss {
			longestLoss = runLoss
		}
	}
	return current, longestWin, longestLoss
}
