// Package main provides the performance CLI (spec.md §6): it composes
// daily trade-log aggregates into a daily, weekly, or monthly summary,
// evaluates alert thresholds against it, and emits the report as JSON or
// Markdown. No CLI framework appears anywhere in the retrieval pack for
// a tool this small, so the standard library flag package is used here
// deliberately rather than pulling in e.g. cobra — see DESIGN.md.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/performance"
)

const dateLayout = "2006-01-02"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("perf", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		window       string
		startFlag    string
		endFlag      string
		export       string
		backfill     bool
		tradeLogDir  string
		aggregateDir string
		logDir       string
		schemaPath   string
		targetWinRate  float64
		targetDrawdown float64
		targetNetPL    float64
	)
	fs.StringVar(&window, "window", "daily", "Summary window: daily, weekly, or monthly")
	fs.StringVar(&startFlag, "start", "", "Start date, inclusive, YYYY-MM-DD (defaults to today for daily)")
	fs.StringVar(&endFlag, "end", "", "End date, exclusive, YYYY-MM-DD (defaults to start+1 day for daily)")
	fs.StringVar(&export, "export", "json", "Export format: json or md")
	fs.BoolVar(&backfill, "backfill", false, "Rebuild every day's aggregate in the requested range from its source trade log before composing")
	fs.StringVar(&tradeLogDir, "trade-log-dir", "logs", "Directory holding logs/YYYY-MM-DD.jsonl trade logs")
	fs.StringVar(&aggregateDir, "aggregate-dir", "logs/performance", "Directory holding persisted daily aggregates")
	fs.StringVar(&logDir, "log-dir", "logs", "Directory for the performance-alerts.jsonl audit log")
	fs.StringVar(&schemaPath, "schema", "contracts/performance-summary.schema.json", "Path to the performance-summary JSON schema (empty disables validation)")

	var rollingWindow int
	fs.IntVar(&rollingWindow, "rolling-window", 20, "Suppress duplicate (metric, window) alerts among this many most recently emitted alerts (held in memory for this run only)")
	fs.Float64Var(&targetWinRate, "target-win-rate", 0, "Alert when win rate falls below this fraction (0 disables)")
	fs.Float64Var(&targetDrawdown, "target-drawdown", 0, "Alert when max drawdown exceeds this amount (0 disables)")
	fs.Float64Var(&targetNetPL, "target-net-pl", 0, "Alert when net P/L falls below this amount (0 disables)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	start, end, err := resolveRange(window, startFlag, endFlag)
	if err != nil {
		fmt.Fprintf(stderr, "perf: %v\n", err)
		return 1
	}

	warn := func(msg string) { fmt.Fprintf(stderr, "perf: warning: %s\n", msg) }
	engine := performance.NewEngine(tradeLogDir, aggregateDir, warn)

	dates := datesInRange(start, end)
	if backfill {
		for _, d := range dates {
			if _, err := engine.RebuildDay(d); err != nil {
				fmt.Fprintf(stderr, "perf: failed to rebuild %s: %v\n", d, err)
				return 1
			}
		}
	} else {
		for _, d := range dates {
			if _, err := engine.LoadOrRebuildDay(d); err != nil {
				fmt.Fprintf(stderr, "perf: failed to load or rebuild %s: %v\n", d, err)
				return 1
			}
		}
	}

	perfWindow, err := windowKind(window)
	if err != nil {
		fmt.Fprintf(stderr, "perf: %v\n", err)
		return 1
	}

	summary := engine.ComposeWindow(perfWindow, start, end, dates)

	targets := performance.Targets{
		WinRate:  money.FromFloat(targetWinRate),
		Drawdown: money.FromFloat(targetDrawdown),
		NetPL:    money.FromFloat(targetNetPL),
	}
	if !targets.WinRate.IsZero() || !targets.Drawdown.IsZero() || !targets.NetPL.IsZero() {
		alertLogger := auditlog.New(logDir)
		defer func() { _ = alertLogger.Close() }()
		evaluator := performance.NewAlertEvaluator(alertLogger, rollingWindow)
		events := evaluator.Evaluate(summary, targets)
		for _, evt := range events {
			fmt.Fprintf(stderr, "perf: alert: %s breached threshold %s (observed %s) for %s window\n",
				evt.Metric, evt.Threshold.String(), evt.Observed.String(), evt.Window)
		}
	}

	switch export {
	case "json":
		data, err := performance.ExportJSON(summary, schemaPath)
		if err != nil {
			fmt.Fprintf(stderr, "perf: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
	case "md":
		fmt.Fprintln(stdout, performance.ExportMarkdown(summary))
	default:
		fmt.Fprintf(stderr, "perf: unknown export format %q, expected json or md\n", export)
		return 1
	}

	return 0
}

func windowKind(window string) (models.PerformanceWindow, error) {
	switch window {
	case "daily":
		return models.WindowDaily, nil
	case "weekly":
		return models.WindowWeekly, nil
	case "monthly":
		return models.WindowMonthly, nil
	default:
		return "", fmt.Errorf("unknown window %q, expected daily, weekly, or monthly", window)
	}
}

// resolveRange applies spec.md §6's defaults: daily defaults to today;
// weekly/monthly require an explicit --start (and default --end to
// start+7d / start+1 month respectively when omitted).
func resolveRange(window, startFlag, endFlag string) (time.Time, time.Time, error) {
	now := time.Now().UTC()

	var start time.Time
	var err error
	if startFlag != "" {
		start, err = time.Parse(dateLayout, startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start date %q: %w", startFlag, err)
		}
	} else if window == "daily" {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		return time.Time{}, time.Time{}, fmt.Errorf("--start is required for %s windows", window)
	}

	var end time.Time
	if endFlag != "" {
		end, err = time.Parse(dateLayout, endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end date %q: %w", endFlag, err)
		}
	} else {
		switch window {
		case "daily":
			end = start.Add(24 * time.Hour)
		case "weekly":
			end = start.AddDate(0, 0, 7)
		case "monthly":
			end = start.AddDate(0, 1, 0)
		default:
			return time.Time{}, time.Time{}, fmt.Errorf("unknown window %q", window)
		}
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s must be after --start %s", endFlag, startFlag)
	}

	return start, end, nil
}

// datesInRange enumerates [start, end) as YYYY-MM-DD strings, one per
// calendar day, matching the granularity DailyAggregate snapshots use.
func datesInRange(start, end time.Time) []string {
	var dates []string
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}
