package performance

import (
	"time"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

// Targets holds the thresholds a PerformanceSummary is evaluated against.
type Targets struct {
	WinRate     money.D
	Drawdown    money.D
	NetPL       money.D
}

// AlertEvaluator emits AlertEvents for metrics falling below (or, for
// drawdown, above) their configured target, suppressing duplicate
// (metric, window) events within a rolling window of recently emitted
// alerts.
type AlertEvaluator struct {
	logger       *auditlog.Logger
	rollingWindow int
	recent       []emittedAlert
}

type emittedAlert struct {
	metric string
	window models.PerformanceWindow
}

// NewAlertEvaluator constructs an evaluator. rollingWindow matches
// PERFORMANCE_ALERT_ROLLING_WINDOW (default 20): duplicate (metric,
// window) alerts are suppressed while a matching alert is among that many
// most recently emitted alerts.
func NewAlertEvaluator(logger *auditlog.Logger, rollingWindow int) *AlertEvaluator {
	if rollingWindow <= 0 {
		rollingWindow = 20
	}
	return &AlertEvaluator{logger: logger, rollingWindow: rollingWindow}
}

// Evaluate implements spec.md §4.10's alert evaluation. Output is
// log-only (logs/performance-alerts.jsonl); no external notification
// channel exists in this version.
func (a *AlertEvaluator) Evaluate(summary models.PerformanceSummary, targets Targets) []models.AlertEvent {
	var events []models.AlertEvent
	now := time.Now().UTC()

	check := func(metric string, observed, threshold money.D, severity models.AlertSeverity, breached bool) {
		if !breached {
			return
		}
		if a.isDuplicate(metric, summary.Window) {
			return
		}
		evt := models.AlertEvent{
			Metric: metric, Threshold: threshold, Observed: observed,
			Window: summary.Window, Timestamp: now, Severity: severity,
		}
		events = append(events, evt)
		a.record(metric, summary.Window)
		a.logger.Event(auditlog.DomainPerfAlert, "performance.alert", "", map[string]any{
			"metric": metric, "threshold": threshold, "observed": observed,
			"window": string(summary.Window), "severity": string(severity),
		})
	}

	if !targets.WinRate.IsZero() {
		check("win_rate", summary.WinRate, targets.WinRate, models.SeverityWarning, summary.WinRate.LessThan(targets.WinRate))
	}
	if !targets.Drawdown.IsZero() {
		check("max_drawdown", summary.MaxDrawdown, targets.Drawdown, models.SeverityCritical, summary.MaxDrawdown.GreaterThan(targets.Drawdown))
	}
	if !targets.NetPL.IsZero() {
		check("net_pl", summary.NetPL, targets.NetPL, models.SeverityWarning, summary.NetPL.LessThan(targets.NetPL))
	}

	return events
}

func (a *AlertEvaluator) isDuplicate(metric string, window models.PerformanceWindow) bool {
	for _, e := range a.recent {
		if e.metric == metric && e.window == window {
			return true
		}
	}
	return false
}

func (a *AlertEvaluator) record(metric string, window models.PerformanceWindow) {
	a.recent = append(a.recent, emittedAlert{metric: metric, window: window})
	if len(a.recent) > a.rollingWindow {
		a.recent = a.recent[len(a.recent)-a.rollingWindow:]
	}
}
