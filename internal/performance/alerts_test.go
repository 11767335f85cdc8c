package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

func newEvaluator(t *testing.T, rollingWindow int) *AlertEvaluator {
	t.Helper()
	logger := auditlog.New(t.TempDir())
	t.Cleanup(func() { _ = logger.Close() })
	return NewAlertEvaluator(logger, rollingWindow)
}

func TestEvaluateEmitsWinRateWarningBelowTarget(t *testing.T) {
	eval := newEvaluator(t, 20)
	summary := models.PerformanceSummary{Window: models.WindowDaily, WinRate: money.FromFloat(0.3)}
	targets := Targets{WinRate: money.FromFloat(0.5)}

	events := eval.Evaluate(summary, targets)

	require.Len(t, events, 1)
	assert.Equal(t, "win_rate", events[0].Metric)
	assert.Equal(t, models.SeverityWarning, events[0].Severity)
}

func TestEvaluateEmitsDrawdownCriticalAboveTarget(t *testing.T) {
	eval := newEvaluator(t, 20)
	summary := models.PerformanceSummary{Window: models.WindowDaily, MaxDrawdown: money.FromFloat(500)}
	targets := Targets{Drawdown: money.FromFloat(200)}

	events := eval.Evaluate(summary, targets)

	require.Len(t, events, 1)
	assert.Equal(t, "max_drawdown", events[0].Metric)
	assert.Equal(t, models.SeverityCritical, events[0].Severity)
}

func TestEvaluateSkipsZeroTargets(t *testing.T) {
	eval := newEvaluator(t, 20)
	summary := models.PerformanceSummary{Window: models.WindowDaily, WinRate: money.FromFloat(0.1)}

	events := eval.Evaluate(summary, Targets{})

	assert.Empty(t, events)
}

func TestEvaluateDoesNotFireWhenWithinTarget(t *testing.T) {
	eval := newEvaluator(t, 20)
	summary := models.PerformanceSummary{Window: models.WindowDaily, WinRate: money.FromFloat(0.6)}
	targets := Targets{WinRate: money.FromFloat(0.5)}

	events := eval.Evaluate(summary, targets)

	assert.Empty(t, events)
}

func TestEvaluateSuppressesDuplicateWithinRollingWindow(t *testing.T) {
	eval := newEvaluator(t, 20)
	summary := models.PerformanceSummary{Window: models.WindowDaily, WinRate: money.FromFloat(0.1)}
	targets := Targets{WinRate: money.FromFloat(0.5)}

	first := eval.Evaluate(summary, targets)
	second := eval.Evaluate(summary, targets)

	assert.Len(t, first, 1)
	assert.Empty(t, second, "the same (metric, window) breach must be suppressed while still within the rolling window")
}

func TestEvaluateAllowsRepeatAlertAfterRollingWindowEvicts(t *testing.T) {
	eval := newEvaluator(t, 1)
	winRateTargets := Targets{WinRate: money.FromFloat(0.5)}
	netPLTargets := Targets{NetPL: money.FromFloat(-100)}

	winRateBreach := models.PerformanceSummary{Window: models.WindowDaily, WinRate: money.FromFloat(0.1)}
	first := eval.Evaluate(winRateBreach, winRateTargets)
	require.Len(t, first, 1)

	// A second, distinct breach evicts the win_rate entry from the
	// size-1 rolling window, so the original metric can fire again.
	netPLBreach := models.PerformanceSummary{Window: models.WindowDaily, NetPL: money.FromFloat(-500)}
	second := eval.Evaluate(netPLBreach, netPLTargets)
	require.Len(t, second, 1)

	third := eval.Evaluate(winRateBreach, winRateTargets)
	assert.Len(t, third, 1, "win_rate alert should be eligible to fire again once evicted from the rolling window")
}
