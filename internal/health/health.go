// Package health is the session-health monitor (C5): a thread-safe
// service owning one cooperative self-rescheduling timer, probing a
// lightweight authenticated call on a schedule, triggering re-auth on
// 401/403-class failures, and coupling into the circuit breaker on
// persistent failure. Concurrency pattern generalized from the teacher's
// calendar-cache mutex in cmd/bot/main.go; timer scheduling follows the
// "thread + self-rescheduling timer" strategy from the design notes.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/metrics"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

const cacheWindow = 10 * time.Second

// Prober is the lightweight authenticated API call the monitor probes.
// The AuthClassifier passed to NewMonitor decides which probe errors are
// 401/403-class failures, so the monitor knows to attempt
// re-authentication rather than simply retrying.
type Prober interface {
	Probe(ctx context.Context) error
}

// Authenticator is the collaborator invoked on an auth-class probe
// failure. internal/auth.Service satisfies this via its Login method.
type Authenticator interface {
	Login(ctx context.Context) (bool, error)
}

// AuthClassifier reports whether err represents a 401/403-class failure
// that warrants a re-auth attempt, as opposed to any other failure.
type AuthClassifier func(err error) bool

// Monitor implements spec.md §4.4.
type Monitor struct {
	prober     Prober
	auth       Authenticator
	isAuthErr  AuthClassifier
	breakers   *retryx.BreakerRegistry
	logger     *auditlog.Logger
	metrics    *metrics.Registry
	breakerKey string

	mu            sync.Mutex
	lastResult    models.HealthCheckResult
	haveResult    bool
	status        models.SessionHealthStatus
	timer         *time.Timer
	stopRequested bool
}

// NewMonitor constructs a session-health monitor. breakerKey names the
// circuit-breaker domain consulted/updated on probe outcomes (typically
// "account-data" or "broker-session").
func NewMonitor(prober Prober, authn Authenticator, isAuthErr AuthClassifier, breakers *retryx.BreakerRegistry, logger *auditlog.Logger, reg *metrics.Registry, breakerKey string) *Monitor {
	return &Monitor{
		prober:     prober,
		auth:       authn,
		isAuthErr:  isAuthErr,
		breakers:   breakers,
		logger:     logger,
		metrics:    reg,
		breakerKey: breakerKey,
		status:     models.SessionHealthStatus{SessionStartTime: time.Now().UTC()},
	}
}

// CheckHealth implements the five-step algorithm of spec.md §4.4. The
// context argument names the probe's call site ("pre_trade", "periodic",
// ...) and is included on every emitted record.
func (m *Monitor) CheckHealth(ctx context.Context, callSite string) models.HealthCheckResult {
	m.mu.Lock()
	if m.haveResult && time.Since(m.lastResult.Timestamp) < cacheWindow {
		cached := m.lastResult
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the mutex: another goroutine may have refreshed the
	// cache while we waited to acquire the lock.
	if m.haveResult && time.Since(m.lastResult.Timestamp) < cacheWindow {
		return m.lastResult
	}

	start := time.Now()
	probeErr := m.runProbe(ctx)
	reauthTriggered := false

	if probeErr != nil && m.isAuthErr != nil && m.isAuthErr(probeErr) {
		reauthTriggered = true
		m.logger.Event(auditlog.DomainHealth, "health_check.reauth_triggered", "", map[string]any{"call_site": callSite})
		if _, loginErr := m.auth.Login(ctx); loginErr == nil {
			m.logger.Event(auditlog.DomainHealth, "health_check.reauth_success", "", nil)
			if m.metrics != nil {
				m.metrics.ReauthTotal.Inc()
			}
			m.status.ReauthCount++
			probeErr = m.runProbe(ctx)
		} else {
			m.logger.Event(auditlog.DomainHealth, "health_check.reauth_failed", "", map[string]any{"error": loginErr.Error()})
			probeErr = loginErr
		}
	}

	latency := time.Since(start)
	result := models.HealthCheckResult{
		Timestamp:       time.Now().UTC(),
		LatencyMS:       latency.Milliseconds(),
		ReauthTriggered: reauthTriggered,
	}

	if probeErr != nil {
		result.Success = false
		result.ErrorMessage = probeErr.Error()
		if !retryx.IsRateLimit(probeErr) && m.breakers != nil {
			// A rate-limited probe must not count toward a circuit trip.
			_, _ = m.breakers.Guard(ctx, m.breakerKey, func(ctx context.Context) (any, error) {
				return nil, probeErr
			})
		}
		m.status.ConsecutiveFailures++
		if m.metrics != nil {
			m.metrics.HealthCheckTotal.WithLabelValues("failed").Inc()
		}
		m.logger.Event(auditlog.DomainHealth, "health_check.failed", "", map[string]any{
			"call_site": callSite, "error": probeErr.Error(), "latency_ms": result.LatencyMS,
		})
	} else {
		result.Success = true
		m.status.ConsecutiveFailures = 0
		if m.metrics != nil {
			m.metrics.HealthCheckTotal.WithLabelValues("passed").Inc()
			m.metrics.HealthCheckLatency.Observe(latency.Seconds())
		}
		m.logger.Event(auditlog.DomainHealth, "health_check.executed", "", map[string]any{"call_site": callSite})
		m.logger.Event(auditlog.DomainHealth, "health_check.passed", "", map[string]any{"latency_ms": result.LatencyMS})
	}

	m.status.HealthCheckCount++
	m.status.LastHealthCheck = result.Timestamp
	m.status.IsHealthy = result.Success
	m.status.SessionUptimeSeconds = int64(time.Since(m.status.SessionStartTime).Seconds())

	m.lastResult = result
	m.haveResult = true
	return result
}

func (m *Monitor) runProbe(ctx context.Context) error {
	_, err := retryx.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.prober.Probe(ctx)
	}, retryx.Policy{MaxAttempts: 3, BaseDelay: 1 * time.Second, BackoffFactor: 2.0, Jitter: true})
	return err
}

// GetSessionStatus returns a snapshot of the cumulative health status.
func (m *Monitor) GetSessionStatus() models.SessionHealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StartPeriodicChecks begins a cooperative, self-rescheduling 300s probe
// timer. Calling it while already running is a no-op.
func (m *Monitor) StartPeriodicChecks(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		return
	}
	m.stopRequested = false
	m.scheduleNextLocked(ctx)
}

func (m *Monitor) scheduleNextLocked(ctx context.Context) {
	m.timer = time.AfterFunc(300*time.Second, func() {
		m.CheckHealth(ctx, "periodic")
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.stopRequested {
			m.scheduleNextLocked(ctx)
		}
	})
}

// StopPeriodicChecks cancels the timer and is idempotent; it never
// deadlocks against an in-flight probe because it only releases the
// timer reference, it does not join the probe goroutine.
func (m *Monitor) StopPeriodicChecks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRequested = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
