package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/metrics"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

type fakeProber struct {
	err   error
	calls int
}

func (f *fakeProber) Probe(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeLoginer struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeLoginer) Login(ctx context.Context) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func newTestMonitor(t *testing.T, prober *fakeProber, auth *fakeLoginer, isAuthErr AuthClassifier) *Monitor {
	t.Helper()
	logger := auditlog.New(t.TempDir())
	t.Cleanup(func() { _ = logger.Close() })
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	breakers := retryx.NewBreakerRegistry(nil)
	return NewMonitor(prober, auth, isAuthErr, breakers, logger, reg, "account-data")
}

func TestCheckHealthSucceedsAndTracksStatus(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(t, prober, &fakeLoginer{}, nil)

	result := m.CheckHealth(context.Background(), "pre_trade")

	assert.True(t, result.Success)
	status := m.GetSessionStatus()
	assert.Equal(t, uint64(1), status.HealthCheckCount)
	assert.True(t, status.IsHealthy)
}

func TestCheckHealthCachesWithinWindow(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(t, prober, &fakeLoginer{}, nil)

	first := m.CheckHealth(context.Background(), "pre_trade")
	second := m.CheckHealth(context.Background(), "pre_trade")

	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, 1, prober.calls, "a cache hit inside the window must not re-probe")
}

func TestCheckHealthTriggersReauthOnAuthClassifiedFailure(t *testing.T) {
	prober := &fakeProber{err: errors.New("401 unauthorized")}
	auth := &fakeLoginer{ok: true}
	isAuthErr := func(err error) bool { return true }
	m := newTestMonitor(t, prober, auth, isAuthErr)

	result := m.CheckHealth(context.Background(), "pre_trade")

	assert.Equal(t, 1, auth.calls)
	assert.True(t, result.ReauthTriggered)
	status := m.GetSessionStatus()
	assert.Equal(t, uint64(1), status.ReauthCount)
}

func TestCheckHealthNonAuthFailureDoesNotTriggerReauth(t *testing.T) {
	prober := &fakeProber{err: errors.New("network timeout")}
	auth := &fakeLoginer{ok: true}
	isAuthErr := func(err error) bool { return false }
	m := newTestMonitor(t, prober, auth, isAuthErr)

	result := m.CheckHealth(context.Background(), "pre_trade")

	assert.Equal(t, 0, auth.calls)
	assert.False(t, result.ReauthTriggered)
	assert.False(t, result.Success)
}

func TestCheckHealthFailureIncrementsConsecutiveFailures(t *testing.T) {
	prober := &fakeProber{err: errors.New("boom")}
	m := newTestMonitor(t, prober, &fakeLoginer{}, nil)

	m.CheckHealth(context.Background(), "periodic")
	status := m.GetSessionStatus()
	assert.Equal(t, uint64(1), status.ConsecutiveFailures)
}

func TestCheckHealthSuccessResetsConsecutiveFailures(t *testing.T) {
	prober := &fakeProber{err: errors.New("boom")}
	m := newTestMonitor(t, prober, &fakeLoginer{}, nil)
	m.CheckHealth(context.Background(), "periodic")
	require.Equal(t, uint64(1), m.GetSessionStatus().ConsecutiveFailures)

	prober.err = nil
	// Force the next call past the short-lived cache window so it re-probes.
	m.lastResult.Timestamp = time.Now().Add(-cacheWindow - time.Second)
	m.CheckHealth(context.Background(), "periodic")

	assert.Equal(t, uint64(0), m.GetSessionStatus().ConsecutiveFailures)
}

func TestStartAndStopPeriodicChecksIsIdempotent(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(t, prober, &fakeLoginer{}, nil)

	ctx := context.Background()
	m.StartPeriodicChecks(ctx)
	m.StartPeriodicChecks(ctx) // no-op, already running

	m.StopPeriodicChecks()
	m.StopPeriodicChecks() // idempotent
}
