// Package metrics is the Prometheus registry (C14): health-check latency
// and outcome counters, cache hit/miss counters, trade-decision counters,
// and circuit-breaker state gauges. Built on
// github.com/prometheus/client_golang, matching the corpus's observability
// idiom (seen in Inkedup1114-bitunixbot, aristath-sentinel,
// poorman-SynapseStrike).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every series the bot emits, constructed once at
// composition time and injected into the packages that report to it.
type Registry struct {
	HealthCheckLatency  prometheus.Histogram
	HealthCheckTotal    *prometheus.CounterVec // label: outcome=passed|failed
	ReauthTotal         prometheus.Counter
	CacheHits           *prometheus.CounterVec // label: key
	CacheMisses         *prometheus.CounterVec // label: key
	TradeDecisionTotal  *prometheus.CounterVec // labels: decision=approved|rejected, reason
	CircuitBreakerState *prometheus.GaugeVec   // label: domain; 0=closed 1=half_open 2=open
}

// NewRegistry constructs and registers every series against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps the bot's series isolated and test-friendly.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		HealthCheckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sentrytrader",
			Subsystem: "health",
			Name:      "check_latency_seconds",
			Help:      "Latency of session-health probe calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		HealthCheckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrytrader",
			Subsystem: "health",
			Name:      "check_total",
			Help:      "Count of session-health checks by outcome.",
		}, []string{"outcome"}),
		ReauthTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentrytrader",
			Subsystem: "health",
			Name:      "reauth_total",
			Help:      "Count of re-authentications triggered by failed probes.",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrytrader",
			Subsystem: "account",
			Name:      "cache_hits_total",
			Help:      "Count of account-data cache hits by key.",
		}, []string{"key"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrytrader",
			Subsystem: "account",
			Name:      "cache_misses_total",
			Help:      "Count of account-data cache misses by key.",
		}, []string{"key"}),
		TradeDecisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentrytrader",
			Subsystem: "trade",
			Name:      "decision_total",
			Help:      "Count of pre-trade gate decisions by outcome and reason.",
		}, []string{"decision", "reason"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sentrytrader",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state per domain (0=closed, 1=half_open, 2=open).",
		}, []string{"domain"}),
	}

	reg.MustRegister(
		m.HealthCheckLatency,
		m.HealthCheckTotal,
		m.ReauthTotal,
		m.CacheHits,
		m.CacheMisses,
		m.TradeDecisionTotal,
		m.CircuitBreakerState,
	)

	return m
}

// SetBreakerState records a domain's circuit breaker state as a gauge
// value, translating the textual closed/half_open/open form used
// elsewhere in the bot.
func (m *Registry) SetBreakerState(domain, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	default:
		v = 0
	}
	m.CircuitBreakerState.WithLabelValues(domain).Set(v)
}
