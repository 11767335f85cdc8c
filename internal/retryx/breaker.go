package retryx

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerRegistry holds one gobreaker.CircuitBreaker per domain
// (market-data, account-data, broker-orders), registered once at
// composition time in cmd/bot/main.go and injected into the packages that
// consult it. Generalizes the teacher's singleton-circuit-breaker pattern
// into an explicit, testable collaborator rather than process-wide state.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings func(domain string) gobreaker.Settings
}

// NewBreakerRegistry builds a registry using settingsFn to derive each
// domain's trip threshold and cool-down. A nil settingsFn falls back to
// DefaultBreakerSettings.
func NewBreakerRegistry(settingsFn func(domain string) gobreaker.Settings) *BreakerRegistry {
	if settingsFn == nil {
		settingsFn = DefaultBreakerSettings
	}
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: settingsFn,
	}
}

// DefaultBreakerSettings trips after 5 consecutive failures and half-opens
// after a 30s cool-down, requiring a single successful probe to close.
func DefaultBreakerSettings(domain string) gobreaker.Settings {
	st := gobreaker.Settings{
		Name:    domain,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return st
}

// Breaker returns (creating if necessary) the circuit breaker for domain.
func (r *BreakerRegistry) Breaker(domain string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[domain]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(r.settings(domain))
	r.breakers[domain] = b
	return b
}

// ShouldTrip reports whether the named domain's breaker is currently open,
// without attempting a call — the pre-flight check spec.md §4.1 requires
// callers to consult before an expensive operation.
func (r *BreakerRegistry) ShouldTrip(domain string) bool {
	return r.Breaker(domain).State() == gobreaker.StateOpen
}

// State returns the domain breaker's current state as closed/half_open/open.
func (r *BreakerRegistry) State(domain string) string {
	switch r.Breaker(domain).State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// States returns the current state of every domain breaker that has been
// touched so far (via Breaker/ShouldTrip/State), keyed by domain name.
// Satisfies internal/statusapi.BreakerSource.
func (r *BreakerRegistry) States() map[string]string {
	r.mu.Lock()
	domains := make([]string, 0, len(r.breakers))
	for d := range r.breakers {
		domains = append(domains, d)
	}
	r.mu.Unlock()

	out := make(map[string]string, len(domains))
	for _, d := range domains {
		out[d] = r.State(d)
	}
	return out
}

// Guard runs op through the named domain's breaker. Every non-nil error op
// returns counts toward a trip. Rate-limit failures must not, so callers
// skip Guard for a RateLimitError, or have op return a nil error (success)
// for rate-limited outcomes it handles itself via WithRetry.
func (r *BreakerRegistry) Guard(ctx context.Context, domain string, op func(ctx context.Context) (any, error)) (any, error) {
	b := r.Breaker(domain)
	return b.Execute(func() (any, error) {
		return op(ctx)
	})
}
