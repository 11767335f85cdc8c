// Package recorder holds the bounded in-memory ring buffers the operator
// HTTP surface (C13, internal/statusapi) reads from: the last N trade
// records and the last N pre-trade safety decisions. It exists as its own
// package so both internal/execution and internal/safety can write into
// it without importing one another or internal/statusapi.
package recorder

import (
	"sync"

	"github.com/ridgecrest/sentrytrader/internal/models"
)

const defaultCapacity = 100

// Recorder is a thread-safe, fixed-capacity ring buffer pair.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	trades   []models.TradeRecord
	safety   []models.SafetyResult
}

// New constructs a Recorder. capacity <= 0 uses the default of 100.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// RecordTrade appends a trade record, evicting the oldest entry once the
// buffer is at capacity.
func (r *Recorder) RecordTrade(rec models.TradeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, rec)
	if len(r.trades) > r.capacity {
		r.trades = r.trades[len(r.trades)-r.capacity:]
	}
}

// RecordSafety appends a safety evaluation result, approved or not.
func (r *Recorder) RecordSafety(result models.SafetyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.safety = append(r.safety, result)
	if len(r.safety) > r.capacity {
		r.safety = r.safety[len(r.safety)-r.capacity:]
	}
}

// RecentTrades returns up to the last n trade records, newest last.
// Satisfies internal/statusapi.RecentTradesSource.
func (r *Recorder) RecentTrades(n int) []models.TradeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lastN(r.trades, n)
}

// RecentSafetyResults returns up to the last n safety decisions, newest
// last. Satisfies internal/statusapi.RecentTradesSource.
func (r *Recorder) RecentSafetyResults(n int) []models.SafetyResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lastN(r.safety, n)
}

func lastN[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	out := make([]T, n)
	copy(out, items[len(items)-n:])
	return out
}
