package risk

import (
	"github.com/ridgecrest/sentrytrader/internal/money"
)

// TrailingStopConfig tunes the adjuster. Defaults match spec.md §4.7.3.
type TrailingStopConfig struct {
	ActivationPct money.D // default 0.10
	TrailingPct   money.D // default 0.05
}

// DefaultTrailingStopConfig matches spec.md §6 defaults.
var DefaultTrailingStopConfig = TrailingStopConfig{
	ActivationPct: money.FromFloat(0.10),
	TrailingPct:   money.FromFloat(0.05),
}

// AdjustTrailingStop implements spec.md §4.7.3 for a long position.
// Once unrealized gain reaches the activation percentage, the stop
// ratchets up to max(currentStop, currentPrice*(1-trailingPct)); at 50%
// progress toward target the stop ratchets to breakeven (entry) if not
// already above it. The result is always >= currentStop (monotone
// non-decreasing).
func AdjustTrailingStop(entry, target, currentPrice, currentStop money.D, cfg TrailingStopConfig) money.D {
	if cfg.ActivationPct.IsZero() && cfg.TrailingPct.IsZero() {
		cfg = DefaultTrailingStopConfig
	}

	newStop := currentStop

	gain := currentPrice.Sub(entry)
	if entry.IsPositive() {
		gainPct := gain.Div(entry)
		if gainPct.GreaterThanOrEqual(cfg.ActivationPct) {
			one := money.FromFloat(1)
			trailing := currentPrice.Mul(one.Sub(cfg.TrailingPct))
			if trailing.GreaterThan(newStop) {
				newStop = trailing
			}
		}
	}

	targetDistance := target.Sub(entry)
	if targetDistance.IsPositive() {
		progress := currentPrice.Sub(entry).Div(targetDistance)
		half := money.FromFloat(0.5)
		if progress.GreaterThanOrEqual(half) && entry.GreaterThan(newStop) {
			newStop = entry
		}
	}

	if newStop.LessThan(currentStop) {
		newStop = currentStop
	}
	return newStop
}
