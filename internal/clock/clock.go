// Package clock centralizes UTC-aware time handling and trading-window
// enforcement. Grounded on the teacher's config.resolveLocation /
// IsWithinTradingHours pattern, generalized into a config-independent
// package so both C7 (market data) and C9 (safety checks) can depend on it
// without importing the configuration layer.
package clock

import (
	"fmt"
	"time"
)

// Now returns the current instant, always UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Window describes the trading window in a named IANA timezone, using
// hour-of-day boundaries per spec.md §6 (TRADING_WINDOW_START_HOUR/END_HOUR).
type Window struct {
	Timezone  string
	StartHour int
	EndHour   int
}

// DefaultWindow matches spec.md defaults: America/New_York, [07:00, 10:00).
var DefaultWindow = Window{
	Timezone:  "America/New_York",
	StartHour: 7,
	EndHour:   10,
}

func (w Window) location() (*time.Location, error) {
	tz := w.Timezone
	if tz == "" {
		tz = DefaultWindow.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	return loc, nil
}

// InWindow reports whether instant `at` falls within [StartHour, EndHour)
// in the window's timezone. The end hour is exclusive — spec.md is explicit
// that 10:00:00 America/New_York must be rejected, not admitted.
func (w Window) InWindow(at time.Time) (bool, error) {
	loc, err := w.location()
	if err != nil {
		return false, err
	}
	local := at.In(loc)
	start := w.StartHour
	end := w.EndHour
	if start < 0 || end < 0 || start > 24 || end > 24 || start >= end {
		return false, fmt.Errorf("invalid trading window [%d,%d)", start, end)
	}
	hour := local.Hour()
	minute := local.Minute()
	sec := local.Second()
	afterStart := hour > start || (hour == start && (minute > 0 || sec > 0)) || hour == start && minute == 0 && sec == 0
	beforeEnd := hour < end
	return afterStart && beforeEnd, nil
}

// IsWeekend reports whether `at`, converted into the window's timezone, is
// a Saturday or Sunday.
func (w Window) IsWeekend(at time.Time) (bool, error) {
	loc, err := w.location()
	if err != nil {
		return false, err
	}
	day := at.In(loc).Weekday()
	return day == time.Saturday || day == time.Sunday, nil
}
