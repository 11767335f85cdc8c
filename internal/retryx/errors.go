// Package retryx provides the bot's uniform resilience wrapper: a
// generic with_retry analogue plus an error taxonomy distinguishing
// retriable, rate-limited, and non-retriable failures. Generalized from
// the teacher's internal/retry.Client (exponential backoff + jitter via
// crypto/rand, transient-error pattern matching) into a policy-driven
// function usable by every outbound call in the bot, not just broker
// position closes.
package retryx

import (
	"errors"
	"fmt"
)

// RetriableError wraps a transient failure (network blip, 5xx) that
// with_retry should retry under the default backoff schedule.
type RetriableError struct {
	Cause error
}

func (e *RetriableError) Error() string {
	return fmt.Sprintf("retriable: %v", e.Cause)
}

func (e *RetriableError) Unwrap() error { return e.Cause }

// RateLimitError wraps a 429-or-equivalent response. Retried with a
// longer backoff schedule and never counts toward a circuit breaker trip.
type RateLimitError struct {
	Cause error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Cause)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// NonRetriableError wraps a failure that with_retry must surface
// immediately: wrong credentials, malformed input, contract violation.
type NonRetriableError struct {
	Cause error
}

func (e *NonRetriableError) Error() string {
	return fmt.Sprintf("non-retriable: %v", e.Cause)
}

func (e *NonRetriableError) Unwrap() error { return e.Cause }

// DataValidationError is a NonRetriableError raised when a parsed value
// fails its validity contract (stale quote, bad OHLC, date gap, stop
// distance out of bounds). Never substitute a guess for a value that
// fails this.
type DataValidationError struct {
	Field  string
	Detail string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("data validation failed for %s: %s", e.Field, e.Detail)
}

// TradingHoursError is a NonRetriableError raised when an operation is
// attempted outside the configured trading window.
type TradingHoursError struct {
	Detail string
}

func (e *TradingHoursError) Error() string {
	return fmt.Sprintf("outside trading window: %s", e.Detail)
}

// CircuitOpenError is returned by WithRetry when the associated breaker
// is open at call entry; the operation is never attempted.
type CircuitOpenError struct {
	Domain string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for domain %q", e.Domain)
}

// NewDataValidationError constructs a DataValidationError, wrapped as a
// NonRetriableError so it is never retried.
func NewDataValidationError(field, detail string) error {
	return &NonRetriableError{Cause: &DataValidationError{Field: field, Detail: detail}}
}

// NewTradingHoursError constructs a TradingHoursError, wrapped as a
// NonRetriableError so it is never retried.
func NewTradingHoursError(detail string) error {
	return &NonRetriableError{Cause: &TradingHoursError{Detail: detail}}
}

// IsDataValidationError reports whether err (or any wrapped cause) is a
// DataValidationError.
func IsDataValidationError(err error) bool {
	var dve *DataValidationError
	return errors.As(err, &dve)
}

// IsTradingHoursError reports whether err (or any wrapped cause) is a
// TradingHoursError.
func IsTradingHoursError(err error) bool {
	var the *TradingHoursError
	return errors.As(err, &the)
}

// IsRateLimit reports whether err is a RateLimitError.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// IsRetriable reports whether err is a RetriableError or RateLimitError
// (both are retried by WithRetry, on different schedules).
func IsRetriable(err error) bool {
	var re *RetriableError
	var rle *RateLimitError
	return errors.As(err, &re) || errors.As(err, &rle)
}
