// Package market is the market-data service (C7): quotes, historical
// bars, market-hours, and the trading-window gate, all validated at the
// boundary per the "strict parsing layer at the edge" strategy in
// spec.md §9 — no unvalidated data is ever returned to a caller. Request
// pacing uses golang.org/x/time/rate, matching the outbound rate-limiting
// idiom seen elsewhere in the retrieval pack's exchange clients.
package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ridgecrest/sentrytrader/internal/clock"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

// Broker is the external brokerage client's market-data surface.
type Broker interface {
	FetchQuote(ctx context.Context, symbol string) (models.Quote, error)
	FetchHistorical(ctx context.Context, symbol, interval string, span time.Duration) ([]models.PriceBar, error)
	FetchMarketStatus(ctx context.Context) (models.MarketStatus, error)
}

// Service implements the operations of spec.md §4.6.
type Service struct {
	broker           Broker
	limiter          *rate.Limiter
	stalenessBound   time.Duration
	window           clock.Window
}

// Config tunes the market-data service.
type Config struct {
	// RequestsPerSecond bounds outbound quote/historical calls.
	RequestsPerSecond float64
	// Burst allows a short burst above the steady rate.
	Burst int
	// StalenessBound is the max quote age before rejection (default 300s).
	StalenessBound time.Duration
	// Window is the configured trading window (default clock.DefaultWindow).
	Window clock.Window
}

// DefaultConfig matches spec.md §6 defaults.
var DefaultConfig = Config{
	RequestsPerSecond: 5,
	Burst:             10,
	StalenessBound:    300 * time.Second,
	Window:            clock.DefaultWindow,
}

// NewService constructs the market-data service.
func NewService(broker Broker, cfg Config) *Service {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultConfig
	}
	return &Service{
		broker:         broker,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		stalenessBound: cfg.StalenessBound,
		window:         cfg.Window,
	}
}

func (s *Service) paced(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// GetQuote fetches and validates a single quote. Never returns an
// unvalidated quote — any violation fails with DataValidationError.
func (s *Service) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := retryx.WithRetry(ctx, func(ctx context.Context) (models.Quote, error) {
		if err := s.paced(ctx); err != nil {
			return models.Quote{}, err
		}
		return s.broker.FetchQuote(ctx, symbol)
	}, retryx.DefaultPolicy)
	if err != nil {
		return models.Quote{}, err
	}
	if err := s.validateQuote(q); err != nil {
		return models.Quote{}, err
	}
	return q, nil
}

func (s *Service) validateQuote(q models.Quote) error {
	if q.Symbol == "" {
		return retryx.NewDataValidationError("symbol", "missing symbol on quote")
	}
	if !q.CurrentPrice.IsPositive() {
		return retryx.NewDataValidationError("current_price", "price must be strictly positive")
	}
	if q.TimestampUTC.IsZero() {
		return retryx.NewDataValidationError("timestamp_utc", "missing timestamp")
	}
	age := time.Since(q.TimestampUTC)
	if age >= s.stalenessBound {
		return retryx.NewDataValidationError("timestamp_utc", fmt.Sprintf("quote is %s old, exceeds staleness bound %s", age, s.stalenessBound))
	}
	return nil
}

// GetQuotesBatch fetches a quote per symbol. A failure for one symbol
// does not taint the others; failed symbols are simply absent from the
// returned map and reported in errs.
func (s *Service) GetQuotesBatch(ctx context.Context, symbols []string) (map[string]models.Quote, map[string]error) {
	quotes := make(map[string]models.Quote, len(symbols))
	errs := make(map[string]error)
	for _, sym := range symbols {
		q, err := s.GetQuote(ctx, sym)
		if err != nil {
			errs[sym] = err
			continue
		}
		quotes[sym] = q
	}
	return quotes, errs
}

// GetHistoricalData fetches and validates a bar series: required OHLCV
// fields, strictly increasing timestamps, no date gaps within the span,
// and each bar's OHLC values independently price-valid.
func (s *Service) GetHistoricalData(ctx context.Context, symbol, interval string, span time.Duration) ([]models.PriceBar, error) {
	bars, err := retryx.WithRetry(ctx, func(ctx context.Context) ([]models.PriceBar, error) {
		if err := s.paced(ctx); err != nil {
			return nil, err
		}
		return s.broker.FetchHistorical(ctx, symbol, interval, span)
	}, retryx.DefaultPolicy)
	if err != nil {
		return nil, err
	}
	if err := s.validateBars(bars, interval); err != nil {
		return nil, err
	}
	return bars, nil
}

func (s *Service) validateBars(bars []models.PriceBar, interval string) error {
	if len(bars) == 0 {
		return retryx.NewDataValidationError("bars", "empty historical series")
	}
	step, err := intervalDuration(interval)
	if err != nil {
		return err
	}
	gaps := 0
	for i, b := range bars {
		if err := validatePriceBar(b); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if !b.TimestampUTC.After(prev.TimestampUTC) {
			return retryx.NewDataValidationError("timestamp_utc", "historical bars are not in strictly increasing order")
		}
		if step > 0 {
			elapsed := b.TimestampUTC.Sub(prev.TimestampUTC)
			if elapsed > weekendAdjustedGap(prev.TimestampUTC, step) {
				gaps++
			}
		}
	}
	if gaps > 0 {
		return retryx.NewDataValidationError("bars", fmt.Sprintf("historical series has %d date gap(s)", gaps))
	}
	return nil
}

func validatePriceBar(b models.PriceBar) error {
	if b.TimestampUTC.IsZero() {
		return retryx.NewDataValidationError("timestamp_utc", "missing bar timestamp")
	}
	for name, v := range map[string]interface{ IsPositive() bool }{
		"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close,
	} {
		if !v.IsPositive() {
			return retryx.NewDataValidationError(name, "price must be strictly positive")
		}
	}
	if b.High.LessThan(b.Low) {
		return retryx.NewDataValidationError("high", "high is less than low")
	}
	if b.Volume < 0 {
		return retryx.NewDataValidationError("volume", "volume must not be negative")
	}
	return nil
}

// weekendAdjustedGap returns the maximum gap between two consecutive bars
// that still counts as contiguous. Daily series have no Saturday/Sunday
// bars, so a bar landing on Friday is followed by one up to three calendar
// days later (Monday) without that being a real data gap.
func weekendAdjustedGap(prev time.Time, step time.Duration) time.Duration {
	if step != 24*time.Hour {
		return step
	}
	switch prev.Weekday() {
	case time.Friday:
		return 3 * 24 * time.Hour
	case time.Saturday:
		return 2 * 24 * time.Hour
	default:
		return step
	}
}

func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1d", "daily", "":
		return 24 * time.Hour, nil
	case "1h", "hourly":
		return time.Hour, nil
	case "1m", "minute":
		return time.Minute, nil
	default:
		return 0, nil // unknown interval: skip gap detection rather than guess
	}
}

// IsMarketOpen reports the current market status.
func (s *Service) IsMarketOpen(ctx context.Context) (models.MarketStatus, error) {
	return retryx.WithRetry(ctx, func(ctx context.Context) (models.MarketStatus, error) {
		return s.broker.FetchMarketStatus(ctx)
	}, retryx.DefaultPolicy)
}

// ValidateTradeTime implements the free function from spec.md §4.6:
// admits only [StartHour, EndHour) in the configured trading timezone,
// and rejects weekends outright.
func (s *Service) ValidateTradeTime(now time.Time) error {
	if now.IsZero() {
		now = clock.Now()
	}
	if weekend, err := s.window.IsWeekend(now); err != nil {
		return &retryx.NonRetriableError{Cause: err}
	} else if weekend {
		return retryx.NewTradingHoursError("weekend")
	}
	ok, err := s.window.InWindow(now)
	if err != nil {
		return &retryx.NonRetriableError{Cause: err}
	}
	if !ok {
		return retryx.NewTradingHoursError(fmt.Sprintf("outside trading window [%02d:00,%02d:00)", s.window.StartHour, s.window.EndHour))
	}
	return nil
}
