// Package models defines the shared data entities used across the bot:
// credentials, sessions, cached values, positions, market data, risk plans,
// safety results, trade records, and performance artifacts. Field shapes
// follow the teacher's models.Position / storage.Data conventions, adapted
// from float64 to decimal.Decimal throughout per the money package.
package models

import (
	"time"

	"github.com/ridgecrest/sentrytrader/internal/money"
)

// Credentials holds brokerage login material. Validated once at process
// start; never logged in full — see internal/auditlog for masking.
type Credentials struct {
	Username       string
	Password       string
	ChallengeSecret string
	DeviceToken    string
}

// Session is opaque brokerage-session material. Lifecycle is
// process-bounded; the persisted form (if any) is restricted to owner-only
// file permissions by internal/auth.
type Session struct {
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session material is no longer usable.
func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// CacheEntry wraps a cached value with its fetch time and TTL.
type CacheEntry[T any] struct {
	Value     T
	CachedAt  time.Time
	TTLSeconds int
}

// Valid reports whether the entry is still fresh as of `now`.
func (c CacheEntry[T]) Valid(now time.Time) bool {
	if c.CachedAt.IsZero() {
		return false
	}
	age := now.Sub(c.CachedAt)
	return age < time.Duration(c.TTLSeconds)*time.Second
}

// Position is a single brokerage holding. Derived fields are pure functions
// of Quantity/AverageBuyPrice/CurrentPrice — never stored independently.
type Position struct {
	Symbol          string
	Quantity        int
	AverageBuyPrice money.D
	CurrentPrice    money.D
}

// CostBasis returns quantity × average buy price.
func (p Position) CostBasis() money.D {
	return money.FromFloat(float64(p.Quantity)).Mul(p.AverageBuyPrice)
}

// CurrentValue returns quantity × current price.
func (p Position) CurrentValue() money.D {
	return money.FromFloat(float64(p.Quantity)).Mul(p.CurrentPrice)
}

// ProfitLoss returns current value minus cost basis. Zero-quantity
// positions always yield zero P/L, never a stale remainder.
func (p Position) ProfitLoss() money.D {
	if p.Quantity == 0 {
		return money.Zero
	}
	return p.CurrentValue().Sub(p.CostBasis())
}

// ProfitLossPct returns P/L as a fraction of cost basis, zero when cost
// basis is zero (avoids a division by zero on a flat/closed position).
func (p Position) ProfitLossPct() money.D {
	if p.Quantity == 0 {
		return money.Zero
	}
	basis := p.CostBasis()
	if basis.IsZero() {
		return money.Zero
	}
	return p.ProfitLoss().Div(basis)
}

// AccountBalance is a snapshot of cash/equity/buying-power state.
type AccountBalance struct {
	Cash         money.D
	Equity       money.D
	BuyingPower  money.D
	LastUpdated  time.Time
}

// MarketState describes the venue's trading session phase for a quote.
type MarketState string

const (
	MarketStateOpen       MarketState = "open"
	MarketStateClosed     MarketState = "closed"
	MarketStatePreMarket  MarketState = "pre_market"
	MarketStatePostMarket MarketState = "post_market"
)

// Quote is an immutable point-in-time price observation.
type Quote struct {
	Symbol       string
	CurrentPrice money.D
	TimestampUTC time.Time
	MarketState  MarketState
}

// PriceBar is one OHLCV observation, used as ATR input.
type PriceBar struct {
	TimestampUTC time.Time
	Open         money.D
	High         money.D
	Low          money.D
	Close        money.D
	Volume       int64
}

// MarketStatus reports whether the exchange is currently open and the
// surrounding open/close instants, all UTC.
type MarketStatus struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// ATRStopData is the result of the Average True Range calculation.
type ATRStopData struct {
	ATRValue   money.D
	Period     int
	Multiplier money.D
	ComputedAt time.Time
}

// StopStrategyTag names which stop source produced a PositionPlan's stop.
type StopStrategyTag string

const (
	StopStrategyPullback StopStrategyTag = "pullback"
	StopStrategyPercent  StopStrategyTag = "percent"
	StopStrategyATR      StopStrategyTag = "atr"
)

// PositionPlan is the output of the position-sizing calculator (C8).
type PositionPlan struct {
	Symbol          string
	Shares          int
	EntryPrice      money.D
	StopPrice       money.D
	TargetPrice     money.D
	RiskAmount      money.D
	RewardAmount    money.D
	RiskRewardRatio money.D
	StopStrategyTag StopStrategyTag
}

// SafetyReason enumerates the pre-trade gate's exhaustive rejection codes.
type SafetyReason string

const (
	SafetyReasonOK                        SafetyReason = "OK"
	SafetyReasonInsufficientBuyingPower    SafetyReason = "INSUFFICIENT_BUYING_POWER"
	SafetyReasonPositionSizeLimit          SafetyReason = "POSITION_SIZE_LIMIT"
	SafetyReasonDailyLossLimit             SafetyReason = "DAILY_LOSS_LIMIT"
	SafetyReasonPDTLimit                   SafetyReason = "PDT_LIMIT"
	SafetyReasonCircuitBreakerOpen         SafetyReason = "CIRCUIT_BREAKER_OPEN"
	SafetyReasonOutsideTradingWindow       SafetyReason = "OUTSIDE_TRADING_WINDOW"
	SafetyReasonInvalidInput               SafetyReason = "INVALID_INPUT"
)

// SafetyResult is the pre-trade gate's verdict.
type SafetyResult struct {
	Approved bool
	Reason   SafetyReason
	Detail   string
}

// TradeAction is the side of a trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// TradeRecord is an immutable audit entry for one executed (or simulated)
// trade. Written exactly once; never mutated after the fact.
type TradeRecord struct {
	CorrelationID   string
	DecisionTime    time.Time
	Symbol          string
	Action          TradeAction
	Shares          int
	IntendedPrice   money.D
	FilledPrice     money.D
	Fees            money.D
	NetPL           *money.D
	RiskRewardRatio money.D
	Paper           bool
	BrokerOrderID   string
}

// HealthCheckResult is the outcome of a single session-health probe.
type HealthCheckResult struct {
	Success         bool
	Timestamp       time.Time
	LatencyMS       int64
	ErrorMessage    string
	ReauthTriggered bool
}

// SessionHealthStatus is the cumulative, monitor-owned health state.
type SessionHealthStatus struct {
	IsHealthy            bool
	SessionStartTime      time.Time
	SessionUptimeSeconds  int64
	LastHealthCheck       time.Time
	HealthCheckCount      uint64
	ReauthCount           uint64
	ConsecutiveFailures   uint64
}

// DailyAggregate accumulates one UTC day's trade outcomes into fields that
// compose associatively (sums and counts) so weekly/monthly summaries can
// be built by plain addition across days.
type DailyAggregate struct {
	Date           string // YYYY-MM-DD, UTC calendar day
	TradeCount     int
	Wins           int
	Losses         int
	GrossPL        money.D
	NetPL          money.D
	SumWinAmounts  money.D
	SumLossAmounts money.D
	// AverageRR is the day's own mean risk/reward ratio across its closing
	// trades; weekly/monthly composition re-derives its average from this
	// plus TradeCount rather than re-reading every trade record.
	AverageRR money.D
	// EquityCurve is the ordered per-trade net P/L stream for the day,
	// needed to compose a running equity curve for drawdown calculation.
	EquityCurve []money.D
}

// PerformanceWindow names the aggregation granularity of a summary.
type PerformanceWindow string

const (
	WindowDaily   PerformanceWindow = "daily"
	WindowWeekly  PerformanceWindow = "weekly"
	WindowMonthly PerformanceWindow = "monthly"
)

// PerformanceSummary is a composed, human- and machine-consumable report
// over a window of DailyAggregates.
type PerformanceSummary struct {
	Window         PerformanceWindow
	Start          time.Time
	End            time.Time
	TradeCount     int
	WinRate        money.D
	AverageRR      money.D
	GrossPL        money.D
	NetPL          money.D
	MaxDrawdown    money.D
	CurrentStreak  int
	LongestWin     int
	LongestLoss    int
	PartialData    bool
}

// AlertSeverity classifies an AlertEvent's urgency.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertEvent is a log-only threshold breach notice emitted by C11.
type AlertEvent struct {
	Metric    string
	Threshold money.D
	Observed  money.D
	Window    PerformanceWindow
	Timestamp time.Time
	Severity  AlertSeverity
}
