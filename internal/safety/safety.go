// Package safety is the pre-trade gate (C9): an exhaustive,
// order-independent set of checks that must all pass before an order may
// be submitted. Every evaluation emits a structured log record whether
// approved or denied, per spec.md §4.8.
package safety

import (
	"context"
	"time"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/metrics"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/recorder"
)

// AccountDataSource is the subset of internal/account.Service the gate
// consults when the caller omits an explicit buying-power figure.
type AccountDataSource interface {
	GetBuyingPower(ctx context.Context, useCache bool) (money.D, error)
	GetAccountBalance(ctx context.Context, useCache bool) (models.AccountBalance, error)
	GetDayTradeCount(ctx context.Context, useCache bool) (int, error)
}

// TradeTimeValidator is satisfied by internal/market.Service.
type TradeTimeValidator interface {
	ValidateTradeTime(now time.Time) error
}

// BreakerConsultant is satisfied by internal/retryx.BreakerRegistry.
type BreakerConsultant interface {
	ShouldTrip(domain string) bool
}

// Config holds the configured risk limits of spec.md §6.
type Config struct {
	DailyLossCapPct    money.D // default 0.02
	PerPositionCapPct  money.D // default 0.05
	PDTDayTradeLimit   int     // default 3
	BreakerDomain      string  // default "broker-orders"
}

// DefaultConfig matches spec.md §6 defaults.
var DefaultConfig = Config{
	DailyLossCapPct:   money.FromFloat(0.02),
	PerPositionCapPct: money.FromFloat(0.05),
	PDTDayTradeLimit:  3,
	BreakerDomain:     "broker-orders",
}

// Gate implements validate_trade.
type Gate struct {
	account  AccountDataSource
	market   TradeTimeValidator
	breakers BreakerConsultant
	logger   *auditlog.Logger
	metrics  *metrics.Registry
	cfg      Config

	// Recorder, if set, receives every evaluation result (approved or
	// denied) so the operator HTTP surface (C13) can show recent safety
	// decisions. Optional — nil disables recording.
	Recorder *recorder.Recorder

	// RealisedDailyPL is supplied by the caller (the execution pipeline
	// tracks this across the UTC trading day); it is not fetched here
	// since the gate has no ownership of trade history.
	RealisedDailyPL func() money.D
	// IsDayTrade reports whether the candidate trade would count as a day
	// trade under PDT rules (closes a position opened same day).
	IsDayTrade func(symbol string, action models.TradeAction) bool
}

// NewGate constructs the pre-trade gate.
func NewGate(account AccountDataSource, marketSvc TradeTimeValidator, breakers BreakerConsultant, logger *auditlog.Logger, reg *metrics.Registry, cfg Config) *Gate {
	if cfg.PDTDayTradeLimit == 0 {
		cfg = DefaultConfig
	}
	return &Gate{account: account, market: marketSvc, breakers: breakers, logger: logger, metrics: reg, cfg: cfg}
}

// ValidateTrade implements spec.md §4.8.
func (g *Gate) ValidateTrade(ctx context.Context, symbol string, action models.TradeAction, shares int, price money.D, buyingPower *money.D) models.SafetyResult {
	result := g.evaluate(ctx, symbol, action, shares, price, buyingPower)

	if g.Recorder != nil {
		g.Recorder.RecordSafety(result)
	}

	fields := map[string]any{
		"symbol": symbol, "action": string(action), "shares": shares,
		"price": price, "approved": result.Approved, "reason": string(result.Reason),
	}
	if result.Detail != "" {
		fields["detail"] = result.Detail
	}
	g.logger.Event(auditlog.DomainTrading, "trade.safety_evaluated", "", fields)

	if g.metrics != nil {
		decision := "approved"
		if !result.Approved {
			decision = "rejected"
		}
		g.metrics.TradeDecisionTotal.WithLabelValues(decision, string(result.Reason)).Inc()
	}

	return result
}

func (g *Gate) evaluate(ctx context.Context, symbol string, action models.TradeAction, shares int, price money.D, buyingPower *money.D) models.SafetyResult {
	if symbol == "" || shares <= 0 || !price.IsPositive() {
		return models.SafetyResult{Reason: models.SafetyReasonInvalidInput, Detail: "shares/price must be positive and symbol non-empty"}
	}

	if g.breakers != nil && g.breakers.ShouldTrip(g.cfg.BreakerDomain) {
		return models.SafetyResult{Reason: models.SafetyReasonCircuitBreakerOpen, Detail: "circuit breaker open for broker orders"}
	}

	if g.market != nil {
		if err := g.market.ValidateTradeTime(time.Now().UTC()); err != nil {
			return models.SafetyResult{Reason: models.SafetyReasonOutsideTradingWindow, Detail: err.Error()}
		}
	}

	bp, err := g.resolveBuyingPower(ctx, buyingPower)
	if err != nil {
		return models.SafetyResult{Reason: models.SafetyReasonInvalidInput, Detail: "unable to resolve buying power: " + err.Error()}
	}
	notional := money.FromFloat(float64(shares)).Mul(price)
	if notional.GreaterThan(bp) {
		return models.SafetyResult{Reason: models.SafetyReasonInsufficientBuyingPower, Detail: "shares * price exceeds buying power"}
	}

	if g.account != nil {
		balance, err := g.account.GetAccountBalance(ctx, true)
		if err != nil {
			return models.SafetyResult{Reason: models.SafetyReasonInvalidInput, Detail: "unable to resolve account balance: " + err.Error()}
		}
		if balance.Equity.IsPositive() {
			cap := balance.Equity.Mul(g.cfg.PerPositionCapPct)
			if notional.GreaterThan(cap) {
				return models.SafetyResult{Reason: models.SafetyReasonPositionSizeLimit, Detail: "notional exceeds per-position cap"}
			}
			if g.RealisedDailyPL != nil {
				dailyPL := g.RealisedDailyPL()
				lossCap := balance.Equity.Mul(g.cfg.DailyLossCapPct)
				if dailyPL.LessThanOrEqual(lossCap.Neg()) {
					return models.SafetyResult{Reason: models.SafetyReasonDailyLossLimit, Detail: "realised daily loss at or beyond cap; trading halted for the day"}
				}
			}
		}
	}

	if g.IsDayTrade != nil && g.IsDayTrade(symbol, action) && g.account != nil {
		count, err := g.account.GetDayTradeCount(ctx, true)
		if err == nil && count >= g.cfg.PDTDayTradeLimit {
			return models.SafetyResult{Reason: models.SafetyReasonPDTLimit, Detail: "day-trade count at pattern-day-trader limit"}
		}
	}

	return models.SafetyResult{Approved: true, Reason: models.SafetyReasonOK}
}

func (g *Gate) resolveBuyingPower(ctx context.Context, explicit *money.D) (money.D, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if g.account == nil {
		return money.Zero, nil
	}
	return g.account.GetBuyingPower(ctx, true)
}
