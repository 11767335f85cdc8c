// Package execution is the trade-execution pipeline (C10): it orchestrates
// C4 through C9 in a strict, single-threaded sequence, submits the order
// in paper or live mode, and emits the audit trail. Correlation IDs use
// github.com/google/uuid, the teacher's own dependency (already used for
// position/order identifiers in the teacher's trading cycle).
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/recorder"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

// Authenticator is satisfied by internal/auth.Service.
type Authenticator interface {
	IsAuthenticated() bool
}

// HealthChecker is satisfied by internal/health.Monitor.
type HealthChecker interface {
	CheckHealth(ctx context.Context, callSite string) models.HealthCheckResult
}

// TradeTimeValidator is satisfied by internal/market.Service.
type TradeTimeValidator interface {
	ValidateTradeTime(now time.Time) error
}

// SafetyGate is satisfied by internal/safety.Gate.
type SafetyGate interface {
	ValidateTrade(ctx context.Context, symbol string, action models.TradeAction, shares int, price money.D, buyingPower *money.D) models.SafetyResult
}

// CacheInvalidator is satisfied by internal/account.Service.
type CacheInvalidator interface {
	InvalidateCache(key string)
}

// OrderBroker submits the final order. In paper mode the pipeline never
// calls it — orders are simulated locally instead.
type OrderBroker interface {
	SubmitOrder(ctx context.Context, symbol string, action models.TradeAction, shares int, price money.D, clientOrderID string) (brokerOrderID string, filledPrice money.D, err error)
}

// Breaker is satisfied by internal/retryx.BreakerRegistry, scoped to the
// broker-orders domain.
type Breaker interface {
	Guard(ctx context.Context, domain string, op func(ctx context.Context) (any, error)) (any, error)
}

// dailyState accumulates the realised P/L and same-day-opened symbols the
// pipeline reports to the safety gate's RealisedDailyPL/IsDayTrade
// callbacks (spec.md §4.8's DAILY_LOSS_LIMIT and PDT_LIMIT checks). It
// resets whenever the UTC calendar day rolls over, since neither check
// carries over across trading days.
type dailyState struct {
	mu          sync.Mutex
	day         string
	realisedPL  money.D
	openedToday map[string]bool
}

func (d *dailyState) rolloverLocked(now time.Time) {
	day := now.Format("2006-01-02")
	if day != d.day {
		d.day = day
		d.realisedPL = money.Zero
		d.openedToday = make(map[string]bool)
	}
}

func (d *dailyState) recordOpen(symbol string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	d.openedToday[symbol] = true
}

func (d *dailyState) recordRealisedPL(pl money.D, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	d.realisedPL = d.realisedPL.Add(pl)
}

func (d *dailyState) realised(now time.Time) money.D {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	return d.realisedPL
}

func (d *dailyState) wasOpenedToday(symbol string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	return d.openedToday[symbol]
}

// Pipeline implements execute_trade (spec.md §4.9).
type Pipeline struct {
	auth     Authenticator
	health   HealthChecker
	market   TradeTimeValidator
	safety   SafetyGate
	cache    CacheInvalidator
	broker   OrderBroker
	breakers Breaker
	logger   *auditlog.Logger
	paper    bool
	daily    *dailyState

	// Recorder, if set, receives every successfully written TradeRecord
	// so the operator HTTP surface (C13) can show recent trades.
	Recorder *recorder.Recorder
}

// NewPipeline constructs the execution pipeline. paper selects simulated
// vs. live order submission per the PAPER_TRADING configuration surface.
func NewPipeline(auth Authenticator, health HealthChecker, marketSvc TradeTimeValidator, gate SafetyGate, cache CacheInvalidator, broker OrderBroker, breakers Breaker, logger *auditlog.Logger, paper bool) *Pipeline {
	return &Pipeline{
		auth: auth, health: health, market: marketSvc, safety: gate, cache: cache, broker: broker, breakers: breakers, logger: logger, paper: paper,
		daily: &dailyState{openedToday: make(map[string]bool)},
	}
}

// RealisedDailyPL reports the sum of closing trades' net P/L so far in the
// current UTC trading day. Wired into safety.Gate.RealisedDailyPL so the
// DAILY_LOSS_LIMIT check has a producer.
func (p *Pipeline) RealisedDailyPL() money.D {
	return p.daily.realised(time.Now().UTC())
}

// WasOpenedToday reports whether symbol was opened earlier in the current
// UTC trading day, the "opened same day" half of the PDT day-trade test.
// Wired into safety.Gate.IsDayTrade alongside the closing side (action).
func (p *Pipeline) WasOpenedToday(symbol string) bool {
	return p.daily.wasOpenedToday(symbol, time.Now().UTC())
}

// PlanProvider supplies a PositionPlan for an open, or reuses a live
// position's stop for a close — the caller decides which per spec.md
// §4.9 step 4, since only the caller knows whether this is an open/close.
type PlanProvider func(ctx context.Context) (models.PositionPlan, error)

// Request bundles the inputs to ExecuteTrade.
type Request struct {
	Symbol    string
	Action    models.TradeAction
	Shares    int
	Price     money.D
	ReasonTag string
	Plan      PlanProvider

	// ClosingEntryPrice is set by the caller when this trade closes an
	// existing position (the opposite action of the position's open). Its
	// presence is what tells the pipeline to compute realised P/L and feed
	// it to the daily-loss accumulator; nil means this trade opens a new
	// position instead.
	ClosingEntryPrice *money.D
}

// ExecuteTrade implements spec.md §4.9's eight ordered steps. Every step
// shares one correlation id so the audit trail reconstructs the decision.
func (p *Pipeline) ExecuteTrade(ctx context.Context, req Request) (models.TradeRecord, error) {
	correlationID := uuid.NewString()

	// Step 1: ensure authenticated.
	if p.auth != nil && !p.auth.IsAuthenticated() {
		p.reject(correlationID, req, "not authenticated")
		return models.TradeRecord{}, fmt.Errorf("not authenticated")
	}

	// Step 2: session health, pre-trade call site.
	if p.health != nil {
		hc := p.health.CheckHealth(ctx, "pre_trade")
		if !hc.Success {
			p.reject(correlationID, req, "session health check failed: "+hc.ErrorMessage)
			return models.TradeRecord{}, fmt.Errorf("session health check failed: %s", hc.ErrorMessage)
		}
	}

	// Step 3: trading-window validation.
	if p.market != nil {
		if err := p.market.ValidateTradeTime(time.Now().UTC()); err != nil {
			p.logger.Event(auditlog.DomainTrading, "trade.rejected", correlationID, map[string]any{
				"symbol": req.Symbol, "reason": "OUTSIDE_TRADING_WINDOW", "detail": err.Error(),
			})
			return models.TradeRecord{}, err
		}
	}

	// Step 4: position plan (opens compute one; closes reuse the live
	// position's stop via the caller-supplied PlanProvider).
	var plan models.PositionPlan
	if req.Plan != nil {
		var err error
		plan, err = req.Plan(ctx)
		if err != nil {
			p.reject(correlationID, req, "position plan unavailable: "+err.Error())
			return models.TradeRecord{}, err
		}
	}

	// Step 5: pre-trade safety gate.
	if p.safety != nil {
		result := p.safety.ValidateTrade(ctx, req.Symbol, req.Action, req.Shares, req.Price, nil)
		if !result.Approved {
			p.logger.Event(auditlog.DomainTrading, "trade.rejected", correlationID, map[string]any{
				"symbol": req.Symbol, "reason": string(result.Reason), "detail": result.Detail,
			})
			return models.TradeRecord{}, fmt.Errorf("trade rejected: %s", result.Reason)
		}
	}

	// Step 6: submit the order (paper or live).
	record := models.TradeRecord{
		CorrelationID:   correlationID,
		DecisionTime:    time.Now().UTC(),
		Symbol:          req.Symbol,
		Action:          req.Action,
		Shares:          req.Shares,
		IntendedPrice:   req.Price,
		RiskRewardRatio: plan.RiskRewardRatio,
		Paper:           p.paper,
	}

	clientOrderID := fmt.Sprintf("%s-%s-%d", req.Symbol, correlationID, time.Now().UnixNano())

	if p.paper {
		record.FilledPrice = req.Price
	} else {
		orderID, filled, err := p.submitLive(ctx, req, clientOrderID)
		if err != nil {
			// Step 8: broker failure classification.
			if !retryx.IsRateLimit(err) && p.breakers != nil {
				_, _ = p.breakers.Guard(ctx, "broker-orders", func(ctx context.Context) (any, error) { return nil, err })
			}
			p.logger.Event(auditlog.DomainTrading, "trade.broker_failure", correlationID, map[string]any{
				"symbol": req.Symbol, "error": err.Error(),
			})
			return models.TradeRecord{}, err
		}
		record.BrokerOrderID = orderID
		record.FilledPrice = filled
	}

	now := time.Now().UTC()
	if req.ClosingEntryPrice != nil {
		netPL := closingNetPL(req.Action, *req.ClosingEntryPrice, record.FilledPrice, req.Shares)
		record.NetPL = &netPL
		p.daily.recordRealisedPL(netPL, now)
	} else {
		p.daily.recordOpen(req.Symbol, now)
	}

	// Step 7: persist the record and invalidate affected caches.
	eventFields := map[string]any{
		"symbol": record.Symbol, "action": string(record.Action), "shares": record.Shares,
		"intended_price": record.IntendedPrice, "filled_price": record.FilledPrice,
		"paper": record.Paper, "risk_reward_ratio": record.RiskRewardRatio,
		"broker_order_id": record.BrokerOrderID,
	}
	if record.NetPL != nil {
		eventFields["net_pl"] = *record.NetPL
	}
	p.logger.Event(auditlog.DomainTradeRecord, "trade.executed", correlationID, eventFields)
	if p.cache != nil {
		p.cache.InvalidateCache("buying_power")
		p.cache.InvalidateCache("positions")
	}
	if p.Recorder != nil {
		p.Recorder.RecordTrade(record)
	}

	return record, nil
}

type orderSubmission struct {
	id     string
	filled money.D
}

func (p *Pipeline) submitLive(ctx context.Context, req Request, clientOrderID string) (string, money.D, error) {
	result, err := retryx.WithRetry(ctx, func(ctx context.Context) (orderSubmission, error) {
		id, filled, err := p.broker.SubmitOrder(ctx, req.Symbol, req.Action, req.Shares, req.Price, clientOrderID)
		return orderSubmission{id: id, filled: filled}, err
	}, retryx.DefaultPolicy)
	return result.id, result.filled, err
}

// closingNetPL computes realised P/L for a trade that closes a position.
// A sell closes a long (gain when filled exceeds entry); a buy closes a
// short (gain when entry exceeds filled).
func closingNetPL(action models.TradeAction, entry, filled money.D, shares int) money.D {
	qty := money.FromFloat(float64(shares))
	if action == models.ActionBuy {
		return entry.Sub(filled).Mul(qty)
	}
	return filled.Sub(entry).Mul(qty)
}

func (p *Pipeline) reject(correlationID string, req Request, detail string) {
	p.logger.Event(auditlog.DomainTrading, "trade.rejected", correlationID, map[string]any{
		"symbol": req.Symbol, "detail": detail,
	})
}
