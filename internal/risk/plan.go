package risk

import (
	"fmt"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
)

// StopSourceKind names which stop-determination rule a StopSource uses.
type StopSourceKind string

const (
	StopSourcePullback StopSourceKind = "pullback_low"
	StopSourcePercent  StopSourceKind = "percent"
	StopSourceATR      StopSourceKind = "atr"
)

// StopSource is one candidate way to determine a plan's stop price.
type StopSource struct {
	Kind StopSourceKind

	// PullbackLow is the given pullback-low price, used when Kind is
	// StopSourcePullback.
	PullbackLow money.D

	// PercentFraction is x in "stop = entry * (1 - x)", used when Kind is
	// StopSourcePercent.
	PercentFraction money.D

	// ATRData is the computed ATR input, used when Kind is StopSourceATR.
	// A zero-value (Period == 0) ATRData is treated as "unavailable" and
	// triggers the fallback chain.
	ATRData models.ATRStopData
}

func (s StopSource) tag() models.StopStrategyTag {
	switch s.Kind {
	case StopSourcePullback:
		return models.StopStrategyPullback
	case StopSourceATR:
		return models.StopStrategyATR
	default:
		return models.StopStrategyPercent
	}
}

func (s StopSource) available() bool {
	if s.Kind == StopSourceATR {
		return s.ATRData.Period > 0
	}
	return true
}

func (s StopSource) stopPrice(entry money.D) (money.D, error) {
	switch s.Kind {
	case StopSourcePullback:
		return s.PullbackLow, nil
	case StopSourcePercent:
		one := money.FromFloat(1)
		return entry.Mul(one.Sub(s.PercentFraction)), nil
	case StopSourceATR:
		return entry.Sub(s.ATRData.ATRValue.Mul(s.ATRData.Multiplier)), nil
	default:
		return money.Zero, fmt.Errorf("unknown stop source kind %q", s.Kind)
	}
}

// PlanRequest is the input to ComputePlan.
type PlanRequest struct {
	Symbol        string
	BuyingPower   money.D
	RiskFraction  money.D
	EntryPrice    money.D
	TargetPrice   money.D
	MinRiskReward money.D // defaults to 1.5 when zero

	// Sources are tried in order; the first available, stop-distance-valid
	// source is used. A later source is attempted only when an earlier one
	// is unavailable or fails stop-distance validation, per the fallback
	// chain in spec.md §4.7.2 step 6 (atr -> pullback -> percent).
	Sources []StopSource

	// OnFallback, if set, is called when a later source in Sources is used
	// because an earlier one was unavailable or invalid.
	OnFallback func(from, to models.StopStrategyTag, reason string)
}

var defaultMinRR = money.FromFloat(1.5)

// ComputePlan implements spec.md §4.7.2.
func ComputePlan(req PlanRequest) (models.PositionPlan, error) {
	if !req.EntryPrice.IsPositive() {
		return models.PositionPlan{}, retryx.NewDataValidationError("entry_price", "entry price must be positive")
	}
	minRR := req.MinRiskReward
	if minRR.IsZero() {
		minRR = defaultMinRR
	}
	if len(req.Sources) == 0 {
		return models.PositionPlan{}, retryx.NewDataValidationError("stop_source", "no stop source supplied")
	}

	var lastErr error
	var usedTag models.StopStrategyTag
	for i, src := range req.Sources {
		if !src.available() {
			if i+1 < len(req.Sources) && req.OnFallback != nil {
				req.OnFallback(src.tag(), req.Sources[i+1].tag(), "stop source unavailable")
			}
			continue
		}

		stop, err := src.stopPrice(req.EntryPrice)
		if err != nil {
			lastErr = err
			continue
		}
		if err := validateStopDistance(req.EntryPrice, stop); err != nil {
			lastErr = err
			if i+1 < len(req.Sources) && req.OnFallback != nil {
				req.OnFallback(src.tag(), req.Sources[i+1].tag(), err.Error())
			}
			continue
		}

		usedTag = src.tag()
		return buildPlan(req, stop, usedTag, minRR)
	}

	if lastErr != nil {
		return models.PositionPlan{}, lastErr
	}
	return models.PositionPlan{}, retryx.NewDataValidationError("stop_source", "no stop source produced a valid stop")
}

// validateStopDistance implements spec.md §4.7.2 step 2: d must be within
// 1e-9 of exactly 0.5%, or within [0.7%, 10%].
func validateStopDistance(entry, stop money.D) error {
	d := entry.Sub(stop).Div(entry)
	exact := money.FromFloat(0.005)
	tolerance := money.FromFloat(1e-9)
	if d.Sub(exact).Abs().LessThanOrEqual(tolerance) {
		return nil
	}
	lower := money.FromFloat(0.007)
	upper := money.FromFloat(0.10)
	if d.GreaterThanOrEqual(lower) && d.LessThanOrEqual(upper) {
		return nil
	}
	return retryx.NewDataValidationError("stop_price", fmt.Sprintf("stop distance %s is outside the permitted window", d.String()))
}

func buildPlan(req PlanRequest, stop money.D, tag models.StopStrategyTag, minRR money.D) (models.PositionPlan, error) {
	riskDollars := req.BuyingPower.Mul(req.RiskFraction)
	perShareRisk := req.EntryPrice.Sub(stop)
	if !perShareRisk.IsPositive() {
		return models.PositionPlan{}, retryx.NewDataValidationError("stop_price", "stop price must be below entry price for a long position")
	}
	if riskDollars.LessThan(perShareRisk) {
		return models.PositionPlan{}, retryx.NewDataValidationError("risk_amount", "insufficient risk budget")
	}

	sharesFloat, _ := riskDollars.Div(perShareRisk).Float64()
	shares := int(sharesFloat)
	if shares < 1 {
		shares = 1
	}

	sharesD := money.FromFloat(float64(shares))
	riskAmount := sharesD.Mul(perShareRisk)
	rewardAmount := sharesD.Mul(req.TargetPrice.Sub(req.EntryPrice))

	if riskAmount.IsZero() {
		return models.PositionPlan{}, retryx.NewDataValidationError("risk_amount", "risk amount is zero")
	}
	rr := rewardAmount.Div(riskAmount)
	if rr.LessThan(minRR) {
		return models.PositionPlan{}, retryx.NewDataValidationError("risk_reward_ratio", fmt.Sprintf("risk/reward %s below configured minimum %s", rr.String(), minRR.String()))
	}

	return models.PositionPlan{
		Symbol:          req.Symbol,
		Shares:          shares,
		EntryPrice:      req.EntryPrice,
		StopPrice:       stop,
		TargetPrice:     req.TargetPrice,
		RiskAmount:      riskAmount,
		RewardAmount:    rewardAmount,
		RiskRewardRatio: rr,
		StopStrategyTag: tag,
	}, nil
}
