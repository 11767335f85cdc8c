// Package config is the bootstrap/configuration surface (C12): the
// env-var keys enumerated in spec.md §6 are the primary surface, loaded
// via github.com/joho/godotenv (seen directly in Inkedup1114-bitunixbot,
// aristath-sentinel, poorman-SynapseStrike, ChoSanghyuk-blackholedex) so
// a local .env file populates the process environment before parsing. An
// optional config.yaml (the teacher's own gopkg.in/yaml.v3 dependency)
// supplies non-secret operational defaults that env vars override.
// Validate follows the teacher's config.Config exhaustive
// field-by-field style.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Credentials models.Credentials

	PaperTrading bool

	TradingTimezone        string
	TradingWindowStartHour int
	TradingWindowEndHour   int

	QuoteStalenessSeconds int

	RateLimitRetries     int
	RateLimitBackoffBase float64

	ATREnabled    bool
	ATRPeriod     int
	ATRMultiplier money.D

	DailyLossCapPct   money.D
	PerTradeRiskPct   money.D
	PerPositionCapPct money.D
	MinRiskReward     money.D

	TrailingStopActivationPct money.D
	TrailingStopDistancePct   money.D

	PerformanceSummaryTimezone    string
	PerformanceAlertRollingWindow int
}

// yamlOverrides is the optional, non-secret operational subset a
// config.yaml file may supply. Anything here is overridden by an env var
// of the same concern if one is set.
type yamlOverrides struct {
	TradingTimezone               *string  `yaml:"trading_timezone"`
	TradingWindowStartHour        *int     `yaml:"trading_window_start_hour"`
	TradingWindowEndHour          *int     `yaml:"trading_window_end_hour"`
	ATRPeriod                     *int     `yaml:"atr_period"`
	ATRMultiplier                 *float64 `yaml:"atr_multiplier"`
	DailyLossCapPct               *float64 `yaml:"daily_loss_cap_pct"`
	PerTradeRiskPct               *float64 `yaml:"per_trade_risk_pct"`
	PerPositionCapPct             *float64 `yaml:"per_position_cap_pct"`
	MinRiskReward                 *float64 `yaml:"min_risk_reward"`
	TrailingStopActivationPct     *float64 `yaml:"trailing_stop_activation_pct"`
	TrailingStopDistancePct       *float64 `yaml:"trailing_stop_distance_pct"`
	PerformanceAlertRollingWindow *int     `yaml:"performance_alert_rolling_window"`
}

// Load reads .env (if present), an optional YAML overrides file, then
// the process environment (which always wins), and returns a validated,
// normalized Config.
func Load(envFile, yamlFile string) (Config, error) {
	if envFile != "" {
		// A missing .env is not an error — env vars may be supplied by the
		// platform instead of a local file.
		_ = godotenv.Load(envFile)
	}

	var overrides yamlOverrides
	if yamlFile != "" {
		if raw, err := os.ReadFile(yamlFile); err == nil {
			if err := yaml.Unmarshal(raw, &overrides); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", yamlFile, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading %s: %w", yamlFile, err)
		}
	}

	cfg := Config{
		Credentials: models.Credentials{
			Username:        os.Getenv("ROBINHOOD_USERNAME"),
			Password:        os.Getenv("ROBINHOOD_PASSWORD"),
			ChallengeSecret: os.Getenv("ROBINHOOD_MFA_SECRET"),
			DeviceToken:     os.Getenv("ROBINHOOD_DEVICE_TOKEN"),
		},
		PaperTrading:           envBool("PAPER_TRADING", true),
		TradingTimezone:        envStringOr("TRADING_TIMEZONE", derefString(overrides.TradingTimezone, "America/New_York")),
		TradingWindowStartHour: envIntOr("TRADING_WINDOW_START_HOUR", derefInt(overrides.TradingWindowStartHour, 7)),
		TradingWindowEndHour:   envIntOr("TRADING_WINDOW_END_HOUR", derefInt(overrides.TradingWindowEndHour, 10)),
		QuoteStalenessSeconds:  envIntOr("QUOTE_STALENESS_SECONDS", 300),
		RateLimitRetries:       envIntOr("RATE_LIMIT_RETRIES", 3),
		RateLimitBackoffBase:   envFloatOr("RATE_LIMIT_BACKOFF_BASE", 1.0),
		ATREnabled:             envBool("ATR_ENABLED", false),
		ATRPeriod:              envIntOr("ATR_PERIOD", derefInt(overrides.ATRPeriod, 14)),
		ATRMultiplier:          money.FromFloat(envFloatOr("ATR_MULTIPLIER", derefFloat(overrides.ATRMultiplier, 2.0))),
		DailyLossCapPct:        money.FromFloat(envFloatOr("DAILY_LOSS_CAP_PCT", derefFloat(overrides.DailyLossCapPct, 0.02))),
		PerTradeRiskPct:        money.FromFloat(envFloatOr("PER_TRADE_RISK_PCT", derefFloat(overrides.PerTradeRiskPct, 0.01))),
		PerPositionCapPct:      money.FromFloat(envFloatOr("PER_POSITION_CAP_PCT", derefFloat(overrides.PerPositionCapPct, 0.05))),
		MinRiskReward:          money.FromFloat(envFloatOr("MIN_RISK_REWARD", derefFloat(overrides.MinRiskReward, 1.5))),
		TrailingStopActivationPct: money.FromFloat(envFloatOr("TRAILING_STOP_ACTIVATION_PCT", derefFloat(overrides.TrailingStopActivationPct, 0.10))),
		TrailingStopDistancePct:   money.FromFloat(envFloatOr("TRAILING_STOP_DISTANCE_PCT", derefFloat(overrides.TrailingStopDistancePct, 0.05))),
		PerformanceSummaryTimezone:    envStringOr("PERFORMANCE_SUMMARY_TIMEZONE", "UTC"),
		PerformanceAlertRollingWindow: envIntOr("PERFORMANCE_ALERT_ROLLING_WINDOW", derefInt(overrides.PerformanceAlertRollingWindow, 20)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate mirrors the teacher's exhaustive field-by-field config
// validation: required fields present, numeric ranges sane.
func (c Config) Validate() error {
	if c.Credentials.Username == "" {
		return fmt.Errorf("ROBINHOOD_USERNAME is required")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("ROBINHOOD_PASSWORD is required")
	}
	if c.TradingWindowStartHour < 0 || c.TradingWindowStartHour > 24 {
		return fmt.Errorf("TRADING_WINDOW_START_HOUR out of range: %d", c.TradingWindowStartHour)
	}
	if c.TradingWindowEndHour < 0 || c.TradingWindowEndHour > 24 {
		return fmt.Errorf("TRADING_WINDOW_END_HOUR out of range: %d", c.TradingWindowEndHour)
	}
	if c.TradingWindowStartHour >= c.TradingWindowEndHour {
		return fmt.Errorf("trading window start hour must be before end hour")
	}
	if c.QuoteStalenessSeconds <= 0 {
		return fmt.Errorf("QUOTE_STALENESS_SECONDS must be positive")
	}
	if c.RateLimitRetries < 1 {
		return fmt.Errorf("RATE_LIMIT_RETRIES must be at least 1")
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("ATR_PERIOD must be at least 1")
	}
	return nil
}

func envStringOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func derefString(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func derefInt(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func derefFloat(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
