// Package main provides the entry point for the sentrytrader equities
// trading bot: session-aware authentication, risk-gated position sizing,
// and a paper/live trade-execution loop over the configured trading
// window.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ridgecrest/sentrytrader/internal/account"
	"github.com/ridgecrest/sentrytrader/internal/auditlog"
	"github.com/ridgecrest/sentrytrader/internal/auth"
	"github.com/ridgecrest/sentrytrader/internal/brokerclient"
	"github.com/ridgecrest/sentrytrader/internal/clock"
	"github.com/ridgecrest/sentrytrader/internal/config"
	"github.com/ridgecrest/sentrytrader/internal/execution"
	"github.com/ridgecrest/sentrytrader/internal/health"
	"github.com/ridgecrest/sentrytrader/internal/market"
	"github.com/ridgecrest/sentrytrader/internal/metrics"
	"github.com/ridgecrest/sentrytrader/internal/models"
	"github.com/ridgecrest/sentrytrader/internal/money"
	"github.com/ridgecrest/sentrytrader/internal/recorder"
	"github.com/ridgecrest/sentrytrader/internal/retryx"
	"github.com/ridgecrest/sentrytrader/internal/risk"
	"github.com/ridgecrest/sentrytrader/internal/safety"
	"github.com/ridgecrest/sentrytrader/internal/statusapi"
)

// watchlistPercentStop is the fallback stop fraction used when ATR is
// disabled or its inputs are unavailable (spec.md §4.7.2 step 6's
// pullback -> percent fallback chain, pullback omitted here since the
// watchlist scan has no pullback-low input).
var watchlistPercentStop = money.FromFloat(0.02)

// watchlistTargetMultiplier sets the scan's target price at 3% above the
// current quote: against a 2% stop that is a risk/reward ratio of exactly
// 1.5, which meets the default minimum of 1.5 without exceeding it.
var watchlistTargetMultiplier = money.FromFloat(1.03)

func main() {
	os.Exit(run())
}

// Bot bundles every composed service the trading loop drives. It exists
// so the loop, the signal handler, and the operator HTTP surface all
// share one set of live collaborators, mirroring the teacher's Bot
// struct in cmd/bot/main.go.
type Bot struct {
	cfg        config.Config
	logger     *auditlog.Logger
	auth       *auth.Service
	account    *account.Service
	market     *market.Service
	health     *health.Monitor
	safety     *safety.Gate
	execution  *execution.Pipeline
	breakers   *retryx.BreakerRegistry
	metrics    *metrics.Registry
	recorder   *recorder.Recorder
	status     *statusapi.Server
	symbols    []string
}

func run() int {
	var (
		envFile     string
		yamlFile    string
		statusAddr  string
		logDir      string
		symbolsFlag string
	)
	flag.StringVar(&envFile, "env", ".env", "Path to .env file (missing is not an error)")
	flag.StringVar(&yamlFile, "config", "config.yaml", "Path to optional YAML config overrides")
	flag.StringVar(&statusAddr, "status-addr", "127.0.0.1:8090", "Operator HTTP surface listen address")
	flag.StringVar(&logDir, "log-dir", "logs", "Directory for JSONL audit logs")
	flag.StringVar(&symbolsFlag, "symbols", "", "Comma-separated watchlist symbols (e.g. AAPL,MSFT)")
	flag.Parse()

	cfg, err := config.Load(envFile, yamlFile)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	bot, err := buildBot(cfg, logDir, statusAddr, splitSymbols(symbolsFlag))
	if err != nil {
		log.Printf("failed to compose bot: %v", err)
		return 1
	}
	defer func() { _ = bot.logger.Close() }()

	if cfg.PaperTrading {
		log.Println("PAPER TRADING MODE - no real money at risk")
	} else {
		log.Println("LIVE TRADING MODE - real money at risk")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received, stopping bot")
		bot.health.StopPeriodicChecks()
		cancel()
	}()

	go func() {
		log.Printf("operator HTTP surface listening on %s", statusAddr)
		if err := bot.status.ListenAndServe(); err != nil {
			log.Printf("operator HTTP surface error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = bot.status.Shutdown(shutdownCtx)
	}()

	if _, err := bot.auth.Login(ctx); err != nil {
		log.Printf("initial login failed: %v", err)
		return 1
	}
	bot.health.StartPeriodicChecks(ctx)

	return bot.tradingLoop(ctx)
}

// authBrokerAdapter bridges brokerclient.Client's transport-level
// AuthResultDTO to the auth.Broker interface's own AuthResult type,
// avoiding an import cycle between internal/auth and internal/brokerclient.
type authBrokerAdapter struct {
	client *brokerclient.Client
}

func (a authBrokerAdapter) Authenticate(ctx context.Context, creds models.Credentials) (auth.AuthResult, error) {
	dto, err := a.client.Authenticate(ctx, creds)
	if err != nil {
		return auth.AuthResult{}, err
	}
	return auth.AuthResult{Session: dto.Session, Needs: auth.ChallengeKind(dto.Needs)}, nil
}

func (a authBrokerAdapter) RespondToChallenge(ctx context.Context, code string) (models.Session, error) {
	return a.client.RespondToChallenge(ctx, code)
}

func (a authBrokerAdapter) RespondToDeviceToken(ctx context.Context, token string) (models.Session, error) {
	return a.client.RespondToDeviceToken(ctx, token)
}

func (a authBrokerAdapter) Logout(ctx context.Context, session models.Session) error {
	return a.client.Logout(ctx, session)
}

func (a authBrokerAdapter) Refresh(ctx context.Context, session models.Session) (models.Session, error) {
	return a.client.Refresh(ctx, session)
}

// buildBot wires C1-C14 together at composition time: the circuit
// breaker registry is constructed once here and injected into every
// consumer, matching the "breaker registered at application composition
// time" strategy in spec.md §9.
func buildBot(cfg config.Config, logDir, statusAddr string, symbols []string) (*Bot, error) {
	logger := auditlog.New(logDir)

	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	breakers := retryx.NewBreakerRegistry(func(domain string) gobreaker.Settings {
		return retryx.DefaultBreakerSettings(domain)
	})

	broker := brokerclient.New(os.Getenv("BROKER_BASE_URL"), &http.Client{Timeout: 10 * time.Second})

	sessionPath := "session.json"
	authSvc := auth.NewService(authBrokerAdapter{broker}, logger, cfg.Credentials, sessionPath)

	accountSvc := account.NewService(broker, breakers, reg)

	marketSvc := market.NewService(broker, market.Config{
		RequestsPerSecond: market.DefaultConfig.RequestsPerSecond,
		Burst:             market.DefaultConfig.Burst,
		StalenessBound:    time.Duration(cfg.QuoteStalenessSeconds) * time.Second,
		Window: clock.Window{
			Timezone:  cfg.TradingTimezone,
			StartHour: cfg.TradingWindowStartHour,
			EndHour:   cfg.TradingWindowEndHour,
		},
	})

	healthMon := health.NewMonitor(broker, authSvc, brokerclient.IsAuthError, breakers, logger, reg, "broker-session")

	rec := recorder.New(200)

	gate := safety.NewGate(accountSvc, marketSvc, breakers, logger, reg, safety.Config{
		DailyLossCapPct:   cfg.DailyLossCapPct,
		PerPositionCapPct: cfg.PerPositionCapPct,
		PDTDayTradeLimit:  3,
		BreakerDomain:     "broker-orders",
	})
	gate.Recorder = rec

	pipeline := execution.NewPipeline(authSvc, healthMon, marketSvc, gate, accountSvc, broker, breakers, logger, cfg.PaperTrading)
	pipeline.Recorder = rec

	// The gate's DAILY_LOSS_LIMIT and PDT_LIMIT checks are both gated on
	// these being non-nil (internal/safety/safety.go); the pipeline is the
	// only component that tracks realised P/L and same-day opens, so it
	// must supply both.
	gate.RealisedDailyPL = pipeline.RealisedDailyPL
	gate.IsDayTrade = func(symbol string, action models.TradeAction) bool {
		return action == models.ActionSell && pipeline.WasOpenedToday(symbol)
	}

	statusSrv := statusapi.NewServer(statusapi.Config{Addr: statusAddr}, healthMon, breakers, rec, logrus.New())

	return &Bot{
		cfg:       cfg,
		logger:    logger,
		auth:      authSvc,
		account:   accountSvc,
		market:    marketSvc,
		health:    healthMon,
		safety:    gate,
		execution: pipeline,
		breakers:  breakers,
		metrics:   reg,
		recorder:  rec,
		status:    statusSrv,
		symbols:   symbols,
	}, nil
}

// tradingLoop evaluates the watchlist once per minute whenever the
// current instant falls inside the configured trading window, submitting
// one position-plan-gated trade per symbol per pass. It exits cleanly
// when ctx is canceled.
func (b *Bot) tradingLoop(ctx context.Context) int {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
			if err := b.market.ValidateTradeTime(time.Now().UTC()); err != nil {
				continue
			}
			for _, symbol := range b.symbols {
				b.evaluateSymbol(ctx, symbol)
			}
		}
	}
}

func (b *Bot) evaluateSymbol(ctx context.Context, symbol string) {
	quote, err := b.market.GetQuote(ctx, symbol)
	if err != nil {
		b.logger.Event(auditlog.DomainTrading, "symbol.quote_error", "", map[string]any{"symbol": symbol, "error": err.Error()})
		return
	}

	var atrData models.ATRStopData
	if b.cfg.ATREnabled {
		bars, err := b.market.GetHistoricalData(ctx, symbol, "1d", 30*24*time.Hour)
		if err == nil {
			if computed, err := risk.ComputeATR(bars, b.cfg.ATRPeriod, b.cfg.ATRMultiplier); err == nil {
				atrData = computed
			}
		}
	}

	req := execution.Request{
		Symbol:    symbol,
		Action:    models.ActionBuy,
		Price:     quote.CurrentPrice,
		ReasonTag: "watchlist_scan",
		Plan: func(ctx context.Context) (models.PositionPlan, error) {
			bp, err := b.account.GetBuyingPower(ctx, true)
			if err != nil {
				return models.PositionPlan{}, err
			}
			plan, err := risk.ComputePlan(risk.PlanRequest{
				Symbol:        symbol,
				BuyingPower:   bp,
				RiskFraction:  b.cfg.PerTradeRiskPct,
				EntryPrice:    quote.CurrentPrice,
				TargetPrice:   quote.CurrentPrice.Mul(watchlistTargetMultiplier),
				MinRiskReward: b.cfg.MinRiskReward,
				Sources:       b.stopSources(atrData),
				OnFallback: func(from, to models.StopStrategyTag, reason string) {
					b.logger.Event(auditlog.DomainTrading, "risk.stop_fallback", "", map[string]any{
						"symbol": symbol, "from": string(from), "to": string(to), "reason": reason,
					})
				},
			})
			return plan, err
		},
	}

	// Resolve the plan once up front so the shares count is known before
	// ExecuteTrade runs, then hand it a fixed PlanProvider so the plan is
	// not recomputed (and risk drifting) a second time inside the pipeline.
	plan, err := req.Plan(ctx)
	if err != nil {
		return
	}
	req.Shares = plan.Shares
	req.Plan = func(context.Context) (models.PositionPlan, error) { return plan, nil }

	if _, err := b.execution.ExecuteTrade(ctx, req); err != nil {
		b.logger.Event(auditlog.DomainTrading, "symbol.execute_error", "", map[string]any{"symbol": symbol, "error": err.Error()})
	}
}

func (b *Bot) stopSources(atrData models.ATRStopData) []risk.StopSource {
	var sources []risk.StopSource
	if b.cfg.ATREnabled && atrData.Period > 0 {
		sources = append(sources, risk.StopSource{Kind: risk.StopSourceATR, ATRData: atrData})
	}
	sources = append(sources, risk.StopSource{Kind: risk.StopSourcePercent, PercentFraction: watchlistPercentStop})
	return sources
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
