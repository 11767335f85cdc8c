// Package statusapi is the operator HTTP surface (C13): a read-only view
// of session health, cache freshness, recent safety decisions, recent
// trade records, and circuit-breaker state. Adapted from the teacher's
// internal/dashboard.Server (chi router + chi middleware stack,
// sirupsen/logrus request logging) but with every mutating route
// removed — no order placement or config mutation is exposed here.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ridgecrest/sentrytrader/internal/models"
)

// HealthSource is satisfied by internal/health.Monitor.
type HealthSource interface {
	GetSessionStatus() models.SessionHealthStatus
}

// BreakerSource reports the circuit breaker state of every registered
// domain, satisfied directly by internal/retryx.BreakerRegistry.
type BreakerSource interface {
	States() map[string]string
}

// RecentTradesSource exposes the last N trade records and safety
// decisions for operator visibility.
type RecentTradesSource interface {
	RecentTrades(n int) []models.TradeRecord
	RecentSafetyResults(n int) []models.SafetyResult
}

// Server hosts the read-only operator HTTP surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	health HealthSource
	breakers BreakerSource
	trades RecentTradesSource
	logger *logrus.Logger
}

// Config tunes the listener.
type Config struct {
	Addr string // default "127.0.0.1:8090"
}

// NewServer constructs the statusapi server and wires its read-only
// routes.
func NewServer(cfg Config, health HealthSource, breakers BreakerSource, trades RecentTradesSource, logger *logrus.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8090"
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		router:   chi.NewRouter(),
		health:   health,
		breakers: breakers,
		trades:   trades,
		logger:   logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/status", s.handleStatus)
	s.router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving the operator surface until the process
// is terminated or Shutdown is called from another goroutine.
func (s *Server) ListenAndServe() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	Health   models.SessionHealthStatus `json:"health"`
	Breakers map[string]string          `json:"circuit_breakers"`
	Trades   []models.TradeRecord       `json:"recent_trades"`
	Safety   []models.SafetyResult      `json:"recent_safety_results"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}
	if s.health != nil {
		resp.Health = s.health.GetSessionStatus()
	}
	if s.breakers != nil {
		resp.Breakers = s.breakers.States()
	}
	if s.trades != nil {
		resp.Trades = s.trades.RecentTrades(20)
		resp.Safety = s.trades.RecentSafetyResults(20)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithError(err).Error("encoding status response")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
