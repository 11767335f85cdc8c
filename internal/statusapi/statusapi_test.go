package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgecrest/sentrytrader/internal/models"
)

type fakeHealthSource struct{ status models.SessionHealthStatus }

func (f *fakeHealthSource) GetSessionStatus() models.SessionHealthStatus { return f.status }

type fakeBreakerSource struct{ states map[string]string }

func (f *fakeBreakerSource) States() map[string]string { return f.states }

type fakeTradesSource struct {
	trades []models.TradeRecord
	safety []models.SafetyResult
}

func (f *fakeTradesSource) RecentTrades(n int) []models.TradeRecord      { return f.trades }
func (f *fakeTradesSource) RecentSafetyResults(n int) []models.SafetyResult { return f.safety }

func TestHealthzReturnsOK(t *testing.T) {
	s := NewServer(Config{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusAggregatesAllSources(t *testing.T) {
	health := &fakeHealthSource{status: models.SessionHealthStatus{IsHealthy: true, HealthCheckCount: 5}}
	breakers := &fakeBreakerSource{states: map[string]string{"broker-orders": "closed"}}
	trades := &fakeTradesSource{
		trades: []models.TradeRecord{{Symbol: "AAPL"}},
		safety: []models.SafetyResult{{Approved: true}},
	}
	s := NewServer(Config{}, health, breakers, trades, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Health.IsHealthy)
	assert.Equal(t, "closed", resp.Breakers["broker-orders"])
	require.Len(t, resp.Trades, 1)
	assert.Equal(t, "AAPL", resp.Trades[0].Symbol)
	require.Len(t, resp.Safety, 1)
	assert.True(t, resp.Safety[0].Approved)
}

func TestStatusWithNilSourcesDoesNotPanic(t *testing.T) {
	s := NewServer(Config{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRouteIsRegistered(t *testing.T) {
	s := NewServer(Config{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServerDefaultsAddrWhenEmpty(t *testing.T) {
	s := NewServer(Config{}, nil, nil, nil, nil)
	assert.Equal(t, "127.0.0.1:8090", s.server.Addr)
}
