package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, gv *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, gv.WithLabelValues(labels...).Write(m))
	return m.GetGauge().GetValue()
}

func TestNewRegistryRegistersAllSeriesWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	assert.NotNil(t, m.HealthCheckLatency)
	assert.NotNil(t, m.CircuitBreakerState)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSetBreakerStateMapsTextToGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.SetBreakerState("broker-orders", "closed")
	assert.Equal(t, float64(0), gaugeValue(t, m.CircuitBreakerState, "broker-orders"))

	m.SetBreakerState("broker-orders", "half_open")
	assert.Equal(t, float64(1), gaugeValue(t, m.CircuitBreakerState, "broker-orders"))

	m.SetBreakerState("broker-orders", "open")
	assert.Equal(t, float64(2), gaugeValue(t, m.CircuitBreakerState, "broker-orders"))
}

func TestSetBreakerStateUnknownStateDefaultsToClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.SetBreakerState("market-data", "nonsense")
	assert.Equal(t, float64(0), gaugeValue(t, m.CircuitBreakerState, "market-data"))
}
