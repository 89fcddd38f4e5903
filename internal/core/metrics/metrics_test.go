package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMetrics_Counters(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	require.NoError(t, m.IncrementCounter("relay_envelopes_total", map[string]string{"type": "token_set"}))
	require.NoError(t, m.AddCounter("relay_envelopes_total", 2, map[string]string{"type": "token_set"}))
	require.NoError(t, m.IncrementCounter("relay_envelopes_total", map[string]string{"type": "error"}))

	v, err := m.GetCounter("relay_envelopes_total", map[string]string{"type": "token_set"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, _ = m.GetCounter("relay_envelopes_total", map[string]string{"type": "session_key"})
	assert.Equal(t, 0.0, v)

	assert.Error(t, m.AddCounter("relay_envelopes_total", -1, nil))
}

func TestMemoryMetrics_GaugeAndHistogram(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	require.NoError(t, m.SetGauge("relay_downstream_connections", 3, nil))
	require.NoError(t, m.SetGauge("relay_downstream_connections", 1, nil))
	v, _ := m.GetGauge("relay_downstream_connections", nil)
	assert.Equal(t, 1.0, v)

	require.NoError(t, m.ObserveHistogram("relay_connect_seconds", 0.2, nil))
	assert.Equal(t, 1, m.HistogramCount("relay_connect_seconds", nil))
}

func TestBuildKey_StableOrder(t *testing.T) {
	a := buildKey("x", map[string]string{"b": "2", "a": "1"})
	b := buildKey("x", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "x{a=1,b=2}", a)
	assert.Equal(t, "x", buildKey("x", nil))
}

func TestPrometheusMetrics(t *testing.T) {
	p := NewPrometheusMetrics(context.Background())
	defer p.Close()

	labels := map[string]string{"command": "emit"}
	require.NoError(t, p.IncrementCounter("relay_commands_total", labels))
	require.NoError(t, p.IncrementCounter("relay_commands_total", labels))
	v, err := p.GetCounter("relay_commands_total", labels)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	require.NoError(t, p.SetGauge("relay_downstream_connections", 4, nil))
	g, err := p.GetGauge("relay_downstream_connections", nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, g)

	require.NoError(t, p.ObserveHistogram("relay_connect_seconds", 0.5, nil))

	// 标签键不一致
	assert.Error(t, p.IncrementCounter("relay_commands_total", map[string]string{"other": "x"}))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `relay_commands_total{command="emit"} 2`)
	assert.Contains(t, string(body), "relay_downstream_connections 4")
}

func TestNew(t *testing.T) {
	m, err := New(context.Background(), TypeMemory)
	require.NoError(t, err)
	assert.IsType(t, &MemoryMetrics{}, m)

	m, err = New(context.Background(), TypePrometheus)
	require.NoError(t, err)
	_, ok := m.(HTTPExporter)
	assert.True(t, ok)

	_, err = New(context.Background(), "statsd")
	assert.Error(t, err)
}
