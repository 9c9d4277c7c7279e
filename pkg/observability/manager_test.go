package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_NilConfigDisablesBoth(t *testing.T) {
	m, err := NewManager(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, m.Tracer())
	assert.Nil(t, m.Metrics())

	// Recording against a disabled manager must never panic.
	m.Metrics().RecordCompletion("parallel", "ok", time.Millisecond)
	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestNewManager_MetricsEnabledServesPrometheusFormat(t *testing.T) {
	m, err := NewManager(context.Background(), &Config{Metrics: MetricsConfig{Enabled: true}})
	require.NoError(t, err)
	require.NotNil(t, m.Metrics())

	m.Metrics().RecordCompletion("sequential", "ok", 250*time.Millisecond)
	m.Metrics().RecordToolInvocation("simple_rag", 10*time.Millisecond, false)

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "lamb_completions_total")
	assert.Contains(t, rec.Body.String(), "lamb_tool_invocations_total")
}

func TestNewManager_TracingEnabledStartsSpanWithoutError(t *testing.T) {
	m, err := NewManager(context.Background(), &Config{Tracing: TracingConfig{Enabled: true, ServiceName: "lamb-test"}})
	require.NoError(t, err)
	require.NotNil(t, m.Tracer())

	ctx, span := m.Tracer().Start(context.Background(), SpanCompletion)
	require.NotNil(t, ctx)
	span.End()

	require.NoError(t, m.Shutdown(context.Background()))
}
