package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Manager owns the lifecycle of the tracer and metrics registry, handed
// to cmd/lambd once at startup and threaded through pkg/server and the
// connector/orchestration/tool call sites that record against it.
type Manager struct {
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds a Manager from cfg. A nil cfg, or cfg with both
// tracing and metrics disabled, returns a non-nil Manager whose Tracer
// and Metrics accessors return nil — every recording call on a nil
// *Tracer/*Metrics is a no-op, so callers never need to branch on
// whether observability is enabled.
func NewManager(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil {
		return &Manager{}, nil
	}
	cfg.SetDefaults()

	m := &Manager{}
	if cfg.Tracing.Enabled {
		tracer, err := NewTracer(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initialize tracer: %w", err)
		}
		m.tracer = tracer
		slog.Info("observability: tracing initialized", "service", cfg.Tracing.ServiceName, "sampling_rate", cfg.Tracing.SamplingRate)
	}
	if cfg.Metrics.Enabled {
		m.metrics = NewMetrics(cfg.Metrics)
		slog.Info("observability: metrics initialized", "namespace", cfg.Metrics.Namespace)
	}
	return m, nil
}

// Tracer returns the tracer, or nil if tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Metrics returns the metrics collector, or nil if metrics are disabled.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// MetricsHandler returns the HTTP handler pkg/server mounts at /metrics.
func (m *Manager) MetricsHandler() http.Handler {
	return m.Metrics().Handler()
}

// Shutdown flushes and stops the tracer provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.tracer.Shutdown(ctx)
}
