package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the module's Prometheus collectors (SPEC_FULL.md §12
// item 5: lamb_completions_total, lamb_tool_invocations_total), trimmed
// from the teacher's much larger agent/memory/session surface. Only
// RecordHTTPRequest is called outside tests (by HTTPMiddleware); the
// completion, tool and connector collectors are registered but not
// updated by the completion pipeline.
type Metrics struct {
	registry *prometheus.Registry

	completionsTotal  *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec

	toolInvocationsTotal *prometheus.CounterVec
	toolDuration         *prometheus.HistogramVec
	toolErrorsTotal      *prometheus.CounterVec

	connectorCalls    *prometheus.CounterVec
	connectorDuration *prometheus.HistogramVec
	connectorErrors   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers the collector set under cfg.Namespace.
func NewMetrics(cfg MetricsConfig) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.completionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "completions_total",
		Help: "Total number of completion requests handled, by orchestrator and outcome.",
	}, []string{"orchestrator", "outcome"})

	m.completionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Name: "completion_duration_seconds",
		Help:    "Completion request duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"orchestrator"})

	m.toolInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "tool_invocations_total",
		Help: "Total number of tool invocations, by tool name.",
	}, []string{"tool"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Name: "tool_duration_seconds",
		Help:    "Tool execution duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tool"})

	m.toolErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "tool_errors_total",
		Help: "Total number of tool invocations that returned an error.",
	}, []string{"tool"})

	m.connectorCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "connector_calls_total",
		Help: "Total number of connector completion calls, by provider and model.",
	}, []string{"provider", "model"})

	m.connectorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Name: "connector_call_duration_seconds",
		Help:    "Connector call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider", "model"})

	m.connectorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "connector_errors_total",
		Help: "Total number of connector calls that returned an error, by provider and error kind.",
	}, []string{"provider", "kind"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Name: "http_requests_total",
		Help: "Total HTTP requests, by route and status text.",
	}, []string{"route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.completionsTotal, m.completionLatency,
		m.toolInvocationsTotal, m.toolDuration, m.toolErrorsTotal,
		m.connectorCalls, m.connectorDuration, m.connectorErrors,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// RecordCompletion records one finished completion request.
func (m *Metrics) RecordCompletion(orchestrator, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionsTotal.WithLabelValues(orchestrator, outcome).Inc()
	m.completionLatency.WithLabelValues(orchestrator).Observe(d.Seconds())
}

// RecordToolInvocation records one tool execution.
func (m *Metrics) RecordToolInvocation(tool string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.toolInvocationsTotal.WithLabelValues(tool).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
	if failed {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

// RecordConnectorCall records one connector completion/stream call.
func (m *Metrics) RecordConnectorCall(provider, model string, d time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.connectorCalls.WithLabelValues(provider, model).Inc()
	m.connectorDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if errKind != "" {
		m.connectorErrors.WithLabelValues(provider, errKind).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
