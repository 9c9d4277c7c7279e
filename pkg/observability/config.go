// Package observability wires structured metrics and tracing around the
// completion pipeline (SPEC_FULL.md §11 domain stack: prometheus +
// otel): request latency, per-tool duration, and completion/tool-call
// counts, plus a span per connector/KB/LMS call. Both are optional and
// independently toggleable — a process with neither enabled pays no
// runtime cost beyond a few nil checks.
package observability

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Config is the root observability configuration, part of the process
// bootstrap config (pkg/config.Config) rather than per-organization data.
type Config struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SetDefaults fills in zero-valued fields.
func (c *Config) SetDefaults() {
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "lamb-core"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "lamb"
	}
}
