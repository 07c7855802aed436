package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	xlog "meeting-analyzer/internal/log"
	"meeting-analyzer/internal/metrics"
)

// Runtime holds the process-wide tracer provider and metrics endpoint.
type Runtime struct {
	tracing *Provider
	metrics *metrics.Server
	log     zerolog.Logger
}

// Start installs tracing from the environment and, when metricsAddr is set,
// serves Prometheus metrics on it. Failures are logged and the process keeps
// running without the failed part.
func Start(ctx context.Context, service, metricsAddr string, getenv func(string) string) *Runtime {
	r := &Runtime{log: xlog.WithComponent("telemetry")}

	cfg := ConfigFromEnv(service, getenv)
	tracing, err := NewProvider(ctx, cfg)
	if err != nil {
		r.log.Warn().Err(err).Str("endpoint", cfg.Endpoint).Msg("tracing disabled")
	} else {
		r.tracing = tracing
		if tracing.Enabled() {
			r.log.Info().Str("endpoint", cfg.Endpoint).Str("exporter", cfg.ExporterType).Msg("tracing enabled")
		}
	}

	if metricsAddr != "" {
		srv, err := metrics.Listen(metricsAddr)
		if err != nil {
			r.log.Warn().Err(err).Msg("metrics endpoint disabled")
		} else {
			r.metrics = srv
		}
	}
	return r
}

// TracingEnabled reports whether spans are exported.
func (r *Runtime) TracingEnabled() bool {
	return r.tracing != nil && r.tracing.Enabled()
}

// MetricsAddr returns the bound metrics address, or "" when not serving.
func (r *Runtime) MetricsAddr() string {
	if r.metrics == nil {
		return ""
	}
	return r.metrics.Addr()
}

// Close flushes spans and stops the metrics endpoint.
func (r *Runtime) Close(ctx context.Context) {
	if r.tracing != nil {
		if err := r.tracing.Shutdown(ctx); err != nil {
			r.log.Warn().Err(err).Msg("shutdown tracer provider")
		}
	}
	if r.metrics != nil {
		if err := r.metrics.Shutdown(ctx); err != nil {
			r.log.Warn().Err(err).Msg("shutdown metrics endpoint")
		}
	}
}
