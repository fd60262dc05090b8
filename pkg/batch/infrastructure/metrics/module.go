package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	metrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
)

// Module provides the Prometheus registry and the telemetry providers, and replaces the
// no-op recorder and tracer of core/metrics according to jbatch.telemetry.
var Module = fx.Options(
	fx.Provide(NewPrometheusRegistry),
	fx.Provide(newTelemetry),
	fx.Decorate(decorateRecorder),
	fx.Decorate(decorateTracer),
)

func newTelemetry(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	t, err := NewTelemetry(context.Background(), cfg.JBatch.Telemetry)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: t.Shutdown})
	return t, nil
}

func decorateRecorder(
	noop metrics.MetricRecorder,
	cfg *config.Config,
	registry *prometheus.Registry,
	t *Telemetry,
) (metrics.MetricRecorder, error) {
	switch {
	case cfg.JBatch.Telemetry.MetricsExporter == config.ExporterPrometheus:
		return NewPrometheusRecorder(registry), nil
	case t.MeterProvider != nil:
		return NewOpenTelemetryRecorder(t.MeterProvider)
	}
	return noop, nil
}

func decorateTracer(noop metrics.Tracer, t *Telemetry) metrics.Tracer {
	if t.TracerProvider == nil {
		return noop
	}
	return NewOpenTelemetryTracer(t.TracerProvider)
}
