package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	coremetrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/metrics"
)

func finishedJob(status model.BatchStatus) *model.JobExecution {
	je := model.NewJobExecution(model.NewJobInstance("payroll"), nil)
	start := time.Now().Add(-2 * time.Second)
	end := time.Now()
	je.Status = status
	je.ExitStatus = status.String()
	je.StartTime, je.EndTime = &start, &end
	return je
}

func TestPrometheusRecorder(t *testing.T) {
	registry := metrics.NewPrometheusRegistry()
	r := metrics.NewPrometheusRecorder(registry)
	ctx := context.Background()

	r.RecordItemRead(ctx, "load", 10)
	r.RecordItemWrite(ctx, "load", 8)
	r.RecordItemFilter(ctx, "load", 2)
	r.RecordChunkCommit(ctx, "load")
	r.RecordChunkRollback(ctx, "load")
	r.RecordItemSkip(ctx, "load", coremetrics.PhaseProcess, "ParseError")
	r.RecordJobEnd(ctx, finishedJob(model.BatchStatusCompleted))

	expected := `
# HELP batch_step_read_total Total items read by step.
# TYPE batch_step_read_total counter
batch_step_read_total{step_name="load"} 10
# HELP batch_step_write_total Total items written by step.
# TYPE batch_step_write_total counter
batch_step_write_total{step_name="load"} 8
# HELP batch_item_skip_total Total items skipped by step and reason.
# TYPE batch_item_skip_total counter
batch_item_skip_total{reason="ParseError",step_name="load",type="process"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"batch_step_read_total", "batch_step_write_total", "batch_item_skip_total"))

	n, err := testutil.GatherAndCount(registry, "batch_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenTelemetryTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := metrics.NewOpenTelemetryTracer(provider)

	je := finishedJob(model.BatchStatusStarted)
	ctx, endJob := tracer.StartJobSpan(context.Background(), je)
	se := model.NewStepExecution(je.ID, je.JobInstanceID, "load", 2)
	stepCtx, endStep := tracer.StartStepSpan(ctx, se)
	tracer.RecordEvent(stepCtx, "partition.submitted", map[string]string{"partition": "2"})
	tracer.RecordError(stepCtx, "writer", errors.New("disk full"))
	endStep()
	je.Status = model.BatchStatusFailed
	endJob()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	step, job := spans[0], spans[1]
	assert.Equal(t, "step load #2", step.Name())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())
	assert.Equal(t, codes.Error, step.Status().Code)
	require.Len(t, step.Events(), 2)
	assert.Equal(t, "partition.submitted", step.Events()[0].Name)
	assert.Equal(t, "job payroll", job.Name())
	assert.Equal(t, codes.Error, job.Status().Code)
}

func TestOpenTelemetryRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	r, err := metrics.NewOpenTelemetryRecorder(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	ctx := context.Background()

	r.RecordItemRead(ctx, "load", 5)
	r.RecordItemWrite(ctx, "load", 5)
	r.RecordChunkCommit(ctx, "load")
	r.RecordJobEnd(ctx, finishedJob(model.BatchStatusCompleted))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["batch.step.items"])
	assert.True(t, names["batch.step.chunks"])
	assert.True(t, names["batch.job.executions"])
	assert.True(t, names["batch.job.duration"])
}

func TestNewTelemetry_Disabled(t *testing.T) {
	cfg := config.NewConfig().JBatch.Telemetry
	cfg.TracesExporter = config.ExporterNone
	cfg.MetricsExporter = config.ExporterPrometheus

	tel, err := metrics.NewTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
