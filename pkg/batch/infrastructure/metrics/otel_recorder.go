package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
)

// OpenTelemetryRecorder implements metrics.MetricRecorder with OpenTelemetry instruments,
// exported by the configured OTLP metric reader.
type OpenTelemetryRecorder struct {
	jobRuns      metric.Int64Counter
	jobDuration  metric.Float64Histogram
	stepRuns     metric.Int64Counter
	stepDuration metric.Float64Histogram
	items        metric.Int64Counter
	skips        metric.Int64Counter
	retries      metric.Int64Counter
	chunks       metric.Int64Counter
}

// NewOpenTelemetryRecorder creates the batch instruments on provider.
func NewOpenTelemetryRecorder(provider metric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OpenTelemetryRecorder{}
	var err error
	if r.jobRuns, err = meter.Int64Counter("batch.job.executions", metric.WithDescription("Job executions by final status.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stepRuns, err = meter.Int64Counter("batch.step.executions", metric.WithDescription("Step executions by final status.")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.items, err = meter.Int64Counter("batch.step.items", metric.WithDescription("Items read, written and filtered.")); err != nil {
		return nil, err
	}
	if r.skips, err = meter.Int64Counter("batch.item.skips"); err != nil {
		return nil, err
	}
	if r.retries, err = meter.Int64Counter("batch.item.retries"); err != nil {
		return nil, err
	}
	if r.chunks, err = meter.Int64Counter("batch.step.chunks", metric.WithDescription("Chunk commits and rollbacks.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OpenTelemetryRecorder) RecordJobStart(context.Context, *model.JobExecution) {}

func (r *OpenTelemetryRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	)
	r.jobRuns.Add(ctx, 1, attrs)
	if execution.StartTime != nil && execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(*execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) RecordStepStart(context.Context, *model.StepExecution) {}

func (r *OpenTelemetryRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := metric.WithAttributes(
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	)
	r.stepRuns.Add(ctx, 1, attrs)
	if execution.StartTime != nil && execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(*execution.StartTime).Seconds(), attrs)
	}
}

func (r *OpenTelemetryRecorder) addItems(ctx context.Context, stepName, kind string, count int) {
	r.items.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("step_name", stepName),
		attribute.String("kind", kind),
	))
}

func (r *OpenTelemetryRecorder) RecordItemRead(ctx context.Context, stepName string, count int) {
	r.addItems(ctx, stepName, "read", count)
}

func (r *OpenTelemetryRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.addItems(ctx, stepName, "write", count)
}

func (r *OpenTelemetryRecorder) RecordItemFilter(ctx context.Context, stepName string, count int) {
	r.addItems(ctx, stepName, "filter", count)
}

func (r *OpenTelemetryRecorder) RecordItemSkip(ctx context.Context, stepName string, phase metrics.ItemPhase, reason string) {
	r.skips.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_name", stepName),
		attribute.String("phase", string(phase)),
		attribute.String("reason", reason),
	))
}

func (r *OpenTelemetryRecorder) RecordItemRetry(ctx context.Context, stepName string, phase metrics.ItemPhase, reason string) {
	r.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step_name", stepName),
		attribute.String("phase", string(phase)),
		attribute.String("reason", reason),
	))
}

func (r *OpenTelemetryRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("step_name", stepName), attribute.String("outcome", "commit")))
}

func (r *OpenTelemetryRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("step_name", stepName), attribute.String("outcome", "rollback")))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
