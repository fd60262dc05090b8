package metrics

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing.
// It is used when metrics are disabled and in tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(context.Context, *model.JobExecution)   {}
func (r *NoOpMetricRecorder) RecordJobEnd(context.Context, *model.JobExecution)     {}
func (r *NoOpMetricRecorder) RecordStepStart(context.Context, *model.StepExecution) {}
func (r *NoOpMetricRecorder) RecordStepEnd(context.Context, *model.StepExecution)   {}
func (r *NoOpMetricRecorder) RecordItemRead(context.Context, string, int)           {}
func (r *NoOpMetricRecorder) RecordItemWrite(context.Context, string, int)          {}
func (r *NoOpMetricRecorder) RecordItemFilter(context.Context, string, int)         {}
func (r *NoOpMetricRecorder) RecordItemSkip(context.Context, string, ItemPhase, string) {
}
func (r *NoOpMetricRecorder) RecordItemRetry(context.Context, string, ItemPhase, string) {
}
func (r *NoOpMetricRecorder) RecordChunkCommit(context.Context, string)   {}
func (r *NoOpMetricRecorder) RecordChunkRollback(context.Context, string) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartJobSpan returns ctx unchanged.
func (t *NoOpTracer) StartJobSpan(ctx context.Context, _ *model.JobExecution) (context.Context, func()) {
	return ctx, func() {}
}

// StartStepSpan returns ctx unchanged.
func (t *NoOpTracer) StartStepSpan(ctx context.Context, _ *model.StepExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error)               {}
func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]string) {}

var _ Tracer = (*NoOpTracer)(nil)
