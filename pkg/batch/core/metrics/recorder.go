package metrics

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// ItemPhase names the chunk phase an item event happened in.
type ItemPhase string

const (
	PhaseRead    ItemPhase = "read"
	PhaseProcess ItemPhase = "process"
	PhaseWrite   ItemPhase = "write"
)

// MetricRecorder records batch execution metrics.
//
// Job events are emitted only for top-level job executions; partition and split-flow
// sub-jobs emit step events alone. Implementations must be safe for concurrent use.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the started JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)

	// RecordJobEnd records the end of a JobExecution, after its final status is set.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)

	// RecordStepEnd records the end of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordItemRead records count items read.
	RecordItemRead(ctx context.Context, stepName string, count int)

	// RecordItemWrite records count items written.
	RecordItemWrite(ctx context.Context, stepName string, count int)

	// RecordItemFilter records count items filtered by the processor.
	RecordItemFilter(ctx context.Context, stepName string, count int)

	// RecordItemSkip records a skipped item.
	//
	// phase: Where the skip happened.
	// reason: The error text or type that caused the skip.
	RecordItemSkip(ctx context.Context, stepName string, phase ItemPhase, reason string)

	// RecordItemRetry records a retried operation.
	RecordItemRetry(ctx context.Context, stepName string, phase ItemPhase, reason string)

	// RecordChunkCommit records a committed chunk.
	RecordChunkCommit(ctx context.Context, stepName string)

	// RecordChunkRollback records a rolled back chunk.
	RecordChunkRollback(ctx context.Context, stepName string)
}
