package port

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// JobContext is the view of the running job offered to artifacts.
type JobContext interface {
	JobName() string
	InstanceID() string
	// ExecutionID is empty for partition and split-flow sub-jobs.
	ExecutionID() string
	Properties() map[string]string
	Parameters() model.JobParameters
	BatchStatus() model.BatchStatus
	ExitStatus() string
	SetExitStatus(exitStatus string)
	TransientUserData() any
	SetTransientUserData(data any)
}

// StepContext is the view of the running step offered to artifacts.
type StepContext interface {
	StepName() string
	StepExecutionID() string
	// PartitionIndex is model.TopLevelPartition outside of partitions.
	PartitionIndex() int
	Properties() map[string]string
	BatchStatus() model.BatchStatus
	ExitStatus() string
	SetExitStatus(exitStatus string)
	TransientUserData() any
	SetTransientUserData(data any)
	// PersistentUserData is saved with the StepStatus at every checkpoint and at step end.
	PersistentUserData() []byte
	SetPersistentUserData(data []byte)
	Metrics() model.StepMetrics
	// Exception is the error that failed the step, if any.
	Exception() error
}

type contextKey string

const (
	jobContextKey  contextKey = "jobContext"
	stepContextKey contextKey = "stepContext"
)

// WithJobContext returns ctx carrying jc.
func WithJobContext(ctx context.Context, jc JobContext) context.Context {
	return context.WithValue(ctx, jobContextKey, jc)
}

// JobContextFrom returns the JobContext carried by ctx.
func JobContextFrom(ctx context.Context) (JobContext, bool) {
	jc, ok := ctx.Value(jobContextKey).(JobContext)
	return jc, ok
}

// WithStepContext returns ctx carrying sc.
func WithStepContext(ctx context.Context, sc StepContext) context.Context {
	return context.WithValue(ctx, stepContextKey, sc)
}

// StepContextFrom returns the StepContext carried by ctx.
func StepContextFrom(ctx context.Context) (StepContext, bool) {
	sc, ok := ctx.Value(stepContextKey).(StepContext)
	return sc, ok
}
