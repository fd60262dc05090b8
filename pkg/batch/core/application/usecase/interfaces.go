package usecase

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
)

// JobOperator starts, restarts, stops and abandons job executions.
type JobOperator interface {
	// Start creates a new JobInstance of jobName and runs its first execution.
	// It returns a snapshot of the execution once it has been submitted.
	Start(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// Restart runs a new execution of the instance of executionID. overrides are merged
	// over the parameters of the restarted execution: new keys win.
	Restart(ctx context.Context, executionID string, overrides model.JobParameters) (*model.JobExecution, error)

	// Stop asks a running execution to stop. Stopping a finished execution does nothing.
	Stop(ctx context.Context, executionID string) error

	// Abandon marks a finished execution ABANDONED. An abandoned instance cannot be restarted.
	Abandon(ctx context.Context, executionID string) error
}

// JobExplorer queries batch metadata (JobInstance, JobExecution, StepExecution).
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID. The status of a running
	// execution is its live status.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves all JobExecutions of a JobInstance, newest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetJobInstance retrieves a JobInstance by its ID.
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)

	// GetJobInstances retrieves the JobInstances of a job, newest first.
	GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error)

	// GetJobNames retrieves the names of all jobs that ever ran.
	GetJobNames(ctx context.Context) ([]string, error)

	// GetParameters retrieves the JobParameters of a JobExecution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)

	// GetStepExecutions retrieves the StepExecutions of a JobExecution, partitions included.
	GetStepExecutions(ctx context.Context, executionID string) ([]*model.StepExecution, error)

	// GetRunningExecutions retrieves the ids of the executions of jobName this process runs.
	GetRunningExecutions(ctx context.Context, jobName string) ([]string, error)
}

// JobSubmitter runs job executions. The BatchKernel implements it.
type JobSubmitter interface {
	Submit(ctx context.Context, job *jsl.Job, je *model.JobExecution, restartAt string) (*kernel.Handle, error)
	Stop(ctx context.Context, executionID string) error
	LiveStatus(executionID string) (model.BatchStatus, bool)
	RunningExecutions() []string
}

// JobDefinitions looks up job definitions by name. jsl.Registry implements it.
type JobDefinitions interface {
	Get(jobID string) (*jsl.Job, bool)
}

var (
	_ JobSubmitter   = (*kernel.BatchKernel)(nil)
	_ JobDefinitions = (*jsl.Registry)(nil)
)
