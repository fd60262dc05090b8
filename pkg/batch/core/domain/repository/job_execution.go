package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// ErrJobExecutionNotFound is returned when a JobExecution is not found.
var ErrJobExecutionNotFound = errors.New("job execution not found")

func init() {
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
}

// JobExecution defines operations on job execution records.
type JobExecution interface {
	// SaveJobExecution persists a new JobExecution.
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// UpdateJobExecution updates an existing JobExecution. The stored version must equal
	// jobExecution.Version, otherwise exception.ErrOptimisticLockingFailure is returned.
	// On success jobExecution.Version is incremented.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// FindJobExecutionByID finds a JobExecution by its ID.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)

	// FindJobExecutionsByJobInstance returns all executions of an instance, newest first.
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error)

	// FindLatestJobExecution returns the most recent execution of an instance.
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
}
