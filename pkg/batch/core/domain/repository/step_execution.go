package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// ErrStepExecutionNotFound is returned when a StepExecution is not found.
var ErrStepExecutionNotFound = errors.New("step execution not found")

func init() {
	exception.RegisterErrorType("ErrStepExecutionNotFound", ErrStepExecutionNotFound)
}

// StepExecution defines operations on step execution records.
type StepExecution interface {
	// SaveStepExecution persists a new StepExecution.
	SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error

	// UpdateStepExecution updates an existing StepExecution with the same optimistic
	// locking rule as UpdateJobExecution.
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error

	// UpdateStepExecutionWithAggregate updates a partitioned step's own record after
	// replacing its metrics with the sum of the metrics of all partition step executions
	// whose ParentStepExecutionID is stepExecution.ID.
	UpdateStepExecutionWithAggregate(ctx context.Context, stepExecution *model.StepExecution) error

	// FindStepExecutionByID finds a StepExecution by its ID.
	FindStepExecutionByID(ctx context.Context, stepExecutionID string) (*model.StepExecution, error)

	// FindStepExecutionsByJobExecution returns the top-level step executions of a job execution in start order.
	FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error)

	// FindPartitionStepExecutions returns the partition step executions of a parent step execution.
	FindPartitionStepExecutions(ctx context.Context, parentStepExecutionID string) ([]*model.StepExecution, error)
}
