package sql

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveStepExecution persists a new StepExecution.
func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	stepExecution.LastUpdated = now()
	if err := db.Create(toStepExecutionEntity(stepExecution)).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to save StepExecution "+stepExecution.ID, err, false, true)
	}
	return nil
}

// UpdateStepExecution updates a StepExecution with optimistic locking.
func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	updated := stepExecution.Clone()
	updated.LastUpdated = now()
	e := toStepExecutionEntity(updated)
	err := r.updateVersioned(ctx, &StepExecutionEntity{}, stepExecutionColumns(e), stepExecution.Version,
		repository.ErrStepExecutionNotFound, "StepExecution "+stepExecution.ID, "id = ?", stepExecution.ID)
	if err != nil {
		return err
	}
	stepExecution.Version++
	stepExecution.LastUpdated = updated.LastUpdated
	return nil
}

// UpdateStepExecutionWithAggregate replaces the metrics of stepExecution with the sum of
// its partitions' metrics and stores it.
func (r *SQLJobRepository) UpdateStepExecutionWithAggregate(ctx context.Context, stepExecution *model.StepExecution) error {
	partitions, err := r.FindPartitionStepExecutions(ctx, stepExecution.ID)
	if err != nil {
		return err
	}
	var sum model.StepMetrics
	for _, p := range partitions {
		sum = sum.Add(p.Metrics)
	}
	stepExecution.Metrics = sum
	return r.UpdateStepExecution(ctx, stepExecution)
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e StepExecutionEntity
	if err := db.Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrStepExecutionNotFound, "failed to find StepExecution "+id)
	}
	return fromStepExecutionEntity(&e), nil
}

// FindStepExecutionsByJobExecution returns the top-level step executions of a job execution in start order.
func (r *SQLJobRepository) FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	return r.stepExecutionsWhere(ctx, "job_execution_id = ? AND partition_index = ?", jobExecutionID, model.TopLevelPartition)
}

// FindPartitionStepExecutions returns the partition step executions of a parent step execution.
func (r *SQLJobRepository) FindPartitionStepExecutions(ctx context.Context, parentStepExecutionID string) ([]*model.StepExecution, error) {
	return r.stepExecutionsWhere(ctx, "parent_step_execution_id = ?", parentStepExecutionID)
}

func (r *SQLJobRepository) stepExecutionsWhere(ctx context.Context, where string, args ...interface{}) ([]*model.StepExecution, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []StepExecutionEntity
	if err := db.Where(where, args...).Order("seq").Find(&rows).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to find StepExecutions", err, false, true)
	}
	out := make([]*model.StepExecution, len(rows))
	for i := range rows {
		out[i] = fromStepExecutionEntity(&rows[i])
	}
	return out, nil
}
