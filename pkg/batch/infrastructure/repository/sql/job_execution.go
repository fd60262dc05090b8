package sql

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveJobExecution persists a new JobExecution.
func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	jobExecution.LastUpdated = now()
	if err := db.Create(toJobExecutionEntity(jobExecution)).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to save JobExecution "+jobExecution.ID, err, false, true)
	}
	return nil
}

// UpdateJobExecution updates a JobExecution with optimistic locking and increments its Version.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	updated := jobExecution.Clone()
	updated.LastUpdated = now()
	e := toJobExecutionEntity(updated)
	err := r.updateVersioned(ctx, &JobExecutionEntity{}, jobExecutionColumns(e), jobExecution.Version,
		repository.ErrJobExecutionNotFound, "JobExecution "+jobExecution.ID, "id = ?", jobExecution.ID)
	if err != nil {
		return err
	}
	jobExecution.Version++
	jobExecution.LastUpdated = updated.LastUpdated
	return nil
}

// FindJobExecutionByID finds a JobExecution by its ID.
func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e JobExecutionEntity
	if err := db.Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrJobExecutionNotFound, "failed to find JobExecution "+id)
	}
	return fromJobExecutionEntity(&e), nil
}

// FindJobExecutionsByJobInstance returns all executions of an instance, newest first.
func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []JobExecutionEntity
	if err := db.Where("job_instance_id = ?", jobInstanceID).Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to find JobExecutions of instance "+jobInstanceID, err, false, true)
	}
	out := make([]*model.JobExecution, len(rows))
	for i := range rows {
		out[i] = fromJobExecutionEntity(&rows[i])
	}
	return out, nil
}

// FindLatestJobExecution returns the most recent execution of an instance.
func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e JobExecutionEntity
	if err := db.Where("job_instance_id = ?", jobInstanceID).Order("seq DESC").Take(&e).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrJobExecutionNotFound, "failed to find latest JobExecution of instance "+jobInstanceID)
	}
	return fromJobExecutionEntity(&e), nil
}
