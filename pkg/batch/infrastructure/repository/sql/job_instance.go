package sql

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveJobInstance persists a new JobInstance.
func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(toJobInstanceEntity(jobInstance)).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to save JobInstance "+jobInstance.ID, err, false, true)
	}
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e JobInstanceEntity
	if err := db.Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrJobInstanceNotFound, "failed to find JobInstance "+id)
	}
	return fromJobInstanceEntity(&e), nil
}

// FindJobInstancesByJobName returns the instances of jobName, newest first.
func (r *SQLJobRepository) FindJobInstancesByJobName(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []JobInstanceEntity
	if err := db.Where("job_name = ?", jobName).Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to find JobInstances of "+jobName, err, false, true)
	}
	out := make([]*model.JobInstance, len(rows))
	for i := range rows {
		out[i] = fromJobInstanceEntity(&rows[i])
	}
	return out, nil
}

// GetJobNames returns the distinct job names, sorted.
func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := db.Model(&JobInstanceEntity{}).Distinct("job_name").Order("job_name").Pluck("job_name", &names).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to list job names", err, false, true)
	}
	return names, nil
}
