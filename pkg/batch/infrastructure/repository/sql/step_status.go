package sql

import (
	"context"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// CreateStepStatus persists a new StepStatus.
func (r *SQLJobRepository) CreateStepStatus(ctx context.Context, status *model.StepStatus) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	status.LastUpdated = now()
	if err := db.Create(toStepStatusEntity(status)).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to create StepStatus "+status.StepName, err, false, true)
	}
	return nil
}

// UpdateStepStatus updates a StepStatus with optimistic locking.
func (r *SQLJobRepository) UpdateStepStatus(ctx context.Context, status *model.StepStatus) error {
	updated := status.Clone()
	updated.LastUpdated = now()
	e := toStepStatusEntity(updated)
	err := r.updateVersioned(ctx, &StepStatusEntity{}, stepStatusColumns(e), status.Version,
		repository.ErrStepStatusNotFound, "StepStatus "+status.StepName,
		"job_instance_id = ? AND step_name = ?", status.JobInstanceID, status.StepName)
	if err != nil {
		return err
	}
	status.Version++
	status.LastUpdated = updated.LastUpdated
	return nil
}

// FindStepStatus returns the StepStatus of stepName within a job instance.
func (r *SQLJobRepository) FindStepStatus(ctx context.Context, jobInstanceID, stepName string) (*model.StepStatus, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e StepStatusEntity
	if err := db.Where("job_instance_id = ? AND step_name = ?", jobInstanceID, stepName).Take(&e).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrStepStatusNotFound, "failed to find StepStatus "+stepName)
	}
	return fromStepStatusEntity(&e), nil
}

// DeleteStepStatus removes a StepStatus. Missing records are not an error.
func (r *SQLJobRepository) DeleteStepStatus(ctx context.Context, jobInstanceID, stepName string) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	err = db.Where("job_instance_id = ? AND step_name = ?", jobInstanceID, stepName).Delete(&StepStatusEntity{}).Error
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to delete StepStatus "+stepName, err, false, true)
	}
	return nil
}
