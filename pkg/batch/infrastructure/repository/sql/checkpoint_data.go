package sql

import (
	"context"

	"gorm.io/gorm/clause"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveCheckpointData inserts or replaces the checkpoint stored under data.Key.
func (r *SQLJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	e := toCheckpointDataEntity(data)
	e.LastUpdated = now()
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_instance_id"}, {Name: "step_name"}, {Name: "checkpoint_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "last_updated"}),
	}).Create(e).Error
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to save checkpoint "+data.Key.String(), err, false, true)
	}
	return nil
}

// FindCheckpointData finds the checkpoint stored under key.
func (r *SQLJobRepository) FindCheckpointData(ctx context.Context, key model.CheckpointKey) (*model.CheckpointData, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var e CheckpointDataEntity
	err = db.Where("job_instance_id = ? AND step_name = ? AND checkpoint_type = ?", key.JobInstanceID, key.StepName, string(key.Type)).
		Take(&e).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrCheckpointNotFound, "failed to find checkpoint "+key.String())
	}
	return fromCheckpointDataEntity(&e), nil
}

// DeleteCheckpointData removes the checkpoint stored under key.
func (r *SQLJobRepository) DeleteCheckpointData(ctx context.Context, key model.CheckpointKey) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	err = db.Where("job_instance_id = ? AND step_name = ? AND checkpoint_type = ?", key.JobInstanceID, key.StepName, string(key.Type)).
		Delete(&CheckpointDataEntity{}).Error
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to delete checkpoint "+key.String(), err, false, true)
	}
	return nil
}
