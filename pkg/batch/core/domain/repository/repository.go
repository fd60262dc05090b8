package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// CheckpointDataRepository persists reader and writer restart tokens.
type CheckpointDataRepository interface {
	// SaveCheckpointData inserts or replaces the token stored under data.Key.
	SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error

	// FindCheckpointData returns the token stored under key.
	FindCheckpointData(ctx context.Context, key model.CheckpointKey) (*model.CheckpointData, error)

	// DeleteCheckpointData removes the token stored under key. Missing records are not an error.
	DeleteCheckpointData(ctx context.Context, key model.CheckpointKey) error
}

// ErrCheckpointNotFound is returned when checkpoint data is not found.
var ErrCheckpointNotFound = errors.New("checkpoint data not found")

func init() {
	exception.RegisterErrorType("ErrCheckpointNotFound", ErrCheckpointNotFound)
}

// JobRepository is the persistence contract of the batch engine.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	StepStatus
	CheckpointDataRepository

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
