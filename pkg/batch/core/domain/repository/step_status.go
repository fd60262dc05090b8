package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// ErrStepStatusNotFound is returned when no StepStatus exists for an instance and step.
var ErrStepStatusNotFound = errors.New("step status not found")

func init() {
	exception.RegisterErrorType("ErrStepStatusNotFound", ErrStepStatusNotFound)
}

// StepStatus defines operations on the per-instance step status records that survive restarts.
type StepStatus interface {
	// CreateStepStatus persists a new StepStatus.
	CreateStepStatus(ctx context.Context, status *model.StepStatus) error

	// UpdateStepStatus updates an existing StepStatus with optimistic locking.
	UpdateStepStatus(ctx context.Context, status *model.StepStatus) error

	// FindStepStatus returns the StepStatus of stepName within a job instance.
	FindStepStatus(ctx context.Context, jobInstanceID, stepName string) (*model.StepStatus, error)

	// DeleteStepStatus removes a StepStatus. Missing records are not an error.
	DeleteStepStatus(ctx context.Context, jobInstanceID, stepName string) error
}
