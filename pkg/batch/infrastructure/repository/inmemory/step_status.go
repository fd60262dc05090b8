package inmemory

import (
	"context"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// CreateStepStatus persists a new StepStatus.
func (r *InMemoryJobRepository) CreateStepStatus(ctx context.Context, status *model.StepStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stepStatusKey{status.JobInstanceID, status.StepName}
	if _, exists := r.stepStatuses[key]; exists {
		return exception.NewIllegalStateError("inmemory_repository",
			"StepStatus for step '%s' of instance %s already exists", status.StepName, status.JobInstanceID)
	}
	status.LastUpdated = time.Now()
	r.stepStatuses[key] = status.Clone()
	return nil
}

// UpdateStepStatus updates an existing StepStatus with optimistic locking.
func (r *InMemoryJobRepository) UpdateStepStatus(ctx context.Context, status *model.StepStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stepStatusKey{status.JobInstanceID, status.StepName}
	stored, exists := r.stepStatuses[key]
	if !exists {
		return repository.ErrStepStatusNotFound
	}
	if stored.Version != status.Version {
		return exception.NewOptimisticLockingFailure("inmemory_repository",
			"StepStatus "+status.StepName+" was updated concurrently")
	}
	status.Version++
	status.LastUpdated = time.Now()
	r.stepStatuses[key] = status.Clone()
	return nil
}

// FindStepStatus returns the StepStatus of stepName within a job instance.
func (r *InMemoryJobRepository) FindStepStatus(ctx context.Context, jobInstanceID, stepName string) (*model.StepStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.stepStatuses[stepStatusKey{jobInstanceID, stepName}]
	if !ok {
		return nil, repository.ErrStepStatusNotFound
	}
	return status.Clone(), nil
}

// DeleteStepStatus removes a StepStatus. Missing records are not an error.
func (r *InMemoryJobRepository) DeleteStepStatus(ctx context.Context, jobInstanceID, stepName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stepStatuses, stepStatusKey{jobInstanceID, stepName})
	return nil
}
