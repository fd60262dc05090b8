package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveStepExecution persists a new StepExecution.
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return exception.NewIllegalStateError("inmemory_repository", "StepExecution with ID %s already exists", stepExecution.ID)
	}
	stepExecution.LastUpdated = time.Now()
	r.stepExecutions[stepExecution.ID] = seqRecord[*model.StepExecution]{seq: r.next(), v: stepExecution.Clone()}
	return nil
}

// UpdateStepExecution updates an existing StepExecution with optimistic locking.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateStepExecution(stepExecution)
}

func (r *InMemoryJobRepository) updateStepExecution(stepExecution *model.StepExecution) error {
	rec, exists := r.stepExecutions[stepExecution.ID]
	if !exists {
		return repository.ErrStepExecutionNotFound
	}
	if rec.v.Version != stepExecution.Version {
		return exception.NewOptimisticLockingFailure("inmemory_repository",
			"StepExecution "+stepExecution.ID+" was updated concurrently")
	}
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	rec.v = stepExecution.Clone()
	r.stepExecutions[stepExecution.ID] = rec
	return nil
}

// UpdateStepExecutionWithAggregate replaces the metrics of stepExecution with the sum of
// its partitions' metrics and stores it.
func (r *InMemoryJobRepository) UpdateStepExecutionWithAggregate(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum model.StepMetrics
	for _, rec := range r.stepExecutions {
		if rec.v.ParentStepExecutionID == stepExecution.ID {
			sum = sum.Add(rec.v.Metrics)
		}
	}
	stepExecution.Metrics = sum
	return r.updateStepExecution(stepExecution)
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return rec.v.Clone(), nil
}

// FindStepExecutionsByJobExecution returns the top-level step executions of a job execution in start order.
func (r *InMemoryJobRepository) FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stepExecutionsWhere(func(se *model.StepExecution) bool {
		return se.JobExecutionID == jobExecutionID && !se.IsPartition()
	}), nil
}

// FindPartitionStepExecutions returns the partition step executions of a parent step execution.
func (r *InMemoryJobRepository) FindPartitionStepExecutions(ctx context.Context, parentStepExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stepExecutionsWhere(func(se *model.StepExecution) bool {
		return se.ParentStepExecutionID == parentStepExecutionID
	}), nil
}

func (r *InMemoryJobRepository) stepExecutionsWhere(match func(*model.StepExecution) bool) []*model.StepExecution {
	var recs []seqRecord[*model.StepExecution]
	for _, rec := range r.stepExecutions {
		if match(rec.v) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*model.StepExecution, len(recs))
	for i, rec := range recs {
		out[i] = rec.v.Clone()
	}
	return out
}
