package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveJobExecution persists a new JobExecution.
// It returns an error if a JobExecution with the same ID already exists.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return exception.NewIllegalStateError("inmemory_repository", "JobExecution with ID %s already exists", jobExecution.ID)
	}
	jobExecution.LastUpdated = time.Now()
	r.jobExecutions[jobExecution.ID] = seqRecord[*model.JobExecution]{seq: r.next(), v: jobExecution.Clone()}
	return nil
}

// UpdateJobExecution updates an existing JobExecution with optimistic locking.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.jobExecutions[jobExecution.ID]
	if !exists {
		return repository.ErrJobExecutionNotFound
	}
	if rec.v.Version != jobExecution.Version {
		return exception.NewOptimisticLockingFailure("inmemory_repository",
			"JobExecution "+jobExecution.ID+" was updated concurrently")
	}
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	rec.v = jobExecution.Clone()
	r.jobExecutions[jobExecution.ID] = rec
	return nil
}

// FindJobExecutionByID finds a JobExecution by its ID.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return rec.v.Clone(), nil
}

// FindJobExecutionsByJobInstance returns all executions of an instance, newest first.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executionsOf(jobInstanceID), nil
}

// FindLatestJobExecution returns the most recent execution of an instance.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execs := r.executionsOf(jobInstanceID)
	if len(execs) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}
	return execs[0], nil
}

func (r *InMemoryJobRepository) executionsOf(jobInstanceID string) []*model.JobExecution {
	var recs []seqRecord[*model.JobExecution]
	for _, rec := range r.jobExecutions {
		if rec.v.JobInstanceID == jobInstanceID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]*model.JobExecution, len(recs))
	for i, rec := range recs {
		out[i] = rec.v.Clone()
	}
	return out
}
