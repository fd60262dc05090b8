package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SaveJobInstance persists a new JobInstance.
// It returns an error if a JobInstance with the same ID already exists.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[jobInstance.ID]; exists {
		return exception.NewIllegalStateError("inmemory_repository", "JobInstance with ID %s already exists", jobInstance.ID)
	}
	c := *jobInstance
	r.jobInstances[jobInstance.ID] = seqRecord[*model.JobInstance]{seq: r.next(), v: &c}
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	c := *rec.v
	return &c, nil
}

// FindJobInstancesByJobName returns the instances of jobName, newest first.
func (r *InMemoryJobRepository) FindJobInstancesByJobName(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recs []seqRecord[*model.JobInstance]
	for _, rec := range r.jobInstances {
		if rec.v.JobName == jobName {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]*model.JobInstance, len(recs))
	for i, rec := range recs {
		c := *rec.v
		out[i] = &c
	}
	return out, nil
}

// GetJobNames returns a list of all distinct job names, sorted.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uniqueNames := make(map[string]struct{})
	for _, rec := range r.jobInstances {
		uniqueNames[rec.v.JobName] = struct{}{}
	}
	names := make([]string, 0, len(uniqueNames))
	for name := range uniqueNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
