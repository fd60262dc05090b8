// Package inmemory provides an in-memory implementation of the JobRepository interface.
// It stores all job-related data in maps within memory, suitable for testing and
// scenarios where persistence is not required.
package inmemory

import (
	"sync"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
)

type stepStatusKey struct{ instanceID, stepName string }

// InMemoryJobRepository is an in-memory implementation of the JobRepository interface.
// Records are copied on the way in and on the way out, so callers never share state
// with the store.
type InMemoryJobRepository struct {
	mu             sync.RWMutex
	seq            int64
	jobInstances   map[string]seqRecord[*model.JobInstance]
	jobExecutions  map[string]seqRecord[*model.JobExecution]
	stepExecutions map[string]seqRecord[*model.StepExecution]
	stepStatuses   map[stepStatusKey]*model.StepStatus
	checkpointData map[model.CheckpointKey]*model.CheckpointData
}

// seqRecord keeps the insertion order of a record.
type seqRecord[T any] struct {
	seq int64
	v   T
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates and initializes a new instance of InMemoryJobRepository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]seqRecord[*model.JobInstance]),
		jobExecutions:  make(map[string]seqRecord[*model.JobExecution]),
		stepExecutions: make(map[string]seqRecord[*model.StepExecution]),
		stepStatuses:   make(map[stepStatusKey]*model.StepStatus),
		checkpointData: make(map[model.CheckpointKey]*model.CheckpointData),
	}
}

func (r *InMemoryJobRepository) next() int64 {
	r.seq++
	return r.seq
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
