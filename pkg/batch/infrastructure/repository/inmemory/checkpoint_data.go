package inmemory

import (
	"context"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
)

// SaveCheckpointData persists checkpoint data, overwriting any existing data for the same key.
func (r *InMemoryJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := model.NewCheckpointData(data.Key, data.Token)
	stored.LastUpdated = time.Now()
	r.checkpointData[data.Key] = stored
	return nil
}

// FindCheckpointData finds checkpoint data stored under key.
func (r *InMemoryJobRepository) FindCheckpointData(ctx context.Context, key model.CheckpointKey) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.checkpointData[key]
	if !ok {
		return nil, repository.ErrCheckpointNotFound
	}
	c := model.NewCheckpointData(data.Key, data.Token)
	c.LastUpdated = data.LastUpdated
	return c, nil
}

// DeleteCheckpointData removes the checkpoint data stored under key.
func (r *InMemoryJobRepository) DeleteCheckpointData(ctx context.Context, key model.CheckpointKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkpointData, key)
	return nil
}
