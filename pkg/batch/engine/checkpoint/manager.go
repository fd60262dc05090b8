package checkpoint

import (
	"context"
	"errors"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Manager drives the checkpoint algorithm of one chunk step and persists the reader
// and writer tokens under the step's checkpoint keys.
type Manager struct {
	repo      repository.CheckpointDataRepository
	reader    port.ItemReader
	writer    port.ItemWriter
	algorithm port.CheckpointAlgorithm
	readerKey model.CheckpointKey
	writerKey model.CheckpointKey
}

// NewManager creates a Manager. stepKey is the step id, or the partition step key inside
// a partition.
func NewManager(
	repo repository.CheckpointDataRepository,
	reader port.ItemReader,
	writer port.ItemWriter,
	algorithm port.CheckpointAlgorithm,
	jobInstanceID, stepKey string,
) *Manager {
	return &Manager{
		repo:      repo,
		reader:    reader,
		writer:    writer,
		algorithm: algorithm,
		readerKey: model.CheckpointKey{JobInstanceID: jobInstanceID, StepName: stepKey, Type: model.CheckpointReader},
		writerKey: model.CheckpointKey{JobInstanceID: jobInstanceID, StepName: stepKey, Type: model.CheckpointWriter},
	}
}

// Algorithm returns the checkpoint algorithm.
func (m *Manager) Algorithm() port.CheckpointAlgorithm { return m.algorithm }

// ReaderToken returns the last committed reader token, or nil.
func (m *Manager) ReaderToken(ctx context.Context) ([]byte, error) {
	return m.load(ctx, m.readerKey)
}

// WriterToken returns the last committed writer token, or nil.
func (m *Manager) WriterToken(ctx context.Context) ([]byte, error) {
	return m.load(ctx, m.writerKey)
}

func (m *Manager) load(ctx context.Context, key model.CheckpointKey) ([]byte, error) {
	data, err := m.repo.FindCheckpointData(ctx, key)
	if errors.Is(err, repository.ErrCheckpointNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, exception.NewBatchError("checkpoint", "Failed to load checkpoint "+key.String(), err, false, false)
	}
	logger.Debugf("Loaded checkpoint %s (%d bytes).", key, len(data.Token))
	return data.Token, nil
}

// TransactionTimeout returns the timeout in seconds for the next chunk transaction.
func (m *Manager) TransactionTimeout(ctx context.Context) (int, error) {
	t, err := m.algorithm.CheckpointTimeout(ctx)
	if err != nil {
		return 0, exception.NewBatchError("checkpoint", "CheckpointAlgorithm.CheckpointTimeout failed", err, false, false)
	}
	return t, nil
}

// Begin starts a checkpoint interval.
func (m *Manager) Begin(ctx context.Context) error {
	if err := m.algorithm.BeginCheckpoint(ctx); err != nil {
		return exception.NewBatchError("checkpoint", "CheckpointAlgorithm.BeginCheckpoint failed", err, false, false)
	}
	return nil
}

// IsReady reports whether the current chunk should commit after the item just handled.
func (m *Manager) IsReady(ctx context.Context) (bool, error) {
	ready, err := m.algorithm.IsReadyToCheckpoint(ctx)
	if err != nil {
		return false, exception.NewBatchError("checkpoint", "CheckpointAlgorithm.IsReadyToCheckpoint failed", err, false, false)
	}
	return ready, nil
}

// End closes a checkpoint interval after the commit.
func (m *Manager) End(ctx context.Context) error {
	if err := m.algorithm.EndCheckpoint(ctx); err != nil {
		return exception.NewBatchError("checkpoint", "CheckpointAlgorithm.EndCheckpoint failed", err, false, false)
	}
	return nil
}

// Checkpoint asks the reader and writer for their tokens and stores them. ctx should be
// the chunk transaction's context so the tokens commit with the chunk.
func (m *Manager) Checkpoint(ctx context.Context) error {
	readerToken, err := m.reader.CheckpointInfo(ctx)
	if err != nil {
		return exception.NewBatchError("checkpoint", "ItemReader.CheckpointInfo failed", err, false, false)
	}
	writerToken, err := m.writer.CheckpointInfo(ctx)
	if err != nil {
		return exception.NewBatchError("checkpoint", "ItemWriter.CheckpointInfo failed", err, false, false)
	}
	if err := m.repo.SaveCheckpointData(ctx, model.NewCheckpointData(m.readerKey, readerToken)); err != nil {
		return exception.NewBatchError("checkpoint", "Failed to save reader checkpoint", err, false, false)
	}
	if err := m.repo.SaveCheckpointData(ctx, model.NewCheckpointData(m.writerKey, writerToken)); err != nil {
		return exception.NewBatchError("checkpoint", "Failed to save writer checkpoint", err, false, false)
	}
	logger.Debugf("Checkpoint saved for %s/%s.", m.readerKey.JobInstanceID, m.readerKey.StepName)
	return nil
}

// Delete removes both tokens of a step key, used when partitions are discarded.
func Delete(ctx context.Context, repo repository.CheckpointDataRepository, jobInstanceID, stepKey string) error {
	var errs []error
	for _, t := range []model.CheckpointType{model.CheckpointReader, model.CheckpointWriter} {
		key := model.CheckpointKey{JobInstanceID: jobInstanceID, StepName: stepKey, Type: t}
		if err := repo.DeleteCheckpointData(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
