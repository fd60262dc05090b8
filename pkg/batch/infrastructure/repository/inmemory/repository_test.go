package inmemory_test

import (
	"context"
	"testing"

	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobExecutionOptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	inst := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	je := model.NewJobExecution(inst, model.JobParameters{"date": "2024-05-01"})
	require.NoError(t, repo.SaveJobExecution(ctx, je))

	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)

	require.NoError(t, je.MarkStarted())
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	stale.ExitStatus = "LOST"
	err = repo.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	got, err := repo.FindLatestJobExecution(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarted, got.Status)

	_, err = repo.FindJobExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestExecutionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	inst := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, inst))

	first := model.NewJobExecution(inst, nil)
	second := model.NewJobExecution(inst, nil)
	require.NoError(t, repo.SaveJobExecution(ctx, first))
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	execs, err := repo.FindJobExecutionsByJobInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, second.ID, execs[0].ID)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"payroll"}, names)
}

func TestAggregatePartitionMetrics(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	parent := model.NewStepExecution("je", "ji", "load", model.TopLevelPartition)
	require.NoError(t, repo.SaveStepExecution(ctx, parent))
	for i := 0; i < 3; i++ {
		p := model.NewStepExecution("je", "ji", "load", i)
		p.ParentStepExecutionID = parent.ID
		p.Metrics = model.StepMetrics{ReadCount: 10, WriteCount: 9, FilterCount: 1, CommitCount: 1}
		require.NoError(t, repo.SaveStepExecution(ctx, p))
	}

	require.NoError(t, repo.UpdateStepExecutionWithAggregate(ctx, parent))
	got, err := repo.FindStepExecutionByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StepMetrics{ReadCount: 30, WriteCount: 27, FilterCount: 3, CommitCount: 3}, got.Metrics)

	top, err := repo.FindStepExecutionsByJobExecution(ctx, "je")
	require.NoError(t, err)
	assert.Len(t, top, 1, "partitions are not top-level step executions")

	parts, err := repo.FindPartitionStepExecutions(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, 0, parts[0].PartitionIndex)
}

func TestStepStatusAndCheckpoints(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	ss := model.NewStepStatus("ji", "load")
	require.NoError(t, repo.CreateStepStatus(ctx, ss))
	ss.StartCount++
	require.NoError(t, repo.UpdateStepStatus(ctx, ss))

	got, err := repo.FindStepStatus(ctx, "ji", "load")
	require.NoError(t, err)
	assert.Equal(t, 1, got.StartCount)

	require.NoError(t, repo.DeleteStepStatus(ctx, "ji", "load"))
	_, err = repo.FindStepStatus(ctx, "ji", "load")
	assert.ErrorIs(t, err, repository.ErrStepStatusNotFound)

	key := model.CheckpointKey{JobInstanceID: "ji", StepName: "load", Type: model.CheckpointReader}
	token := []byte("20")
	require.NoError(t, repo.SaveCheckpointData(ctx, model.NewCheckpointData(key, token)))
	token[0] = '9'
	cp, err := repo.FindCheckpointData(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("20"), cp.Token)

	require.NoError(t, repo.DeleteCheckpointData(ctx, key))
	_, err = repo.FindCheckpointData(ctx, key)
	assert.ErrorIs(t, err, repository.ErrCheckpointNotFound)
}
