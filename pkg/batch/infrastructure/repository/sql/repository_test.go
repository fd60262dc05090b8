package sql_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	sqlrepo "github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// newSQLiteRepository migrates a fresh sqlite file and returns a repository over it.
func newSQLiteRepository(t *testing.T) (*sqlrepo.SQLJobRepository, database.DBConnectionResolver) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.JBatch.Database["metadata"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "metadata.db"),
		"pool":     map[string]interface{}{"max_open_conns": "1"},
	}
	provider := sqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		Providers: []database.DBProvider{provider},
		Cfg:       cfg,
	})
	require.NoError(t, sqlrepo.Migrate(context.Background(), resolver, "metadata"))
	require.NoError(t, sqlrepo.Migrate(context.Background(), resolver, "metadata"), "migrating twice is a no-op")
	return sqlrepo.NewSQLJobRepository(resolver, "metadata"), resolver
}

func TestSQLJobRepository_JobExecutions(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepository(t)

	inst := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	first := model.NewJobExecution(inst, model.JobParameters{"date": "2026-10-18"})
	require.NoError(t, repo.SaveJobExecution(ctx, first))
	second := model.NewJobExecution(inst, nil)
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	stale, err := repo.FindJobExecutionByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobParameters{"date": "2026-10-18"}, stale.Parameters)
	assert.Nil(t, stale.StartTime)

	require.NoError(t, first.MarkStarted())
	first.AddFailure(assert.AnError)
	first.RestartOn = "load"
	require.NoError(t, repo.UpdateJobExecution(ctx, first))
	assert.Equal(t, 1, first.Version)

	stale.ExitStatus = "LOST"
	assert.True(t, exception.IsOptimisticLockingFailure(repo.UpdateJobExecution(ctx, stale)))

	got, err := repo.FindJobExecutionByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarted, got.Status)
	assert.Equal(t, "load", got.RestartOn)
	assert.Len(t, got.Failures, 1)
	require.NotNil(t, got.StartTime)
	assert.Equal(t, 1, got.Version)

	execs, err := repo.FindJobExecutionsByJobInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, second.ID, execs[0].ID, "newest first")
	latest, err := repo.FindLatestJobExecution(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.FindJobExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	_, err = repo.FindLatestJobExecution(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	missing := model.NewJobExecution(inst, nil)
	assert.ErrorIs(t, repo.UpdateJobExecution(ctx, missing), repository.ErrJobExecutionNotFound)
}

func TestSQLJobRepository_JobInstances(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepository(t)

	older := model.NewJobInstance("payroll")
	newer := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, older))
	require.NoError(t, repo.SaveJobInstance(ctx, newer))
	require.NoError(t, repo.SaveJobInstance(ctx, model.NewJobInstance("archive")))
	assert.Error(t, repo.SaveJobInstance(ctx, older), "ids are unique")

	instances, err := repo.FindJobInstancesByJobName(ctx, "payroll")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, newer.ID, instances[0].ID)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "payroll"}, names)

	_, err = repo.FindJobInstanceByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
}

func TestSQLJobRepository_StepExecutions(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepository(t)
	inst := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, inst))
	je := model.NewJobExecution(inst, nil)
	require.NoError(t, repo.SaveJobExecution(ctx, je))

	parent := model.NewStepExecution(je.ID, inst.ID, "load", model.TopLevelPartition)
	require.NoError(t, repo.SaveStepExecution(ctx, parent))
	for i := 0; i < 3; i++ {
		p := model.NewStepExecution(je.ID, inst.ID, "load", i)
		p.ParentStepExecutionID = parent.ID
		p.Metrics = model.StepMetrics{ReadCount: 10, WriteCount: 9, FilterCount: 1, CommitCount: 1}
		p.PersistentUserData = []byte{byte(i)}
		require.NoError(t, repo.SaveStepExecution(ctx, p))
	}

	require.NoError(t, repo.UpdateStepExecutionWithAggregate(ctx, parent))
	got, err := repo.FindStepExecutionByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StepMetrics{ReadCount: 30, WriteCount: 27, FilterCount: 3, CommitCount: 3}, got.Metrics)
	assert.Equal(t, 1, got.Version)

	top, err := repo.FindStepExecutionsByJobExecution(ctx, je.ID)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, parent.ID, top[0].ID)

	parts, err := repo.FindPartitionStepExecutions(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, 0, parts[0].PartitionIndex)
	assert.Equal(t, []byte{2}, parts[2].PersistentUserData)

	_, err = repo.FindStepExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)
}

func TestSQLJobRepository_StepStatusAndCheckpoints(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepository(t)

	ss := model.NewStepStatus("ji", "load")
	require.NoError(t, repo.CreateStepStatus(ctx, ss))
	assert.Error(t, repo.CreateStepStatus(ctx, model.NewStepStatus("ji", "load")))
	stale := ss.Clone()
	ss.StartCount++
	ss.NumPartitions = 4
	require.NoError(t, repo.UpdateStepStatus(ctx, ss))
	assert.True(t, exception.IsOptimisticLockingFailure(repo.UpdateStepStatus(ctx, stale)))

	got, err := repo.FindStepStatus(ctx, "ji", "load")
	require.NoError(t, err)
	assert.Equal(t, 1, got.StartCount)
	assert.Equal(t, 4, got.NumPartitions)

	require.NoError(t, repo.DeleteStepStatus(ctx, "ji", "load"))
	require.NoError(t, repo.DeleteStepStatus(ctx, "ji", "load"))
	_, err = repo.FindStepStatus(ctx, "ji", "load")
	assert.ErrorIs(t, err, repository.ErrStepStatusNotFound)

	key := model.CheckpointKey{JobInstanceID: "ji", StepName: "load", Type: model.CheckpointReader}
	require.NoError(t, repo.SaveCheckpointData(ctx, model.NewCheckpointData(key, []byte("10"))))
	require.NoError(t, repo.SaveCheckpointData(ctx, model.NewCheckpointData(key, []byte("20"))))
	cp, err := repo.FindCheckpointData(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("20"), cp.Token)
	assert.Equal(t, key, cp.Key)

	writerKey := key
	writerKey.Type = model.CheckpointWriter
	_, err = repo.FindCheckpointData(ctx, writerKey)
	assert.ErrorIs(t, err, repository.ErrCheckpointNotFound)

	require.NoError(t, repo.DeleteCheckpointData(ctx, key))
	_, err = repo.FindCheckpointData(ctx, key)
	assert.ErrorIs(t, err, repository.ErrCheckpointNotFound)
}

func TestSQLJobRepository_JoinsTransaction(t *testing.T) {
	ctx := context.Background()
	repo, resolver := newSQLiteRepository(t)
	m := gormadapter.NewGormTransactionManager(resolver, repo.DBName())

	inst := model.NewJobInstance("payroll")
	require.NoError(t, repo.SaveJobInstance(ctx, inst))

	open, err := m.Begin(ctx)
	require.NoError(t, err)
	key := model.CheckpointKey{JobInstanceID: inst.ID, StepName: "load", Type: model.CheckpointWriter}
	require.NoError(t, repo.SaveCheckpointData(open.Context(), model.NewCheckpointData(key, []byte("5"))))
	require.NoError(t, m.Rollback(open))

	_, err = repo.FindCheckpointData(ctx, key)
	assert.ErrorIs(t, err, repository.ErrCheckpointNotFound, "the checkpoint rolled back with the chunk")
}
