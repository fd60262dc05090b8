package kernel_test

import (
	"context"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/factory"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockingJob(t *testing.T) (*kernel.BatchKernel, *jsl.Job, *test.BlockingBatchlet) {
	blocking := test.NewBlockingBatchlet()
	reg := support.NewArtifactRegistry()
	reg.RegisterValue("wait", blocking)
	k := test.NewKernel(t, reg)
	job := &jsl.Job{ID: "wait", Elements: jsl.Elements{&jsl.Step{ID: "wait", Batchlet: &jsl.ComponentRef{Ref: "wait"}}}}
	return k, job, blocking
}

func TestNewBatchKernel_InstallsSubmitter(t *testing.T) {
	rt := &runtime.RuntimeContext{
		Repository: inmemory.NewInMemoryJobRepository(),
		Artifacts:  support.NewArtifactRegistry(),
	}
	k, err := kernel.NewBatchKernel(rt, runner.NewJobRunner(factory.NewDefaultStepFactory()), kernel.Options{})
	require.NoError(t, err)
	assert.Same(t, k, rt.Submitter)
	require.NoError(t, k.Shutdown(context.Background()))

	_, err = kernel.NewBatchKernel(&runtime.RuntimeContext{}, runner.NewJobRunner(factory.NewDefaultStepFactory()), kernel.Options{})
	assert.True(t, exception.IsConfigurationError(err))
}

func TestBatchKernel_RegistryRules(t *testing.T) {
	k, job, blocking := blockingJob(t)
	ctx := context.Background()

	je := test.NewExecution(t, k.Runtime(), job.ID, nil, nil)
	h, err := k.Submit(ctx, job, je, "")
	require.NoError(t, err)
	<-blocking.Started

	status, ok := k.LiveStatus(je.ID)
	assert.True(t, ok)
	assert.Equal(t, model.BatchStatusStarted, status)
	assert.Equal(t, []string{je.ID}, k.RunningExecutions())

	_, err = k.Submit(ctx, job, je, "")
	assert.ErrorIs(t, err, kernel.ErrExecutionAlreadyRegistered)

	inst, err := k.Runtime().Repository.FindJobInstanceByID(ctx, je.JobInstanceID)
	require.NoError(t, err)
	_, err = k.Submit(ctx, job, test.NewExecution(t, k.Runtime(), job.ID, inst, nil), "")
	assert.ErrorIs(t, err, kernel.ErrInstanceAlreadyRunning)
	assert.True(t, exception.IsErrorOfType(err, "ErrInstanceAlreadyRunning"))

	assert.ErrorIs(t, k.Stop(ctx, "unknown"), kernel.ErrJobNotRunning)
	require.NoError(t, k.Stop(ctx, je.ID))

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(wctx))
	_, ok = k.LiveStatus(je.ID)
	assert.False(t, ok)
	assert.Empty(t, k.RunningExecutions())
	assert.ErrorIs(t, k.Stop(ctx, je.ID), kernel.ErrJobNotRunning)
}

func TestBatchKernel_ShutdownStopsRunningJobs(t *testing.T) {
	k, job, blocking := blockingJob(t)
	ctx := context.Background()

	je := test.NewExecution(t, k.Runtime(), job.ID, nil, nil)
	h, err := k.Submit(ctx, job, je, "")
	require.NoError(t, err)
	<-blocking.Started

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, k.Shutdown(sctx))
	<-h.Done()

	got, err := k.Runtime().Repository.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, got.Status)

	_, err = k.Submit(ctx, job, test.NewExecution(t, k.Runtime(), job.ID, nil, nil), "")
	assert.ErrorIs(t, err, kernel.ErrKernelShutdown)
}

func TestBatchKernel_StopSubJob(t *testing.T) {
	k, job, blocking := blockingJob(t)
	ctx := context.Background()
	assert.ErrorIs(t, k.StopSubJob(ctx, "missing"), runtime.ErrJobNotRunning)

	parent := test.NewJobContext(t, k.Runtime(), job, nil)
	fut, err := k.SubmitSubJob(ctx, &runtime.SubJob{
		ID:             "sub-1",
		Kind:           runtime.SubJobSplitFlow,
		Parent:         parent,
		Job:            job,
		PartitionIndex: model.TopLevelPartition,
	})
	require.NoError(t, err)
	<-blocking.Started

	_, err = k.SubmitSubJob(ctx, &runtime.SubJob{ID: "sub-1", Parent: parent, Job: job})
	assert.ErrorIs(t, err, kernel.ErrExecutionAlreadyRegistered)

	require.NoError(t, k.StopSubJob(ctx, "sub-1"))
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := fut.Result(rctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", res.SubJobID)
	assert.Equal(t, model.BatchStatusStopped, res.BatchStatus)
	assert.Equal(t, model.JobOperatorStopping, res.ExecutionStatus.Status)
}
