package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/factory"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// NopSubmitter rejects every sub-job. It satisfies RuntimeContext for tests that run no
// partitions or splits.
type NopSubmitter struct{}

func (NopSubmitter) SubmitSubJob(context.Context, *runtime.SubJob) (*runtime.Future, error) {
	return nil, exception.NewIllegalStateError("test", "sub-jobs are not supported here")
}

func (NopSubmitter) StopSubJob(context.Context, string) error { return nil }

// NewRuntime returns a validated RuntimeContext over a fresh in-memory repository.
func NewRuntime(t *testing.T, artifacts port.ArtifactFactory) *runtime.RuntimeContext {
	t.Helper()
	rt := &runtime.RuntimeContext{
		Repository: inmemory.NewInMemoryJobRepository(),
		Artifacts:  artifacts,
		Submitter:  NopSubmitter{},
	}
	require.NoError(t, rt.Validate())
	return rt
}

// NewJobContext persists a new instance and STARTED execution of job and returns its context.
func NewJobContext(t *testing.T, rt *runtime.RuntimeContext, job *jsl.Job, params model.JobParameters) *runtime.JobContext {
	t.Helper()
	ctx := context.Background()
	inst := model.NewJobInstance(job.ID)
	require.NoError(t, rt.Repository.SaveJobInstance(ctx, inst))
	return RestartJobContext(t, rt, job, inst, params)
}

// RestartJobContext persists a new STARTED execution of inst and returns its context.
func RestartJobContext(t *testing.T, rt *runtime.RuntimeContext, job *jsl.Job, inst *model.JobInstance, params model.JobParameters) *runtime.JobContext {
	t.Helper()
	ctx := context.Background()
	je := model.NewJobExecution(inst, params)
	require.NoError(t, je.MarkStarted())
	require.NoError(t, rt.Repository.SaveJobExecution(ctx, je))
	return runtime.NewJobContext(rt, job, je, "")
}

// NewKernel returns a BatchKernel over a fresh in-memory repository. Sub-jobs submitted
// through k.Runtime() run on the kernel. The kernel is shut down when the test ends.
func NewKernel(t *testing.T, artifacts port.ArtifactFactory) *kernel.BatchKernel {
	t.Helper()
	rt := &runtime.RuntimeContext{
		Repository: inmemory.NewInMemoryJobRepository(),
		Artifacts:  artifacts,
	}
	k, err := kernel.NewBatchKernel(rt, runner.NewJobRunner(factory.NewDefaultStepFactory()), kernel.Options{PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = k.Shutdown(ctx)
	})
	return k
}

// NewExecution persists a JobExecution in STARTING status for inst, creating inst when nil.
func NewExecution(t *testing.T, rt *runtime.RuntimeContext, jobName string, inst *model.JobInstance, params model.JobParameters) *model.JobExecution {
	t.Helper()
	ctx := context.Background()
	if inst == nil {
		inst = model.NewJobInstance(jobName)
		require.NoError(t, rt.Repository.SaveJobInstance(ctx, inst))
	}
	je := model.NewJobExecution(inst, params)
	require.NoError(t, rt.Repository.SaveJobExecution(ctx, je))
	return je
}

// RunJob submits je on k, waits for it to end and returns the persisted execution.
func RunJob(t *testing.T, k *kernel.BatchKernel, job *jsl.Job, je *model.JobExecution, restartAt string) *model.JobExecution {
	t.Helper()
	h, err := k.Submit(context.Background(), job, je, restartAt)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	got, err := k.Runtime().Repository.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	return got
}
