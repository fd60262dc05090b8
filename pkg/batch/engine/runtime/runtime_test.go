package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stopCounter struct{ stops int }

func (s *stopCounter) Stop(context.Context) error {
	s.stops++
	return nil
}

func TestStoppableSlot(t *testing.T) {
	var slot runtime.StoppableSlot
	require.NoError(t, slot.Stop(context.Background()), "an empty slot ignores stop")

	s := &stopCounter{}
	slot.Set(s)
	require.NoError(t, slot.Stop(context.Background()))
	assert.Equal(t, 1, s.stops)

	slot.Clear()
	require.NoError(t, slot.Stop(context.Background()))
	assert.Equal(t, 1, s.stops)
}

func newJobContext(t *testing.T) *runtime.JobContext {
	t.Helper()
	job := &jsl.Job{ID: "payroll"}
	je := model.NewJobExecution(model.NewJobInstance("payroll"), model.JobParameters{"date": "2024-05-01"})
	return runtime.NewJobContext(&runtime.RuntimeContext{}, job, je, "")
}

func TestJobContextRequestStop(t *testing.T) {
	jc := newJobContext(t)
	s := &stopCounter{}
	jc.Slot().Set(s)

	jc.SetBatchStatus(model.BatchStatusStarted)
	require.NoError(t, jc.RequestStop(context.Background()))
	assert.Equal(t, model.BatchStatusStopping, jc.BatchStatus())
	assert.True(t, jc.IsStopping())
	assert.Equal(t, 1, s.stops)

	jc.SetBatchStatus(model.BatchStatusCompleted)
	require.NoError(t, jc.RequestStop(context.Background()))
	assert.Equal(t, model.BatchStatusCompleted, jc.BatchStatus(), "a finished job is left alone")
	assert.Equal(t, 1, s.stops)
}

func TestSubJobContext(t *testing.T) {
	parent := newJobContext(t)
	sj := &runtime.SubJob{
		ID:             "p-1",
		Kind:           runtime.SubJobPartition,
		Parent:         parent,
		Job:            &jsl.Job{ID: "payroll"},
		PartitionIndex: 1,
	}
	jc := runtime.NewSubJobContext(sj)

	assert.True(t, jc.IsSubJob())
	assert.True(t, jc.IsPartition())
	assert.Equal(t, "", jc.ExecutionID())
	assert.Equal(t, parent.ExecutionID(), jc.RootExecutionID())
	assert.Equal(t, parent.InstanceID(), jc.InstanceID())
	assert.Equal(t, "load:1", jc.StepKey("load"))
	assert.Equal(t, "load", parent.StepKey("load"))
	assert.Equal(t, model.TopLevelPartition, parent.PartitionIndex())
}

func TestStepContext(t *testing.T) {
	jc := newJobContext(t)
	step := &jsl.Step{ID: "load"}
	se := model.NewStepExecution(jc.ExecutionID(), jc.InstanceID(), "load", model.TopLevelPartition)
	sc := runtime.NewStepContext(jc, step, se, model.NewStepStatus(jc.InstanceID(), "load"))

	require.NoError(t, sc.TransitionTo(model.BatchStatusStarted))
	sc.AddMetrics(model.StepMetrics{ReadCount: 3, WriteCount: 2, FilterCount: 1})
	assert.Equal(t, int64(3), sc.Metrics().ReadCount)

	sc.SetPersistentUserData([]byte("cursor"))
	assert.Equal(t, []byte("cursor"), sc.StepStatus().PersistentUserData)

	assert.True(t, sc.RequestStop())
	assert.True(t, sc.IsStopping())

	boom := errors.New("boom")
	sc.Fail(boom)
	assert.Equal(t, model.BatchStatusFailed, sc.BatchStatus())
	assert.Equal(t, boom, sc.Exception())
	assert.False(t, sc.RequestStop())

	snap := sc.Snapshot()
	snap.ExitStatus = "changed"
	assert.NotEqual(t, "changed", sc.ExitStatus())
}

func TestStepContext_PersistStoresSnapshot(t *testing.T) {
	jc := newJobContext(t)
	se := model.NewStepExecution(jc.ExecutionID(), jc.InstanceID(), "load", model.TopLevelPartition)
	sc := runtime.NewStepContext(jc, &jsl.Step{ID: "load"}, se, model.NewStepStatus(jc.InstanceID(), "load"))
	require.NoError(t, sc.TransitionTo(model.BatchStatusStarted))

	var stored *model.StepExecution
	err := sc.Persist(context.Background(), func(_ context.Context, s *model.StepExecution) error {
		assert.True(t, sc.RequestStop(), "the store runs without holding the context lock")
		s.Version++
		s.Metrics.CommitCount = 7
		stored = s
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, model.BatchStatusStarted, stored.Status)
	assert.Equal(t, model.BatchStatusStopping, sc.BatchStatus(), "a stop requested while storing is kept")
	assert.Equal(t, stored.Version, sc.Snapshot().Version)
	assert.EqualValues(t, 7, sc.Metrics().CommitCount)

	failed := errors.New("store failed")
	assert.ErrorIs(t, sc.Persist(context.Background(), func(context.Context, *model.StepExecution) error { return failed }), failed)
	assert.Equal(t, stored.Version, sc.Snapshot().Version)
}

func TestFanInOrdersRepliesBeforeDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fan := runtime.NewFanIn(4)
	defer fan.Close()

	fut := runtime.NewFuture("p-0")
	fan.Track(fut, 0)
	go func() {
		_ = fan.Send(ctx, runtime.Reply{Kind: runtime.ReplyData, Data: "rows=10"})
		_ = fan.Send(ctx, runtime.Reply{Kind: runtime.ReplyStatus, BatchStatus: model.BatchStatusCompleted})
		fut.Complete(runtime.SubJobResult{BatchStatus: model.BatchStatusCompleted})
	}()

	var kinds []runtime.ReplyKind
	for fan.Pending() > 0 {
		r, err := fan.Next(ctx)
		require.NoError(t, err)
		kinds = append(kinds, r.Kind)
		if r.Kind == runtime.ReplyDone {
			assert.Equal(t, "p-0", r.Result.SubJobID)
			assert.Equal(t, model.BatchStatusCompleted, r.Result.BatchStatus)
		}
	}
	assert.Equal(t, []runtime.ReplyKind{runtime.ReplyData, runtime.ReplyStatus, runtime.ReplyDone}, kinds)
}

func TestFanInCloseReleasesSenders(t *testing.T) {
	fan := runtime.NewFanIn(0)
	fan.Close()
	err := fan.Send(context.Background(), runtime.Reply{Kind: runtime.ReplyData})
	assert.ErrorIs(t, err, runtime.ErrFanInClosed)
}

func TestFutureCompleteOnce(t *testing.T) {
	fut := runtime.NewFuture("f")
	fut.Complete(runtime.SubJobResult{ExitStatus: "first"})
	fut.Complete(runtime.SubJobResult{ExitStatus: "second"})
	r, err := fut.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", r.ExitStatus)
	assert.Equal(t, "f", r.SubJobID)
}
