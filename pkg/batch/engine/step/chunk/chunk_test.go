package chunk_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/chunk"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient failure")
	errBadRecord = errors.New("bad record")
	errFatal     = errors.New("disk on fire")
)

func init() {
	exception.RegisterErrorType("chunk_test.Transient", errTransient)
	exception.RegisterErrorType("chunk_test.BadRecord", errBadRecord)
}

func chunkStep(itemCount int) *jsl.Step {
	return &jsl.Step{
		ID: "load",
		Chunk: &jsl.Chunk{
			Reader:    jsl.ComponentRef{Ref: "reader"},
			Writer:    jsl.ComponentRef{Ref: "writer"},
			ItemCount: itemCount,
		},
	}
}

func run(t *testing.T, jc *runtime.JobContext, def *jsl.Step) (model.ExecutionStatus, *model.StepExecution) {
	t.Helper()
	ctx := context.Background()
	listeners, err := step.BuildListeners(ctx, jc.Runtime().Artifacts, def.Listeners)
	require.NoError(t, err)
	ctrl := chunk.New(jc, def, listeners)
	assert.Equal(t, step.KindChunk, ctrl.Kind())
	st, err := ctrl.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, ctrl.LastRunStepExecutions(), 1)
	return st, ctrl.LastRunStepExecutions()[0]
}

func TestChunkStep_ReadsEverything(t *testing.T) {
	reg := support.NewArtifactRegistry()
	reader := &test.ListReader{Items: test.Ints(1, 25)}
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", reader)
	reg.RegisterValue("writer", writer)
	txf := &test.CountingTxFactory{}
	rec := test.NewMockMetricRecorder()
	rt := test.NewRuntime(t, reg)
	rt.TxFactory = txf
	rt.Recorder = rec

	def := chunkStep(10)
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	st, se := run(t, jc, def)

	assert.Equal(t, model.NormalCompletion, st.Status)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, "COMPLETED", se.ExitStatus)
	assert.Equal(t, test.Ints(1, 25), writer.Written())
	assert.Len(t, writer.Chunks(), 3)
	assert.Equal(t, model.StepMetrics{ReadCount: 25, WriteCount: 25, CommitCount: 3}, se.Metrics)
	require.NoError(t, se.Metrics.Validate())
	assert.EqualValues(t, 5, txf.Commits(), "open, three chunks and close")
	rec.AssertNumberOfCalls(t, "RecordChunkCommit", 3)
	rec.AssertNumberOfCalls(t, "RecordChunkRollback", 0)

	status, err := rt.Repository.FindStepStatus(context.Background(), jc.InstanceID(), "load")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, status.Status)
	assert.Equal(t, se.ID, status.LastRunStepExecutionID)
}

func TestChunkStep_RollbackRetryReplaysOneByOne(t *testing.T) {
	reg := support.NewArtifactRegistry()
	reader := &test.ListReader{Items: test.Ints(1, 30), FailOnce: map[int]error{22: errTransient}}
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", reader)
	reg.RegisterValue("writer", writer)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	def.Chunk.RetryLimit = 3
	def.Chunk.RetryableExceptions.Include = []string{"chunk_test.Transient"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	st, se := run(t, jc, def)

	assert.Equal(t, model.NormalCompletion, st.Status)
	assert.Equal(t, test.Ints(1, 30), writer.Written(), "every item is written exactly once")
	assert.Equal(t, [][]any{
		test.Ints(1, 10), test.Ints(11, 20),
		{21}, {22}, {23},
		test.Ints(24, 30),
	}, writer.Chunks())
	assert.EqualValues(t, 30, se.Metrics.ReadCount)
	assert.EqualValues(t, 30, se.Metrics.WriteCount)
	assert.EqualValues(t, 6, se.Metrics.CommitCount)
	assert.EqualValues(t, 1, se.Metrics.RollbackCount)
	assert.Equal(t, 2, reader.Opens(), "the reader is repositioned after the rollback")
}

func TestChunkStep_RollbackDuringOneByOneReplaysOnlyThatChunk(t *testing.T) {
	reg := support.NewArtifactRegistry()
	var failed atomic.Bool
	writer := &test.RecordingWriter{Fail: func(items []any) error {
		if len(items) == 1 && items[0] == 21 && failed.CompareAndSwap(false, true) {
			return errTransient
		}
		return nil
	}}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 30), FailOnce: map[int]error{22: errTransient}})
	reg.RegisterValue("writer", writer)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	def.Chunk.RetryLimit = 3
	def.Chunk.RetryableExceptions.Include = []string{"chunk_test.Transient"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	_, se := run(t, jc, def)

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, test.Ints(1, 30), writer.Written())
	assert.Equal(t, [][]any{
		test.Ints(1, 10), test.Ints(11, 20),
		{21},
		test.Ints(22, 30),
	}, writer.Chunks(), "the one-by-one replay covers only the chunk that rolled back last")
	assert.EqualValues(t, 2, se.Metrics.RollbackCount)
}

func TestChunkStep_InPlaceRetryKeepsChunk(t *testing.T) {
	reg := support.NewArtifactRegistry()
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 6), FailOnce: map[int]error{3: errTransient}})
	reg.RegisterValue("writer", writer)
	rec := test.NewMockMetricRecorder()
	rt := test.NewRuntime(t, reg)
	rt.Recorder = rec

	def := chunkStep(3)
	def.Chunk.RetryLimit = 1
	def.Chunk.RetryableExceptions.Include = []string{"chunk_test.Transient"}
	def.Chunk.NoRollbackExceptions.Include = []string{"chunk_test.Transient"}
	def.Properties = map[string]string{chunk.RetryIntervalProperty: "1ms"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	_, se := run(t, jc, def)

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, [][]any{test.Ints(1, 3), test.Ints(4, 6)}, writer.Chunks())
	assert.Zero(t, se.Metrics.RollbackCount)
	rec.AssertNumberOfCalls(t, "RecordItemRetry", 1)
}

func TestChunkStep_SkipsAndFilters(t *testing.T) {
	reg := support.NewArtifactRegistry()
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 12)})
	reg.RegisterValue("writer", writer)
	reg.RegisterValue("processor", test.FuncProcessor(func(_ context.Context, item any) (any, error) {
		n := item.(int)
		switch {
		case n == 5:
			return nil, errBadRecord
		case n%4 == 0:
			return nil, nil
		}
		return n * 10, nil
	}))
	rt := test.NewRuntime(t, reg)

	def := chunkStep(5)
	def.Chunk.Processor = &jsl.ComponentRef{Ref: "processor"}
	def.Chunk.SkipLimit = 1
	def.Chunk.SkippableExceptions.Include = []string{"chunk_test.BadRecord"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	_, se := run(t, jc, def)

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, []any{10, 20, 30, 60, 70, 90, 100, 110}, writer.Written())
	assert.EqualValues(t, 12, se.Metrics.ReadCount)
	assert.EqualValues(t, 8, se.Metrics.WriteCount)
	assert.EqualValues(t, 4, se.Metrics.FilterCount)
	assert.EqualValues(t, 1, se.Metrics.ProcessSkipCount)
	require.NoError(t, se.Metrics.Validate())
}

func TestChunkStep_SkipLimitExceededFails(t *testing.T) {
	reg := support.NewArtifactRegistry()
	reg.RegisterValue("reader", &test.ListReader{
		Items:    test.Ints(1, 10),
		FailOnce: map[int]error{2: errBadRecord, 4: errBadRecord},
	})
	reg.RegisterValue("writer", &test.RecordingWriter{})
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	def.Chunk.SkipLimit = 1
	def.Chunk.SkippableExceptions.Include = []string{"chunk_test.BadRecord"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	st, se := run(t, jc, def)

	assert.Equal(t, model.ExceptionThrown, st.Status)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, "FAILED", se.ExitStatus)
	assert.EqualValues(t, 1, se.Metrics.ReadSkipCount)
	assert.EqualValues(t, 1, se.Metrics.RollbackCount)
	assert.Zero(t, se.Metrics.CommitCount)
	assert.NotEmpty(t, se.Failures)
}

func TestChunkStep_RestartResumesFromCheckpoint(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)
	writer := &test.RecordingWriter{Fail: func(items []any) error {
		if broken.Load() && items[0].(int) > 10 {
			return errFatal
		}
		return nil
	}}
	reg := support.NewArtifactRegistry()
	reg.Register("reader", func(context.Context, map[string]string) (any, error) {
		return &test.ListReader{Items: test.Ints(1, 25)}, nil
	})
	reg.RegisterValue("writer", writer)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	job := &jsl.Job{ID: "j", Elements: jsl.Elements{def}}
	jc := test.NewJobContext(t, rt, job, nil)
	_, first := run(t, jc, def)
	require.Equal(t, model.BatchStatusFailed, first.Status)
	assert.Equal(t, test.Ints(1, 10), writer.Written())

	broken.Store(false)
	inst, err := rt.Repository.FindJobInstanceByID(context.Background(), jc.InstanceID())
	require.NoError(t, err)
	_, second := run(t, test.RestartJobContext(t, rt, job, inst, nil), def)

	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, test.Ints(1, 25), writer.Written())
	assert.EqualValues(t, 15, second.Metrics.ReadCount)

	status, err := rt.Repository.FindStepStatus(context.Background(), jc.InstanceID(), "load")
	require.NoError(t, err)
	assert.Equal(t, 2, status.StartCount)
}

func TestChunkStep_StopEndsAfterCurrentChunk(t *testing.T) {
	reg := support.NewArtifactRegistry()
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 40)})
	reg.RegisterValue("writer", writer)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	def.Chunk.Processor = &jsl.ComponentRef{Ref: "processor"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	ctrl := chunk.New(jc, def, nil)
	reg.RegisterValue("processor", test.FuncProcessor(func(ctx context.Context, item any) (any, error) {
		if item.(int) == 12 {
			require.NoError(t, ctrl.Stop(ctx))
		}
		return item, nil
	}))

	st, err := ctrl.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobOperatorStopping, st.Status)
	se := ctrl.LastRunStepExecutions()[0]
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, test.Ints(1, 12), writer.Written(), "the chunk in flight is committed")
	assert.EqualValues(t, 2, se.Metrics.CommitCount)
}

func TestChunkStep_StopFromAnotherGoroutine(t *testing.T) {
	reg := support.NewArtifactRegistry()
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 5000)})
	reg.RegisterValue("writer", writer)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(1)
	def.Chunk.Processor = &jsl.ComponentRef{Ref: "processor"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	ctrl := chunk.New(jc, def, nil)
	running := make(chan struct{})
	reg.RegisterValue("processor", test.FuncProcessor(func(ctx context.Context, item any) (any, error) {
		if item.(int) == 3 {
			close(running)
		}
		return item, nil
	}))

	stopped := make(chan error, 1)
	go func() {
		<-running
		time.Sleep(2 * time.Millisecond)
		stopped <- ctrl.Stop(context.Background())
	}()

	st, err := ctrl.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-stopped)

	se := ctrl.LastRunStepExecutions()[0]
	if st.Status == model.NormalCompletion {
		t.Skip("the step finished before the stop arrived")
	}
	assert.Equal(t, model.JobOperatorStopping, st.Status)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Less(t, len(writer.Written()), 5000)

	stored, err := rt.Repository.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
	assert.Equal(t, se.Version, stored.Version)
	assert.Equal(t, se.Metrics, stored.Metrics)
}

type everyThree struct{ n int }

func (a *everyThree) CheckpointTimeout(context.Context) (int, error) { return 0, nil }
func (a *everyThree) EndCheckpoint(context.Context) error            { return nil }

func (a *everyThree) BeginCheckpoint(context.Context) error {
	a.n = 0
	return nil
}

func (a *everyThree) IsReadyToCheckpoint(context.Context) (bool, error) {
	a.n++
	return a.n == 3, nil
}

func TestChunkStep_CustomCheckpointAlgorithm(t *testing.T) {
	reg := support.NewArtifactRegistry()
	writer := &test.RecordingWriter{}
	reg.RegisterValue("reader", &test.ListReader{Items: test.Ints(1, 7)})
	reg.RegisterValue("writer", writer)
	reg.RegisterValue("everyThree", &everyThree{})
	events := &test.EventRecorder{}
	reg.RegisterValue("events", events)
	rt := test.NewRuntime(t, reg)

	def := chunkStep(100)
	def.Chunk.CheckpointPolicy = jsl.CheckpointPolicyCustom
	def.Chunk.CheckpointAlgorithm = &jsl.ComponentRef{Ref: "everyThree"}
	def.Listeners = []jsl.ComponentRef{{Ref: "events"}}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	_, se := run(t, jc, def)

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, [][]any{test.Ints(1, 3), test.Ints(4, 6), {7}}, writer.Chunks())
	assert.Equal(t, []string{
		"beforeStep",
		"beforeChunk", "afterChunk",
		"beforeChunk", "afterChunk",
		"beforeChunk", "afterChunk",
		"afterStep",
	}, events.Events())
}

type failingEnd struct{ everyThree }

func (a *failingEnd) EndCheckpoint(context.Context) error { return errFatal }

func TestChunkStep_EndCheckpointFailureClosesReader(t *testing.T) {
	reg := support.NewArtifactRegistry()
	reader := &test.ListReader{Items: test.Ints(1, 7)}
	reg.RegisterValue("reader", reader)
	reg.RegisterValue("writer", &test.RecordingWriter{})
	reg.RegisterValue("failingEnd", &failingEnd{})
	rt := test.NewRuntime(t, reg)

	def := chunkStep(100)
	def.Chunk.CheckpointPolicy = jsl.CheckpointPolicyCustom
	def.Chunk.CheckpointAlgorithm = &jsl.ComponentRef{Ref: "failingEnd"}
	jc := test.NewJobContext(t, rt, &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)
	st, se := run(t, jc, def)

	assert.Equal(t, model.ExceptionThrown, st.Status)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 1, reader.Opens())
	assert.Equal(t, 1, reader.Closes())
}

func TestChunkStep_StartLimit(t *testing.T) {
	reg := support.NewArtifactRegistry()
	reg.Register("reader", func(context.Context, map[string]string) (any, error) {
		return &test.ListReader{FailOnce: map[int]error{0: errFatal}}, nil
	})
	reg.RegisterValue("writer", &test.RecordingWriter{})
	rt := test.NewRuntime(t, reg)

	def := chunkStep(10)
	def.StartLimit = 1
	job := &jsl.Job{ID: "j", Elements: jsl.Elements{def}}
	jc := test.NewJobContext(t, rt, job, nil)
	_, se := run(t, jc, def)
	require.Equal(t, model.BatchStatusFailed, se.Status)

	inst, err := rt.Repository.FindJobInstanceByID(context.Background(), jc.InstanceID())
	require.NoError(t, err)
	_, err = chunk.New(test.RestartJobContext(t, rt, job, inst, nil), def, nil).Execute(context.Background())
	assert.True(t, exception.IsConfigurationError(err))
}
