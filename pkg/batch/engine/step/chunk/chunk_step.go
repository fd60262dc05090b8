// Package chunk runs the read, process and write loop of a chunk step with
// checkpointing, skip, retry and rollback.
package chunk

import (
	"context"
	"fmt"
	"time"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
	"github.com/tigerroll/jbatch/pkg/batch/engine/checkpoint"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/skip"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// RetryIntervalProperty is the step property holding the wait before an in-place retry,
// as a Go duration string.
const RetryIntervalProperty = "retry-interval"

// ChunkStep is the CoreStep of a chunk step.
type ChunkStep struct {
	jc        *runtime.JobContext
	def       *jsl.Step
	chunk     *jsl.Chunk
	listeners *step.Listeners

	reader      port.ItemReader
	processor   port.ItemProcessor
	writer      port.ItemWriter
	checkpoints *checkpoint.Manager
	skips       *skip.SkipHandler
	retries     *retry.RetryHandler
	collector   *step.PartitionCollector
	// opened is set while the reader and writer are open.
	opened bool
}

var _ step.CoreStep = (*ChunkStep)(nil)

// New creates the controller of a chunk step.
func New(jc *runtime.JobContext, def *jsl.Step, listeners *step.Listeners) *step.Lifecycle {
	if listeners == nil {
		listeners = &step.Listeners{}
	}
	return step.NewLifecycle(jc, def, &ChunkStep{jc: jc, def: def, chunk: def.Chunk, listeners: listeners}, listeners)
}

func (c *ChunkStep) Kind() step.Kind { return step.KindChunk }

func (c *ChunkStep) InvokePreArtifacts(context.Context, *runtime.StepContext) error { return nil }

func (c *ChunkStep) InvokePostArtifacts(context.Context, *runtime.StepContext) error { return nil }

func (c *ChunkStep) PersistStepExecution(ctx context.Context, sc *runtime.StepContext) error {
	return step.PersistStepExecution(ctx, sc)
}

// Stop needs no action: the chunk loop polls the step status between items.
func (c *ChunkStep) Stop(context.Context) error { return nil }

// chunkStatus is the state of one chunk iteration.
type chunkStatus struct {
	// oneByOne is set while replaying a rolled back chunk one item at a time.
	oneByOne bool
	finished bool
	// touched counts read attempts that produced an item, hit the end of input, or
	// failed into a rollback. Skipped reads are not counted.
	touched       int
	rollbackRetry bool
	cause         error
}

func (cs *chunkStatus) markRollback(cause error) {
	cs.rollbackRetry = true
	cs.cause = cause
}

// InvokeCore runs chunks until the reader is exhausted or the step is stopping.
func (c *ChunkStep) InvokeCore(ctx context.Context, sc *runtime.StepContext) (string, error) {
	if err := c.build(ctx, sc); err != nil {
		return "", err
	}
	if sc.RestartAfterCompletion() {
		if err := checkpoint.Delete(ctx, c.jc.Runtime().Repository, c.jc.InstanceID(), c.jc.StepKey(c.def.ID)); err != nil {
			return "", exception.NewBatchError(c.def.ID, "Failed to discard checkpoints of the completed run", err, false, false)
		}
	}
	if err := c.open(ctx, sc); err != nil {
		return "", err
	}
	defer c.closeQuietly(ctx)

	remainingOneByOne := 0
	for {
		if sc.IsStopping() {
			sc.RequestStop()
			logger.Infof("ChunkStep '%s': stop requested; ending after the last committed chunk.", c.def.ID)
			return "", c.close(ctx, sc)
		}

		cs := &chunkStatus{}
		if remainingOneByOne > 0 {
			cs.oneByOne = true
			remainingOneByOne--
		}
		if err := c.runChunk(ctx, sc, cs); err != nil {
			return "", err
		}

		if cs.rollbackRetry {
			remainingOneByOne = cs.touched
			logger.Warnf("ChunkStep '%s': chunk rolled back for retry; replaying %d item(s) one at a time from the last checkpoint.",
				c.def.ID, remainingOneByOne)
			if err := c.open(ctx, sc); err != nil {
				return "", err
			}
			continue
		}
		if cs.finished {
			logger.Debugf("ChunkStep '%s': reader exhausted.", c.def.ID)
			return "", c.close(ctx, sc)
		}
	}
}

// build creates the artifacts and handlers of the step.
func (c *ChunkStep) build(ctx context.Context, sc *runtime.StepContext) error {
	rt := c.jc.Runtime()
	var err error
	if c.reader, err = step.CreateArtifact[port.ItemReader](ctx, rt.Artifacts, &c.chunk.Reader); err != nil {
		return err
	}
	if c.chunk.Processor != nil {
		if c.processor, err = step.CreateArtifact[port.ItemProcessor](ctx, rt.Artifacts, c.chunk.Processor); err != nil {
			return err
		}
	}
	if c.writer, err = step.CreateArtifact[port.ItemWriter](ctx, rt.Artifacts, &c.chunk.Writer); err != nil {
		return err
	}

	var algorithm port.CheckpointAlgorithm
	if c.chunk.CheckpointPolicy == jsl.CheckpointPolicyCustom {
		if algorithm, err = step.CreateArtifact[port.CheckpointAlgorithm](ctx, rt.Artifacts, c.chunk.CheckpointAlgorithm); err != nil {
			return err
		}
	} else {
		algorithm = checkpoint.NewItemAlgorithm(c.chunk, c.def.Properties)
	}
	c.checkpoints = checkpoint.NewManager(rt.Repository, c.reader, c.writer, algorithm, c.jc.InstanceID(), c.jc.StepKey(c.def.ID))

	c.skips = skip.NewSkipHandler(c.def.ID, c.chunk, c.listeners.Skip)
	c.retries = retry.NewRetryHandler(c.def.ID, c.chunk, c.listeners.Retry)
	if v, ok := c.def.Properties[RetryIntervalProperty]; ok {
		d, perr := time.ParseDuration(v)
		if perr != nil {
			return exception.NewConfigurationError(c.def.ID, "invalid %s '%s': %v", RetryIntervalProperty, v, perr)
		}
		c.retries.Interval = d
	}

	c.collector, err = step.NewPartitionCollector(ctx, c.jc)
	return err
}

// open positions the reader and writer at the last checkpoint inside its own transaction.
func (c *ChunkStep) open(ctx context.Context, sc *runtime.StepContext) error {
	return c.inTransaction(ctx, sc, func(tctx context.Context) error {
		readerToken, err := c.checkpoints.ReaderToken(tctx)
		if err != nil {
			return err
		}
		writerToken, err := c.checkpoints.WriterToken(tctx)
		if err != nil {
			return err
		}
		if err := c.reader.Open(tctx, readerToken); err != nil {
			return exception.NewBatchError(c.def.ID, "Failed to open ItemReader", err, false, false)
		}
		if err := c.writer.Open(tctx, writerToken); err != nil {
			return exception.NewBatchError(c.def.ID, "Failed to open ItemWriter", err, false, false)
		}
		c.opened = true
		return nil
	})
}

// close closes the reader and writer inside their own transaction.
func (c *ChunkStep) close(ctx context.Context, sc *runtime.StepContext) error {
	if !c.opened {
		return nil
	}
	c.opened = false
	return c.inTransaction(ctx, sc, func(tctx context.Context) error {
		if err := c.reader.Close(tctx); err != nil {
			return exception.NewBatchError(c.def.ID, "Failed to close ItemReader", err, false, false)
		}
		if err := c.writer.Close(tctx); err != nil {
			return exception.NewBatchError(c.def.ID, "Failed to close ItemWriter", err, false, false)
		}
		return nil
	})
}

// closeQuietly closes the reader and writer if they are open, logging failures.
func (c *ChunkStep) closeQuietly(ctx context.Context) {
	if !c.opened {
		return
	}
	c.opened = false
	if err := c.reader.Close(ctx); err != nil {
		logger.Warnf("ChunkStep '%s': Failed to close ItemReader: %v", c.def.ID, err)
	}
	if err := c.writer.Close(ctx); err != nil {
		logger.Warnf("ChunkStep '%s': Failed to close ItemWriter: %v", c.def.ID, err)
	}
}

func (c *ChunkStep) inTransaction(ctx context.Context, sc *runtime.StepContext, fn func(tctx context.Context) error) error {
	txm := sc.TransactionManager()
	t, err := txm.Begin(ctx)
	if err != nil {
		return exception.NewBatchError(c.def.ID, "Failed to begin transaction", err, false, false)
	}
	if err := fn(t.Context()); err != nil {
		t.SetRollbackOnly()
		if rbErr := txm.Rollback(t); rbErr != nil {
			logger.Warnf("ChunkStep '%s': rollback failed: %v", c.def.ID, rbErr)
		}
		return err
	}
	if err := txm.Commit(t); err != nil {
		return exception.NewBatchError(c.def.ID, "Failed to commit transaction", err, false, false)
	}
	return nil
}

// runChunk runs one chunk in its own transaction. A returned error is fatal for the
// step; a rollback for retry is reported through cs.
func (c *ChunkStep) runChunk(ctx context.Context, sc *runtime.StepContext, cs *chunkStatus) error {
	rt := c.jc.Runtime()
	txm := sc.TransactionManager()

	timeout, err := c.checkpoints.TransactionTimeout(ctx)
	if err != nil {
		return err
	}
	txm.SetTransactionTimeout(timeout)
	t, err := txm.Begin(ctx)
	if err != nil {
		return exception.NewBatchError(c.def.ID, "Failed to begin transaction for chunk", err, false, false)
	}
	tctx := t.Context()

	if err := c.checkpoints.Begin(tctx); err != nil {
		return c.abort(tctx, sc, t, err)
	}
	for _, l := range c.listeners.Chunk {
		if err := l.BeforeChunk(tctx); err != nil {
			return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "ChunkListener.BeforeChunk failed", err, false, false))
		}
	}

	items, err := c.readAndProcess(tctx, sc, cs)
	if err != nil {
		return c.abort(tctx, sc, t, err)
	}
	if cs.rollbackRetry {
		return c.rollbackForRetry(tctx, sc, t, cs)
	}

	written, err := c.write(tctx, sc, cs, items)
	if err != nil {
		return c.abort(tctx, sc, t, err)
	}
	if cs.rollbackRetry {
		return c.rollbackForRetry(tctx, sc, t, cs)
	}

	for _, l := range c.listeners.Chunk {
		if err := l.AfterChunk(tctx); err != nil {
			return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "ChunkListener.AfterChunk failed", err, false, false))
		}
	}

	read := cs.touched
	if cs.finished {
		read--
	}
	delta := model.StepMetrics{ReadCount: int64(read), WriteCount: int64(written), FilterCount: int64(read - written), CommitCount: 1}
	if delta.ReadCount < 0 || delta.FilterCount < 0 {
		return c.abort(tctx, sc, t, exception.NewIllegalStateError(c.def.ID,
			"inconsistent chunk metrics: touched=%d written=%d finished=%t", cs.touched, written, cs.finished))
	}
	sc.AddMetrics(delta)

	if err := c.checkpoints.Checkpoint(tctx); err != nil {
		return c.abort(tctx, sc, t, err)
	}
	if err := sc.Persist(tctx, rt.Repository.UpdateStepExecution); err != nil {
		return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "Failed to persist StepExecution at checkpoint", err, false, false))
	}
	if err := rt.Repository.UpdateStepStatus(tctx, sc.StepStatus()); err != nil {
		return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "Failed to persist StepStatus at checkpoint", err, false, false))
	}
	if err := txm.Commit(t); err != nil {
		return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "Failed to commit transaction for chunk", err, false, false))
	}

	if err := c.checkpoints.End(ctx); err != nil {
		return err
	}
	if err := c.collector.Collect(ctx); err != nil {
		return err
	}

	rt.Recorder.RecordItemRead(ctx, c.def.ID, read)
	rt.Recorder.RecordItemWrite(ctx, c.def.ID, written)
	rt.Recorder.RecordItemFilter(ctx, c.def.ID, read-written)
	rt.Recorder.RecordChunkCommit(ctx, c.def.ID)
	logger.Debugf("ChunkStep '%s': chunk committed (read: %d, written: %d, one-by-one: %t).", c.def.ID, read, written, cs.oneByOne)
	return nil
}

// rollbackForRetry rolls the chunk back so it can be replayed from the last checkpoint.
func (c *ChunkStep) rollbackForRetry(tctx context.Context, sc *runtime.StepContext, t tx.Tx, cs *chunkStatus) error {
	c.closeQuietly(tctx)
	for _, l := range c.listeners.Chunk {
		if err := l.OnError(tctx, cs.cause); err != nil {
			return c.abort(tctx, sc, t, exception.NewBatchError(c.def.ID, "ChunkListener.OnError failed", err, false, false))
		}
	}
	if err := sc.TransactionManager().Rollback(t); err != nil {
		return exception.NewBatchError(c.def.ID, "Failed to roll back chunk for retry", err, false, false)
	}
	sc.AddMetrics(model.StepMetrics{RollbackCount: 1})
	c.jc.Runtime().Recorder.RecordChunkRollback(tctx, c.def.ID)
	return nil
}

// abort handles a failure that ends the step: the chunk is rolled back and cause is
// returned as a fatal error.
func (c *ChunkStep) abort(tctx context.Context, sc *runtime.StepContext, t tx.Tx, cause error) error {
	t.SetRollbackOnly()
	c.closeQuietly(tctx)
	for _, l := range c.listeners.Chunk {
		if err := l.OnError(tctx, cause); err != nil {
			logger.Warnf("ChunkStep '%s': ChunkListener.OnError failed: %v", c.def.ID, err)
		}
	}
	sc.AddMetrics(model.StepMetrics{RollbackCount: 1})
	c.jc.Runtime().Recorder.RecordChunkRollback(tctx, c.def.ID)
	if err := sc.TransactionManager().Rollback(t); err != nil {
		logger.Warnf("ChunkStep '%s': rollback failed: %v", c.def.ID, err)
	}
	return cause
}

func reason(err error) string {
	return fmt.Sprintf("%T", err)
}
