package chunk

import (
	"context"
	"errors"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// readAndProcess reads and processes items until the checkpoint algorithm is ready,
// the reader is exhausted, the step is stopping or a rollback is needed. In one-by-one
// mode it returns after a single item.
func (c *ChunkStep) readAndProcess(ctx context.Context, sc *runtime.StepContext, cs *chunkStatus) ([]any, error) {
	var out []any
	for {
		item, err := c.readItem(ctx, sc, cs)
		if err != nil {
			return nil, err
		}
		cs.touched++
		if cs.rollbackRetry || cs.finished {
			return out, nil
		}

		result, keep, err := c.processItem(ctx, sc, cs, item)
		if err != nil {
			return nil, err
		}
		if cs.rollbackRetry {
			return out, nil
		}
		if keep {
			out = append(out, result)
		}

		if cs.oneByOne {
			return out, nil
		}
		ready, err := c.checkpoints.IsReady(ctx)
		if err != nil {
			return nil, err
		}
		if ready || sc.IsStopping() {
			return out, nil
		}
	}
}

// readItem returns the next item. Skipped reads and in-place retries loop inside;
// the end of input and a rollback are reported through cs.
func (c *ChunkStep) readItem(ctx context.Context, sc *runtime.StepContext, cs *chunkStatus) (any, error) {
	for {
		for _, l := range c.listeners.Read {
			if err := l.BeforeRead(ctx); err != nil {
				return nil, exception.NewBatchError(c.def.ID, "ItemReadListener.BeforeRead failed", err, false, false)
			}
		}
		item, readErr := c.reader.ReadItem(ctx)
		if readErr == nil || errors.Is(readErr, port.ErrNoMoreItems) {
			if readErr != nil || item == nil {
				cs.finished = true
				return nil, nil
			}
			for _, l := range c.listeners.Read {
				if err := l.AfterRead(ctx, item); err != nil {
					return nil, exception.NewBatchError(c.def.ID, "ItemReadListener.AfterRead failed", err, false, false)
				}
			}
			return item, nil
		}

		for _, l := range c.listeners.Read {
			if err := l.OnReadError(ctx, readErr); err != nil {
				return nil, exception.NewBatchError(c.def.ID, "ItemReadListener.OnReadError failed", err, false, false)
			}
		}
		skipped, err := c.skips.HandleRead(ctx, readErr)
		if err != nil {
			return nil, err
		}
		if skipped {
			sc.AddMetrics(model.StepMetrics{ReadSkipCount: 1})
			c.jc.Runtime().Recorder.RecordItemSkip(ctx, c.def.ID, metrics.PhaseRead, reason(readErr))
			continue
		}
		decision, err := c.retries.HandleRead(ctx, readErr)
		if err != nil {
			return nil, err
		}
		if done, err := c.applyRetry(ctx, cs, decision, metrics.PhaseRead, readErr); done || err != nil {
			return nil, err
		}
	}
}

// processItem runs the processor. keep is false when the item was filtered or skipped.
func (c *ChunkStep) processItem(ctx context.Context, sc *runtime.StepContext, cs *chunkStatus, item any) (any, bool, error) {
	if c.processor == nil {
		return item, true, nil
	}
	for {
		for _, l := range c.listeners.Process {
			if err := l.BeforeProcess(ctx, item); err != nil {
				return nil, false, exception.NewBatchError(c.def.ID, "ItemProcessListener.BeforeProcess failed", err, false, false)
			}
		}
		result, procErr := c.processor.ProcessItem(ctx, item)
		if procErr == nil {
			for _, l := range c.listeners.Process {
				if err := l.AfterProcess(ctx, item, result); err != nil {
					return nil, false, exception.NewBatchError(c.def.ID, "ItemProcessListener.AfterProcess failed", err, false, false)
				}
			}
			return result, result != nil, nil
		}

		for _, l := range c.listeners.Process {
			if err := l.OnProcessError(ctx, item, procErr); err != nil {
				return nil, false, exception.NewBatchError(c.def.ID, "ItemProcessListener.OnProcessError failed", err, false, false)
			}
		}
		skipped, err := c.skips.HandleProcess(ctx, item, procErr)
		if err != nil {
			return nil, false, err
		}
		if skipped {
			sc.AddMetrics(model.StepMetrics{ProcessSkipCount: 1})
			c.jc.Runtime().Recorder.RecordItemSkip(ctx, c.def.ID, metrics.PhaseProcess, reason(procErr))
			return nil, false, nil
		}
		decision, err := c.retries.HandleProcess(ctx, item, procErr)
		if err != nil {
			return nil, false, err
		}
		if done, err := c.applyRetry(ctx, cs, decision, metrics.PhaseProcess, procErr); done || err != nil {
			return nil, false, err
		}
	}
}

// write hands the chunk to the writer and returns the number of items written.
func (c *ChunkStep) write(ctx context.Context, sc *runtime.StepContext, cs *chunkStatus, items []any) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	for {
		for _, l := range c.listeners.Write {
			if err := l.BeforeWrite(ctx, items); err != nil {
				return 0, exception.NewBatchError(c.def.ID, "ItemWriteListener.BeforeWrite failed", err, false, false)
			}
		}
		writeErr := c.writer.WriteItems(ctx, items)
		if writeErr == nil {
			for _, l := range c.listeners.Write {
				if err := l.AfterWrite(ctx, items); err != nil {
					return 0, exception.NewBatchError(c.def.ID, "ItemWriteListener.AfterWrite failed", err, false, false)
				}
			}
			return len(items), nil
		}

		for _, l := range c.listeners.Write {
			if err := l.OnWriteError(ctx, items, writeErr); err != nil {
				return 0, exception.NewBatchError(c.def.ID, "ItemWriteListener.OnWriteError failed", err, false, false)
			}
		}
		skipped, err := c.skips.HandleWrite(ctx, items, writeErr)
		if err != nil {
			return 0, err
		}
		if skipped {
			sc.AddMetrics(model.StepMetrics{WriteSkipCount: 1})
			c.jc.Runtime().Recorder.RecordItemSkip(ctx, c.def.ID, metrics.PhaseWrite, reason(writeErr))
			return 0, nil
		}
		decision, err := c.retries.HandleWrite(ctx, items, writeErr)
		if err != nil {
			return 0, err
		}
		if done, err := c.applyRetry(ctx, cs, decision, metrics.PhaseWrite, writeErr); done || err != nil {
			return 0, err
		}
	}
}

// applyRetry acts on a retry decision. done is true when the caller must stop retrying
// in place, either because the chunk rolls back or because cause is fatal.
func (c *ChunkStep) applyRetry(ctx context.Context, cs *chunkStatus, d retry.Decision, phase metrics.ItemPhase, cause error) (bool, error) {
	switch d {
	case retry.RetryInPlace:
		c.jc.Runtime().Recorder.RecordItemRetry(ctx, c.def.ID, phase, reason(cause))
		logger.Debugf("ChunkStep '%s': retrying %s in place after: %v", c.def.ID, phase, cause)
		if err := c.retries.Wait(ctx); err != nil {
			return true, err
		}
		return false, nil
	case retry.RetryWithRollback:
		c.jc.Runtime().Recorder.RecordItemRetry(ctx, c.def.ID, phase, reason(cause))
		cs.markRollback(cause)
		return true, nil
	default:
		return true, exception.NewBatchError(c.def.ID, "ChunkStep "+string(phase)+" failed", cause, false, false)
	}
}
