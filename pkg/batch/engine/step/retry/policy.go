// Package retry decides whether a failed read, process or write is retried, and whether
// the retry needs the chunk to be rolled back first.
package retry

import (
	"context"
	"errors"
	"time"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Decision is the outcome of classifying a failure.
type Decision int

const (
	// Rethrow means the failure is not retryable.
	Rethrow Decision = iota
	// RetryInPlace means the operation is retried immediately inside the current chunk.
	RetryInPlace
	// RetryWithRollback means the chunk is rolled back and replayed one item at a time.
	RetryWithRollback
)

func (d Decision) String() string {
	switch d {
	case RetryInPlace:
		return "RETRY_IN_PLACE"
	case RetryWithRollback:
		return "RETRY_WITH_ROLLBACK"
	}
	return "RETHROW"
}

// Listener is notified of every retried failure.
type Listener = port.RetryListener

// RetryHandler applies the retryable and no-rollback exception filters and the retry
// limit of one chunk step. It is used by a single goroutine.
type RetryHandler struct {
	stepName   string
	filter     jsl.ExceptionClassFilter
	noRollback jsl.ExceptionClassFilter
	limit      int
	count      int
	listeners  []Listener
	// Interval is waited before an in-place retry.
	Interval time.Duration
}

// NewRetryHandler creates a RetryHandler for chunk.
//
// A retry limit of 0 allows no retry; a negative limit allows any number of retries.
func NewRetryHandler(stepName string, chunk *jsl.Chunk, listeners []Listener) *RetryHandler {
	return &RetryHandler{
		stepName:   stepName,
		filter:     chunk.RetryableExceptions,
		noRollback: chunk.NoRollbackExceptions,
		limit:      chunk.RetryLimit,
		listeners:  listeners,
	}
}

// Classify returns the decision for err without consuming a retry.
func (h *RetryHandler) Classify(err error) Decision {
	if err == nil || h.limit == 0 {
		return Rethrow
	}
	if h.limit > 0 && h.count >= h.limit {
		return Rethrow
	}
	if !h.isRetryable(err) {
		return Rethrow
	}
	if h.noRollback.Matches(err) {
		return RetryInPlace
	}
	return RetryWithRollback
}

func (h *RetryHandler) isRetryable(err error) bool {
	if h.filter.Matches(err) {
		return true
	}
	var be *exception.BatchError
	return errors.As(err, &be) && be.IsRetryable() && !h.filter.Excludes(err)
}

// Count returns the number of retries taken so far.
func (h *RetryHandler) Count() int { return h.count }

// HandleRead classifies a read failure and, when retried, consumes a retry and notifies
// the retry listeners.
func (h *RetryHandler) HandleRead(ctx context.Context, cause error) (Decision, error) {
	d := h.take(cause, "read")
	if d == Rethrow {
		return d, nil
	}
	for _, l := range h.listeners {
		if err := l.OnRetryReadException(ctx, cause); err != nil {
			return d, exception.NewBatchError("retry", "RetryListener.OnRetryReadException failed", err, false, false)
		}
	}
	return d, nil
}

// HandleProcess classifies a process failure of item.
func (h *RetryHandler) HandleProcess(ctx context.Context, item any, cause error) (Decision, error) {
	d := h.take(cause, "process")
	if d == Rethrow {
		return d, nil
	}
	for _, l := range h.listeners {
		if err := l.OnRetryProcessException(ctx, item, cause); err != nil {
			return d, exception.NewBatchError("retry", "RetryListener.OnRetryProcessException failed", err, false, false)
		}
	}
	return d, nil
}

// HandleWrite classifies a write failure of items.
func (h *RetryHandler) HandleWrite(ctx context.Context, items []any, cause error) (Decision, error) {
	d := h.take(cause, "write")
	if d == Rethrow {
		return d, nil
	}
	for _, l := range h.listeners {
		if err := l.OnRetryWriteException(ctx, items, cause); err != nil {
			return d, exception.NewBatchError("retry", "RetryListener.OnRetryWriteException failed", err, false, false)
		}
	}
	return d, nil
}

// Wait sleeps Interval before an in-place retry, returning early when ctx is done.
func (h *RetryHandler) Wait(ctx context.Context) error {
	if h.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(h.Interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *RetryHandler) take(cause error, phase string) Decision {
	d := h.Classify(cause)
	if d == Rethrow {
		return d
	}
	h.count++
	logger.Warnf("Step '%s': retrying %s failure as %s (%d/%d): %v", h.stepName, phase, d, h.count, h.limit, cause)
	return d
}
