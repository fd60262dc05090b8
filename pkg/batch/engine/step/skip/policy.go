// Package skip decides whether a failed read, process or write may be skipped.
package skip

import (
	"context"
	"errors"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Listener is notified of every skipped failure.
type Listener = port.SkipListener

// SkipHandler applies the skippable-exception filter and skip limit of one chunk step.
// It is used by a single goroutine.
type SkipHandler struct {
	stepName  string
	filter    jsl.ExceptionClassFilter
	limit     int
	count     int
	listeners []Listener
}

// NewSkipHandler creates a SkipHandler for chunk.
//
// A skip limit of 0 allows no skip; a negative limit allows any number of skips.
func NewSkipHandler(stepName string, chunk *jsl.Chunk, listeners []Listener) *SkipHandler {
	return &SkipHandler{
		stepName:  stepName,
		filter:    chunk.SkippableExceptions,
		limit:     chunk.SkipLimit,
		listeners: listeners,
	}
}

// IsSkippable reports whether err may be skipped now. A BatchError flagged skippable
// counts as included unless the exclude filter names it.
func (h *SkipHandler) IsSkippable(err error) bool {
	if err == nil || h.limit == 0 {
		return false
	}
	if h.limit > 0 && h.count >= h.limit {
		return false
	}
	if h.filter.Matches(err) {
		return true
	}
	var be *exception.BatchError
	return errors.As(err, &be) && be.IsSkippable() && !h.filter.Excludes(err)
}

// Count returns the number of skips taken so far.
func (h *SkipHandler) Count() int { return h.count }

// Limit returns the configured skip limit.
func (h *SkipHandler) Limit() int { return h.limit }

// HandleRead skips a read failure if allowed. It reports whether the failure was
// skipped; a failing listener is returned as the error.
func (h *SkipHandler) HandleRead(ctx context.Context, cause error) (bool, error) {
	if !h.take(cause, "read") {
		return false, nil
	}
	for _, l := range h.listeners {
		if err := l.OnSkipReadItem(ctx, cause); err != nil {
			return true, exception.NewBatchError("skip", "SkipListener.OnSkipReadItem failed", err, false, false)
		}
	}
	return true, nil
}

// HandleProcess skips a process failure of item if allowed.
func (h *SkipHandler) HandleProcess(ctx context.Context, item any, cause error) (bool, error) {
	if !h.take(cause, "process") {
		return false, nil
	}
	for _, l := range h.listeners {
		if err := l.OnSkipProcessItem(ctx, item, cause); err != nil {
			return true, exception.NewBatchError("skip", "SkipListener.OnSkipProcessItem failed", err, false, false)
		}
	}
	return true, nil
}

// HandleWrite skips a write failure of items if allowed.
func (h *SkipHandler) HandleWrite(ctx context.Context, items []any, cause error) (bool, error) {
	if !h.take(cause, "write") {
		return false, nil
	}
	for _, l := range h.listeners {
		if err := l.OnSkipWriteItem(ctx, items, cause); err != nil {
			return true, exception.NewBatchError("skip", "SkipListener.OnSkipWriteItem failed", err, false, false)
		}
	}
	return true, nil
}

func (h *SkipHandler) take(cause error, phase string) bool {
	if !h.IsSkippable(cause) {
		return false
	}
	h.count++
	logger.Warnf("Step '%s': skipping %s failure (%d/%d): %v", h.stepName, phase, h.count, h.limit, cause)
	return true
}
