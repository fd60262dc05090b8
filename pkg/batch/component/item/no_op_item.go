package item

import (
	"context"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

// NoOpItemWriter discards every item. It keeps the count of discarded items as its
// checkpoint so that a restart reports the same total.
type NoOpItemWriter struct {
	written int64
}

// NewNoOpItemWriter creates a NoOpItemWriter.
func NewNoOpItemWriter() *NoOpItemWriter {
	return &NoOpItemWriter{}
}

// Open implements port.ItemWriter.
func (w *NoOpItemWriter) Open(ctx context.Context, checkpoint []byte) error {
	w.written = 0
	_, err := serialization.UnmarshalToken(checkpoint, &w.written)
	return err
}

// WriteItems implements port.ItemWriter.
func (w *NoOpItemWriter) WriteItems(ctx context.Context, items []any) error {
	w.written += int64(len(items))
	logger.Debugf("NoOpItemWriter: discarded %d items (%d in total).", len(items), w.written)
	return nil
}

// CheckpointInfo implements port.ItemWriter.
func (w *NoOpItemWriter) CheckpointInfo(ctx context.Context) ([]byte, error) {
	return serialization.MarshalToken(w.written)
}

// Close implements port.ItemWriter.
func (w *NoOpItemWriter) Close(ctx context.Context) error { return nil }

// Written returns the number of items discarded so far.
func (w *NoOpItemWriter) Written() int64 { return w.written }

var _ port.ItemWriter = (*NoOpItemWriter)(nil)
