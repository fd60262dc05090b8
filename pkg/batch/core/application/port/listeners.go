package port

import (
	"context"
)

// An artifact may implement any number of the listener interfaces below. The engine
// type-switches each configured listener into the families it implements. An error
// returned from a listener fails the step (or job) like an error from the step itself.

// JobListener is notified around a top-level job execution.
type JobListener interface {
	BeforeJob(ctx context.Context) error
	// AfterJob runs even when the job failed.
	AfterJob(ctx context.Context) error
}

// StepListener is notified around a step execution.
type StepListener interface {
	BeforeStep(ctx context.Context) error
	// AfterStep runs even when the step failed.
	AfterStep(ctx context.Context) error
}

// ChunkListener is notified around each chunk of a chunk step.
type ChunkListener interface {
	BeforeChunk(ctx context.Context) error
	// OnError is called before the chunk transaction is rolled back.
	OnError(ctx context.Context, err error) error
	AfterChunk(ctx context.Context) error
}

// ItemReadListener is notified around every ReadItem call.
type ItemReadListener interface {
	BeforeRead(ctx context.Context) error
	AfterRead(ctx context.Context, item any) error
	OnReadError(ctx context.Context, err error) error
}

// ItemProcessListener is notified around every ProcessItem call.
type ItemProcessListener interface {
	BeforeProcess(ctx context.Context, item any) error
	AfterProcess(ctx context.Context, item, result any) error
	OnProcessError(ctx context.Context, item any, err error) error
}

// ItemWriteListener is notified around every WriteItems call.
type ItemWriteListener interface {
	BeforeWrite(ctx context.Context, items []any) error
	AfterWrite(ctx context.Context, items []any) error
	OnWriteError(ctx context.Context, items []any, err error) error
}

// SkipListener is notified when an item is skipped.
type SkipListener interface {
	OnSkipReadItem(ctx context.Context, err error) error
	OnSkipProcessItem(ctx context.Context, item any, err error) error
	OnSkipWriteItem(ctx context.Context, items []any, err error) error
}

// RetryListener is notified before a failed operation is retried.
type RetryListener interface {
	OnRetryReadException(ctx context.Context, err error) error
	OnRetryProcessException(ctx context.Context, item any, err error) error
	OnRetryWriteException(ctx context.Context, items []any, err error) error
}
