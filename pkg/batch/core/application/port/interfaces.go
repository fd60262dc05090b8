// Package port defines the contracts between the batch engine and the artifacts it invokes.
// Artifacts (readers, writers, processors, batchlets, partition artifacts, deciders and
// listeners) are built by an ArtifactFactory and see their job and step through the
// JobContext and StepContext carried by the context.Context passed to every call.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// ErrNoMoreItems is returned by ItemReader.ReadItem when the input is exhausted.
// A nil item with a nil error is treated the same way.
var ErrNoMoreItems = errors.New("no more items to read")

// ItemReader reads items one at a time and can be repositioned from a checkpoint token.
type ItemReader interface {
	// Open opens resources and repositions the reader.
	//
	// Parameters:
	//   ctx: The context carrying the StepContext.
	//   checkpoint: The token previously returned by CheckpointInfo, or nil on a fresh start.
	//
	// Returns:
	//   error: An error if opening fails.
	Open(ctx context.Context, checkpoint []byte) error
	// ReadItem returns the next item, or ErrNoMoreItems when the input is exhausted.
	ReadItem(ctx context.Context) (any, error)
	// CheckpointInfo returns the token that repositions the reader to the next unread item.
	CheckpointInfo(ctx context.Context) ([]byte, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// ItemProcessor transforms one item. A nil result filters the item out.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item any) (any, error)
}

// ItemWriter writes the processed items of a chunk.
type ItemWriter interface {
	// Open opens resources and repositions the writer.
	//
	// Parameters:
	//   ctx: The context carrying the StepContext and, when a database transaction
	//        manager is configured, the chunk transaction.
	//   checkpoint: The token previously returned by CheckpointInfo, or nil on a fresh start.
	//
	// Returns:
	//   error: An error if opening fails.
	Open(ctx context.Context, checkpoint []byte) error
	// WriteItems writes items within the chunk transaction.
	WriteItems(ctx context.Context, items []any) error
	// CheckpointInfo returns the token that repositions the writer after the last written item.
	CheckpointInfo(ctx context.Context) ([]byte, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Batchlet performs one opaque unit of work.
type Batchlet interface {
	// Process runs the work. The returned string becomes the step exit status
	// unless the artifact set one explicitly on the StepContext.
	Process(ctx context.Context) (string, error)
	// Stop asks a running Process to return early. It is called from another goroutine.
	Stop(ctx context.Context) error
}

// CheckpointAlgorithm decides when a chunk is committed for the "custom" checkpoint policy.
type CheckpointAlgorithm interface {
	// CheckpointTimeout returns the transaction timeout in seconds for the next chunk. Zero means none.
	CheckpointTimeout(ctx context.Context) (int, error)
	BeginCheckpoint(ctx context.Context) error
	// IsReadyToCheckpoint is called after every item.
	IsReadyToCheckpoint(ctx context.Context) (bool, error)
	EndCheckpoint(ctx context.Context) error
}

// PartitionMapper computes the partition plan at step start.
type PartitionMapper interface {
	MapPartitions(ctx context.Context) (*model.PartitionPlan, error)
}

// PartitionCollector runs on a partition goroutine after each committed chunk and
// at the end of a batchlet. Its data is delivered to the PartitionAnalyzer.
type PartitionCollector interface {
	CollectPartitionData(ctx context.Context) (any, error)
}

// PartitionAnalyzer runs on the goroutine of the partitioned step and receives,
// in arrival order, collector data and the final status of each partition.
type PartitionAnalyzer interface {
	AnalyzeCollectorData(ctx context.Context, data any) error
	AnalyzeStatus(ctx context.Context, status model.BatchStatus, exitStatus string) error
}

// PartitionStatus is the outcome passed to PartitionReducer.AfterPartitionedStepCompletion.
type PartitionStatus string

const (
	PartitionCommit   PartitionStatus = "COMMIT"
	PartitionRollback PartitionStatus = "ROLLBACK"
)

// PartitionReducer receives the unit-of-work hooks of a partitioned step.
type PartitionReducer interface {
	BeginPartitionedStep(ctx context.Context) error
	BeforePartitionedStepCompletion(ctx context.Context) error
	RollbackPartitionedStep(ctx context.Context) error
	AfterPartitionedStepCompletion(ctx context.Context, status PartitionStatus) error
}

// Decider computes the exit status of a decision element.
type Decider interface {
	// Decide receives the step executions preceding the decision: one for a step or flow,
	// one per flow for a split.
	Decide(ctx context.Context, executions []*model.StepExecution) (string, error)
}

// ArtifactFactory creates artifact instances by reference name.
type ArtifactFactory interface {
	// Create builds a fresh artifact for ref with the resolved JSL properties.
	// Every step invocation and every partition gets its own instances.
	Create(ctx context.Context, ref string, properties map[string]string) (any, error)
}
