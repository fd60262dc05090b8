package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// SubJobKind distinguishes the two kinds of sub-jobs.
type SubJobKind string

const (
	SubJobPartition SubJobKind = "partition"
	SubJobSplitFlow SubJobKind = "split-flow"
)

// SubJob describes a partition or split-flow to be run on its own goroutine.
type SubJob struct {
	ID     string
	Kind   SubJobKind
	Parent *JobContext
	// Job is a single-element graph holding the partition's step or the split's flow.
	Job *jsl.Job
	// RestartAt is the element the sub-job's graph walk starts at.
	RestartAt string

	PartitionIndex        int
	ParentStepExecutionID string
	// Collector is the partition collector declared on the partitioned step.
	Collector *jsl.ComponentRef
	// Sink receives collector data and the final partition status.
	Sink ReplySink
}

// SubJobResult is the outcome of a finished sub-job.
type SubJobResult struct {
	SubJobID           string
	PartitionIndex     int
	ExecutionStatus    model.ExecutionStatus
	BatchStatus        model.BatchStatus
	ExitStatus         string
	LastStepExecutions []*model.StepExecution
	// Err is a failure that escaped the sub-job's own failure handling.
	Err error
}

// Future is the pending result of a submitted sub-job.
type Future struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result SubJobResult
}

// NewFuture creates an incomplete Future for the sub-job id.
func NewFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the sub-job id.
func (f *Future) ID() string { return f.id }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Complete publishes the result. Later calls are ignored.
func (f *Future) Complete(r SubJobResult) {
	f.once.Do(func() {
		r.SubJobID = f.id
		f.result = r
		close(f.done)
	})
}

// Result blocks until the sub-job finishes or ctx is done.
func (f *Future) Result(ctx context.Context) (SubJobResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return SubJobResult{}, ctx.Err()
	}
}

// Submitter runs sub-jobs. The kernel implements it.
type Submitter interface {
	SubmitSubJob(ctx context.Context, sj *SubJob) (*Future, error)
	// StopSubJob stops a running sub-job. It returns an error of type ErrJobNotRunning
	// when the sub-job already finished.
	StopSubJob(ctx context.Context, subJobID string) error
}

// ReplyKind tags a Reply.
type ReplyKind int

const (
	// ReplyData carries partition collector data.
	ReplyData ReplyKind = iota
	// ReplyStatus carries the final status of a partition step.
	ReplyStatus
	// ReplyDone signals that a sub-job finished.
	ReplyDone
)

// Reply is a message from a sub-job to the goroutine waiting on it.
type Reply struct {
	Kind           ReplyKind
	SubJobID       string
	PartitionIndex int
	Data           any
	BatchStatus    model.BatchStatus
	ExitStatus     string
	Result         SubJobResult
}

// ReplySink accepts replies from sub-jobs.
type ReplySink interface {
	Send(ctx context.Context, r Reply) error
}

// ErrJobNotRunning is returned when a stop targets a job or sub-job that is not running.
var ErrJobNotRunning = errors.New("job is not running")

func init() {
	exception.RegisterErrorType("ErrJobNotRunning", ErrJobNotRunning)
}

// ErrFanInClosed is returned by Send after the receiving side went away.
var ErrFanInClosed = exception.NewIllegalStateError("fan_in", "the receiving side of the fan-in has closed")

// FanIn merges the replies of several sub-jobs into one ordered stream. Every reply a
// sub-job sends is received before its ReplyDone.
type FanIn struct {
	ch      chan Reply
	quit    chan struct{}
	close   sync.Once
	pending atomic.Int32
}

// NewFanIn creates a FanIn with the given channel buffer.
func NewFanIn(buffer int) *FanIn {
	return &FanIn{ch: make(chan Reply, buffer), quit: make(chan struct{})}
}

// Send implements ReplySink.
func (f *FanIn) Send(ctx context.Context, r Reply) error {
	select {
	case f.ch <- r:
		return nil
	case <-f.quit:
		return ErrFanInClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Track waits for fut in the background and delivers its result as a ReplyDone.
func (f *FanIn) Track(fut *Future, partitionIndex int) {
	f.pending.Add(1)
	go func() {
		<-fut.Done()
		r := fut.result
		r.PartitionIndex = partitionIndex
		select {
		case f.ch <- Reply{Kind: ReplyDone, SubJobID: fut.id, PartitionIndex: partitionIndex, Result: r}:
		case <-f.quit:
		}
	}()
}

// Pending returns the number of tracked sub-jobs whose ReplyDone was not yet received.
func (f *FanIn) Pending() int { return int(f.pending.Load()) }

// Next returns the next reply.
func (f *FanIn) Next(ctx context.Context) (Reply, error) {
	select {
	case r := <-f.ch:
		if r.Kind == ReplyDone {
			f.pending.Add(-1)
		}
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Close releases every sender still blocked on the FanIn.
func (f *FanIn) Close() {
	f.close.Do(func() { close(f.quit) })
}
