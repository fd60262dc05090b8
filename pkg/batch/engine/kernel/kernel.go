// Package kernel is the entry point of the batch engine. It runs top-level job
// executions on a bounded pool of goroutines, runs partition and split-flow sub-jobs
// on goroutines of their own, and keeps the registry of running executions that stop
// requests are routed through.
package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/jbatch/pkg/batch/core/support/expression"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// DefaultPoolSize bounds concurrent top-level jobs when no size is configured.
const DefaultPoolSize = 10

// Options configures a BatchKernel.
type Options struct {
	// PoolSize bounds the number of top-level jobs running at once.
	PoolSize int
}

// BatchKernel runs jobs and sub-jobs and tracks which of them are running.
type BatchKernel struct {
	rt     *runtime.RuntimeContext
	runner *runner.JobRunner
	pool   *semaphore.Weighted

	// base is the parent context of every top-level job; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	executions map[string]*Handle
	instances  map[string]string
	subJobs    map[string]*runtime.JobContext
}

var _ runtime.Submitter = (*BatchKernel)(nil)

// NewBatchKernel creates a kernel running jobs with jr and installs it as the sub-job
// submitter of rt.
func NewBatchKernel(rt *runtime.RuntimeContext, jr *runner.JobRunner, opts Options) (*BatchKernel, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	base, cancel := context.WithCancel(context.Background())
	k := &BatchKernel{
		rt:         rt,
		runner:     jr,
		pool:       semaphore.NewWeighted(int64(opts.PoolSize)),
		base:       base,
		cancel:     cancel,
		executions: make(map[string]*Handle),
		instances:  make(map[string]string),
		subJobs:    make(map[string]*runtime.JobContext),
	}
	rt.Submitter = k
	if err := rt.Validate(); err != nil {
		cancel()
		return nil, err
	}
	logger.Infof("BatchKernel initialized (pool size: %d).", opts.PoolSize)
	return k, nil
}

// Runtime returns the collaborators shared by every controller.
func (k *BatchKernel) Runtime() *runtime.RuntimeContext { return k.rt }

// Handle tracks one submitted top-level execution.
type Handle struct {
	executionID string
	jc          *runtime.JobContext
	done        chan struct{}
	err         error
}

// ExecutionID returns the id of the tracked JobExecution.
func (h *Handle) ExecutionID() string { return h.executionID }

// Done is closed once the execution reached its final, persisted state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the execution ended or ctx is done. The returned error is set
// when the final state could not be persisted.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit runs a persisted JobExecution in STARTING status. job is resolved against
// the execution's parameters before it runs. restartAt names the element a restart
// resumes at, or is empty.
func (k *BatchKernel) Submit(ctx context.Context, job *jsl.Job, je *model.JobExecution, restartAt string) (*Handle, error) {
	resolved := expression.ResolveJob(job, je.Parameters)
	jc := runtime.NewJobContext(k.rt, resolved, je, restartAt)
	h := &Handle{executionID: je.ID, jc: jc, done: make(chan struct{})}

	k.mu.Lock()
	switch {
	case k.closed:
		k.mu.Unlock()
		return nil, ErrKernelShutdown
	case k.executions[je.ID] != nil:
		k.mu.Unlock()
		return nil, fmt.Errorf("execution %s: %w", je.ID, ErrExecutionAlreadyRegistered)
	case k.instances[je.JobInstanceID] != "":
		running := k.instances[je.JobInstanceID]
		k.mu.Unlock()
		return nil, fmt.Errorf("instance %s is running execution %s: %w", je.JobInstanceID, running, ErrInstanceAlreadyRunning)
	}
	k.executions[je.ID] = h
	k.instances[je.JobInstanceID] = je.ID
	k.wg.Add(1)
	k.mu.Unlock()

	logger.Infof("BatchKernel: submitted job '%s' (Execution ID: %s, Instance ID: %s, restart at: '%s').", job.ID, je.ID, je.JobInstanceID, restartAt)
	go k.run(h)
	return h, nil
}

func (k *BatchKernel) run(h *Handle) {
	defer k.wg.Done()
	defer close(h.done)
	defer k.unregister(h)

	ctx := k.base
	if err := k.pool.Acquire(ctx, 1); err != nil {
		// The kernel shut down while the job waited for a slot.
		_ = h.jc.RequestStop(context.Background())
		h.err = k.runner.RunJob(context.Background(), h.jc)
		return
	}
	defer k.pool.Release(1)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("BatchKernel: job execution %s panicked: %v", h.executionID, r)
			h.err = exception.NewBatchErrorf("kernel", "job execution %s panicked: %v", h.executionID, r)
		}
	}()
	h.err = k.runner.RunJob(ctx, h.jc)
}

func (k *BatchKernel) unregister(h *Handle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.executions, h.executionID)
	if k.instances[h.jc.InstanceID()] == h.executionID {
		delete(k.instances, h.jc.InstanceID())
	}
}

// Stop requests a cooperative stop of a running execution.
func (k *BatchKernel) Stop(ctx context.Context, executionID string) error {
	k.mu.Lock()
	h := k.executions[executionID]
	k.mu.Unlock()
	if h == nil {
		return fmt.Errorf("execution %s: %w", executionID, ErrJobNotRunning)
	}
	return h.jc.RequestStop(ctx)
}

// LiveStatus returns the in-memory batch status of a running execution.
func (k *BatchKernel) LiveStatus(executionID string) (model.BatchStatus, bool) {
	k.mu.Lock()
	h := k.executions[executionID]
	k.mu.Unlock()
	if h == nil {
		return "", false
	}
	return h.jc.BatchStatus(), true
}

// RunningExecutions returns the ids of the running top-level executions in sorted order.
func (k *BatchKernel) RunningExecutions() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]string, 0, len(k.executions))
	for id := range k.executions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubmitSubJob implements runtime.Submitter. Sub-jobs do not take a pool slot: the
// partitioned step bounds its partitions itself and split flows are unbounded.
func (k *BatchKernel) SubmitSubJob(ctx context.Context, sj *runtime.SubJob) (*runtime.Future, error) {
	jc := runtime.NewSubJobContext(sj)

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil, ErrKernelShutdown
	}
	if k.subJobs[sj.ID] != nil {
		k.mu.Unlock()
		return nil, fmt.Errorf("sub-job %s: %w", sj.ID, ErrExecutionAlreadyRegistered)
	}
	k.subJobs[sj.ID] = jc
	k.wg.Add(1)
	k.mu.Unlock()

	fut := runtime.NewFuture(sj.ID)
	go func() {
		defer k.wg.Done()
		var res runtime.SubJobResult
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("BatchKernel: sub-job %s panicked: %v", sj.ID, r)
				res = runtime.SubJobResult{
					PartitionIndex: sj.PartitionIndex,
					BatchStatus:    model.BatchStatusFailed,
					ExitStatus:     model.BatchStatusFailed.String(),
					Err:            exception.NewBatchErrorf("kernel", "sub-job %s panicked: %v", sj.ID, r),
				}
			}
			k.mu.Lock()
			delete(k.subJobs, sj.ID)
			k.mu.Unlock()
			fut.Complete(res)
		}()
		logger.Debugf("BatchKernel: running %s sub-job %s.", sj.Kind, sj.ID)
		res = k.runner.RunSubJob(ctx, jc)
	}()
	return fut, nil
}

// StopSubJob implements runtime.Submitter.
func (k *BatchKernel) StopSubJob(ctx context.Context, subJobID string) error {
	k.mu.Lock()
	jc := k.subJobs[subJobID]
	k.mu.Unlock()
	if jc == nil {
		return fmt.Errorf("sub-job %s: %w", subJobID, ErrJobNotRunning)
	}
	return jc.RequestStop(ctx)
}

// Shutdown rejects new submissions, asks every running job to stop and waits for all
// jobs and sub-jobs to end, or for ctx.
func (k *BatchKernel) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	k.closed = true
	handles := make([]*Handle, 0, len(k.executions))
	for _, h := range k.executions {
		handles = append(handles, h)
	}
	k.mu.Unlock()

	logger.Infof("BatchKernel: shutting down; stopping %d running jobs.", len(handles))
	for _, h := range handles {
		if err := h.jc.RequestStop(ctx); err != nil {
			logger.Warnf("BatchKernel: failed to stop execution %s: %v", h.executionID, err)
		}
	}

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	defer k.cancel()
	select {
	case <-done:
		logger.Infof("BatchKernel: all jobs ended.")
		return nil
	case <-ctx.Done():
		logger.Errorf("BatchKernel: shutdown timed out; some jobs may still be running.")
		return ctx.Err()
	}
}
