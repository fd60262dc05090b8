package runtime

import (
	"context"
	"sync"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// JobContext is the in-memory state of one running job or sub-job.
//
// The batch status held here is the live status. It is written by the executing
// goroutine and by stop requests, and is persisted only by the executing goroutine.
type JobContext struct {
	rt         *RuntimeContext
	job        *jsl.Job
	instanceID string
	// execution is nil for sub-jobs.
	execution  *model.JobExecution
	rootExecID string
	params     model.JobParameters
	// restartAt is the element a restarted execution resumes at.
	restartAt string

	subJob *SubJob
	slot   StoppableSlot

	mu          sync.RWMutex
	batchStatus model.BatchStatus
	exitStatus  string
	restartOn   string
	transient   any
}

var _ port.JobContext = (*JobContext)(nil)

// NewJobContext creates the context of a top-level job execution. job must already be
// resolved against params.
func NewJobContext(rt *RuntimeContext, job *jsl.Job, execution *model.JobExecution, restartAt string) *JobContext {
	return &JobContext{
		rt:          rt,
		job:         job,
		instanceID:  execution.JobInstanceID,
		execution:   execution,
		rootExecID:  execution.ID,
		params:      execution.Parameters.Copy(),
		restartAt:   restartAt,
		batchStatus: execution.Status,
	}
}

// NewSubJobContext creates the context of a partition or split-flow sub-job. Its batch
// status lives in memory only.
func NewSubJobContext(sj *SubJob) *JobContext {
	parent := sj.Parent
	return &JobContext{
		rt:          parent.rt,
		job:         sj.Job,
		instanceID:  parent.instanceID,
		rootExecID:  parent.rootExecID,
		params:      parent.params,
		restartAt:   sj.RestartAt,
		subJob:      sj,
		batchStatus: model.BatchStatusStarting,
	}
}

func (jc *JobContext) JobName() string                 { return jc.job.ID }
func (jc *JobContext) InstanceID() string              { return jc.instanceID }
func (jc *JobContext) Properties() map[string]string   { return jc.job.Properties }
func (jc *JobContext) Parameters() model.JobParameters { return jc.params }

// ExecutionID returns the job execution id, or "" inside a sub-job.
func (jc *JobContext) ExecutionID() string {
	if jc.execution == nil {
		return ""
	}
	return jc.execution.ID
}

// RootExecutionID is the id of the top-level job execution this context runs under.
func (jc *JobContext) RootExecutionID() string { return jc.rootExecID }

// Runtime returns the collaborators of the engine.
func (jc *JobContext) Runtime() *RuntimeContext { return jc.rt }

// Job returns the resolved execution-element graph.
func (jc *JobContext) Job() *jsl.Job { return jc.job }

// Execution returns the top-level JobExecution, or nil inside a sub-job.
func (jc *JobContext) Execution() *model.JobExecution { return jc.execution }

// SubJob returns the sub-job description, or nil for a top-level job.
func (jc *JobContext) SubJob() *SubJob { return jc.subJob }

// IsSubJob reports whether the context belongs to a partition or split-flow sub-job.
func (jc *JobContext) IsSubJob() bool { return jc.subJob != nil }

// IsPartition reports whether the context runs one partition of a partitioned step.
func (jc *JobContext) IsPartition() bool {
	return jc.subJob != nil && jc.subJob.Kind == SubJobPartition
}

// PartitionIndex returns the partition index, or model.TopLevelPartition.
func (jc *JobContext) PartitionIndex() int {
	if !jc.IsPartition() {
		return model.TopLevelPartition
	}
	return jc.subJob.PartitionIndex
}

// RestartAt is the element id the graph walk starts at, or "" for the first element.
func (jc *JobContext) RestartAt() string { return jc.restartAt }

// Slot is the stoppable slot of this context's graph walk.
func (jc *JobContext) Slot() *StoppableSlot { return &jc.slot }

func (jc *JobContext) BatchStatus() model.BatchStatus {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	return jc.batchStatus
}

// SetBatchStatus sets the live batch status without validating the transition.
func (jc *JobContext) SetBatchStatus(status model.BatchStatus) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.batchStatus = status
}

// CompareAndSetBatchStatus sets the live batch status to next if it is from.
func (jc *JobContext) CompareAndSetBatchStatus(from, next model.BatchStatus) bool {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if jc.batchStatus != from {
		return false
	}
	jc.batchStatus = next
	return true
}

// IsStopping reports whether a stop was requested.
func (jc *JobContext) IsStopping() bool {
	s := jc.BatchStatus()
	return s == model.BatchStatusStopping || s == model.BatchStatusStopped
}

func (jc *JobContext) ExitStatus() string {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	return jc.exitStatus
}

func (jc *JobContext) SetExitStatus(exitStatus string) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.exitStatus = exitStatus
}

// RestartOn is the element a JSL stop transition asked the next restart to resume at.
func (jc *JobContext) RestartOn() string {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	return jc.restartOn
}

func (jc *JobContext) SetRestartOn(id string) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.restartOn = id
}

func (jc *JobContext) TransientUserData() any {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	return jc.transient
}

func (jc *JobContext) SetTransientUserData(data any) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.transient = data
}

// RequestStop marks the job STOPPING and forwards the request to the element currently
// executing. A job that is not running is left untouched.
func (jc *JobContext) RequestStop(ctx context.Context) error {
	jc.mu.Lock()
	switch jc.batchStatus {
	case model.BatchStatusStarting, model.BatchStatusStarted:
		jc.batchStatus = model.BatchStatusStopping
	case model.BatchStatusStopping:
	default:
		jc.mu.Unlock()
		return nil
	}
	jc.mu.Unlock()
	logger.Infof("Stop requested for job '%s' (instance: %s, partition: %d).", jc.JobName(), jc.instanceID, jc.PartitionIndex())
	return jc.slot.Stop(ctx)
}

// StepKey is the StepStatus and checkpoint key of stepName in this context.
func (jc *JobContext) StepKey(stepName string) string {
	if jc.IsPartition() {
		return model.PartitionStepKey(stepName, jc.subJob.PartitionIndex)
	}
	return stepName
}

// WithContext returns ctx carrying jc for artifacts.
func (jc *JobContext) WithContext(ctx context.Context) context.Context {
	return port.WithJobContext(ctx, jc)
}
