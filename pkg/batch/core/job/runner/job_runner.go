// Package runner drives a job or sub-job over its execution-element graph: the
// Transitioner walks the graph, flows are walked inline, and JobRunner wraps the
// walk in the job's status lifecycle.
package runner

import (
	"context"
	"fmt"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/factory"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// JobRunner runs top-level jobs and sub-jobs on the calling goroutine.
type JobRunner struct {
	steps factory.StepFactory
}

// NewJobRunner creates a JobRunner building step controllers with steps.
func NewJobRunner(steps factory.StepFactory) *JobRunner {
	return &JobRunner{steps: steps}
}

// RunJob runs the top-level job of jc to its end and persists the final JobExecution.
// Failures are recorded on the execution; the returned error is set only when the
// final state could not be persisted.
func (r *JobRunner) RunJob(ctx context.Context, jc *runtime.JobContext) error {
	rt := jc.Runtime()
	je := jc.Execution()

	ctx, endSpan := rt.Tracer.StartJobSpan(ctx, je)
	defer endSpan()
	actx := jc.WithContext(ctx)

	if !jc.CompareAndSetBatchStatus(model.BatchStatusStarting, model.BatchStatusStarted) {
		logger.Infof("Job '%s' (Execution ID: %s) was stopped before it started.", jc.JobName(), je.ID)
		jc.SetBatchStatus(model.BatchStatusStopped)
		return r.finishJob(actx, jc, nil)
	}
	if err := je.MarkStarted(); err != nil {
		r.failJob(actx, jc, err)
		return r.finishJob(actx, jc, nil)
	}
	if err := rt.Repository.UpdateJobExecution(ctx, je); err != nil {
		r.failJob(actx, jc, exception.NewBatchError(jc.JobName(), "Failed to update JobExecution status to STARTED", err, false, false))
		return r.finishJob(actx, jc, nil)
	}
	rt.Recorder.RecordJobStart(ctx, je)
	logger.Infof("Starting Job '%s' (Execution ID: %s, Parameters: %s).", jc.JobName(), je.ID, je.Parameters.Masked(rt.MaskedParameterKeys))

	listeners, err := buildJobListeners(actx, jc)
	if err != nil {
		r.failJob(actx, jc, err)
		return r.finishJob(actx, jc, nil)
	}
	for _, l := range listeners {
		if err := guard(func() error { return l.BeforeJob(actx) }); err != nil {
			r.failJob(actx, jc, exception.NewBatchError(jc.JobName(), "JobListener.BeforeJob failed", err, false, false))
			return r.finishJob(actx, jc, listeners)
		}
	}

	t := newTransitioner(jc, r.steps, jc.Job().Elements, jc.RestartAt(), newExecutions())
	status, err := walk(actx, t)
	switch {
	case err != nil:
		r.failJob(actx, jc, err)
	case status.Status == model.JSLStop:
		if jc.CompareAndSetBatchStatus(model.BatchStatusStarted, model.BatchStatusStopping) {
			je.Status = model.BatchStatusStopping
		}
		je.RestartOn = status.RestartOn
		if err := rt.Repository.UpdateJobExecution(ctx, je); err != nil {
			logger.Errorf("Job '%s': failed to persist STOPPING (restart on '%s'): %v", jc.JobName(), status.RestartOn, err)
		}
	case status.Status == model.JSLFail:
		r.failJob(actx, jc, exception.NewBatchErrorf(jc.JobName(), "job failed by a fail transition (exit status: %s)", status.ExitStatus))
	case status.Status == model.ExceptionThrown:
		r.failJob(actx, jc, nil)
	}
	return r.finishJob(actx, jc, listeners)
}

// finishJob runs the after-job listeners, applies the final status and persists it.
func (r *JobRunner) finishJob(ctx context.Context, jc *runtime.JobContext, listeners []port.JobListener) error {
	rt := jc.Runtime()
	je := jc.Execution()

	for _, l := range listeners {
		if err := guard(func() error { return l.AfterJob(ctx) }); err != nil {
			r.failJob(ctx, jc, exception.NewBatchError(jc.JobName(), "JobListener.AfterJob failed", err, false, false))
		}
	}

	switch s := jc.BatchStatus(); s {
	case model.BatchStatusStarted:
		jc.SetBatchStatus(model.BatchStatusCompleted)
	case model.BatchStatusStopping:
		jc.SetBatchStatus(model.BatchStatusStopped)
	case model.BatchStatusFailed, model.BatchStatusStopped:
	default:
		logger.Errorf("Job '%s' (Execution ID: %s) ended in unexpected status %s; marking it FAILED.", jc.JobName(), je.ID, s)
		je.AddFailure(exception.NewIllegalStateError(jc.JobName(), "job ended in unexpected status %s", s))
		jc.SetBatchStatus(model.BatchStatusFailed)
	}
	if jc.ExitStatus() == "" {
		jc.SetExitStatus(jc.BatchStatus().String())
	}

	je.Status = jc.BatchStatus()
	je.ExitStatus = jc.ExitStatus()
	if je.RestartOn == "" {
		je.RestartOn = jc.RestartOn()
	}
	je.MarkEnded()
	if err := rt.Repository.UpdateJobExecution(ctx, je); err != nil {
		logger.Errorf("Job '%s': failed to persist the final JobExecution (ID: %s) in status %s; the job tables may be inconsistent: %v",
			jc.JobName(), je.ID, je.Status, err)
		return exception.NewBatchError(jc.JobName(), "Failed to update final JobExecution state", err, false, false)
	}
	rt.Recorder.RecordJobEnd(ctx, je)
	logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s", jc.JobName(), je.ID, je.Status, je.ExitStatus)
	return nil
}

// failJob marks the job FAILED and records err, if any.
func (r *JobRunner) failJob(ctx context.Context, jc *runtime.JobContext, err error) {
	if err != nil {
		logger.Errorf("Job '%s' failed: %v", jc.JobName(), err)
		jc.Runtime().Tracer.RecordError(ctx, "job_runner", err)
		if je := jc.Execution(); je != nil {
			je.AddFailure(err)
		}
	}
	jc.SetBatchStatus(model.BatchStatusFailed)
}

// RunSubJob runs a partition or split-flow sub-job. Its status lives only in memory
// and is returned to the parent controller.
func (r *JobRunner) RunSubJob(ctx context.Context, jc *runtime.JobContext) runtime.SubJobResult {
	res := runtime.SubJobResult{PartitionIndex: jc.PartitionIndex()}
	if !jc.CompareAndSetBatchStatus(model.BatchStatusStarting, model.BatchStatusStarted) {
		jc.SetBatchStatus(model.BatchStatusStopped)
		res.ExecutionStatus = model.NewExecutionStatus(model.JobOperatorStopping, "")
		res.BatchStatus = model.BatchStatusStopped
		res.ExitStatus = model.BatchStatusStopped.String()
		return res
	}

	t := newTransitioner(jc, r.steps, jc.Job().Elements, jc.RestartAt(), newExecutions())
	status, err := walk(jc.WithContext(ctx), t)
	res.ExecutionStatus = status
	res.LastStepExecutions = t.LastRunStepExecutions()

	switch {
	case err != nil:
		logger.Errorf("Sub-job %s of job '%s' failed: %v", jc.SubJob().ID, jc.JobName(), err)
		res.Err = err
		jc.SetBatchStatus(model.BatchStatusFailed)
	case status.Status == model.ExceptionThrown, status.Status == model.JSLFail:
		jc.SetBatchStatus(model.BatchStatusFailed)
	case status.Status == model.JSLStop, status.Status == model.JobOperatorStopping:
		jc.SetBatchStatus(model.BatchStatusStopped)
	default:
		jc.CompareAndSetBatchStatus(model.BatchStatusStarted, model.BatchStatusCompleted)
		if jc.IsStopping() {
			jc.SetBatchStatus(model.BatchStatusStopped)
		}
	}
	res.BatchStatus = jc.BatchStatus()
	switch {
	case jc.ExitStatus() != "":
		res.ExitStatus = jc.ExitStatus()
	case status.ExitStatus != "":
		res.ExitStatus = status.ExitStatus
	default:
		res.ExitStatus = res.BatchStatus.String()
	}
	return res
}

// walk runs t and turns a panic into an error.
func walk(ctx context.Context, t *Transitioner) (status model.ExecutionStatus, err error) {
	err = guard(func() error {
		var werr error
		status, werr = t.Run(ctx)
		return werr
	})
	return status, err
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewBatchErrorf("job_runner", "panic: %v", r)
		}
	}()
	return fn()
}

func buildJobListeners(ctx context.Context, jc *runtime.JobContext) ([]port.JobListener, error) {
	refs := jc.Job().Listeners
	out := make([]port.JobListener, 0, len(refs))
	for i := range refs {
		a, err := jc.Runtime().Artifacts.Create(ctx, refs[i].Ref, refs[i].Properties)
		if err != nil {
			return nil, exception.NewBatchError(jc.JobName(), fmt.Sprintf("Failed to create job listener '%s'", refs[i].Ref), err, false, false)
		}
		l, ok := a.(port.JobListener)
		if !ok {
			return nil, exception.NewConfigurationError(jc.JobName(), "job listener '%s' (%T) does not implement port.JobListener", refs[i].Ref, a)
		}
		out = append(out, l)
	}
	return out, nil
}
