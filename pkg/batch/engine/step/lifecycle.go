package step

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Lifecycle runs a CoreStep inside the StepStatus and StepExecution lifecycle.
type Lifecycle struct {
	jc        *runtime.JobContext
	step      *jsl.Step
	core      CoreStep
	listeners *Listeners

	current atomic.Pointer[runtime.StepContext]
	lastRun []*model.StepExecution
}

var _ Controller = (*Lifecycle)(nil)

// NewLifecycle creates the controller of step. listeners may be nil.
func NewLifecycle(jc *runtime.JobContext, step *jsl.Step, core CoreStep, listeners *Listeners) *Lifecycle {
	if listeners == nil {
		listeners = &Listeners{}
	}
	return &Lifecycle{jc: jc, step: step, core: core, listeners: listeners}
}

// Kind implements Controller.
func (l *Lifecycle) Kind() Kind { return l.core.Kind() }

// LastRunStepExecutions implements runtime.ElementController.
func (l *Lifecycle) LastRunStepExecutions() []*model.StepExecution { return l.lastRun }

// Stop moves the running step to STOPPING and forwards the request to the step body.
func (l *Lifecycle) Stop(ctx context.Context) error {
	if sc := l.current.Load(); sc != nil {
		sc.RequestStop()
	}
	return l.core.Stop(ctx)
}

// Execute implements runtime.ElementController. The returned error is set only when
// the step's state could not be read or persisted, or its start limit is exceeded.
func (l *Lifecycle) Execute(ctx context.Context) (model.ExecutionStatus, error) {
	jc := l.jc
	rt := jc.Runtime()
	stepKey := jc.StepKey(l.step.ID)

	status, restartAfterCompletion, skipStatus, err := l.prepareStepStatus(ctx, stepKey)
	if err != nil || skipStatus != nil {
		if skipStatus != nil {
			return *skipStatus, nil
		}
		return model.ExecutionStatus{}, err
	}

	se := model.NewStepExecution(jc.RootExecutionID(), jc.InstanceID(), l.step.ID, jc.PartitionIndex())
	if sj := jc.SubJob(); sj != nil && sj.Kind == runtime.SubJobPartition {
		se.ParentStepExecutionID = sj.ParentStepExecutionID
	}
	se.PersistentUserData = append([]byte(nil), status.PersistentUserData...)
	if err := rt.Repository.SaveStepExecution(ctx, se); err != nil {
		return model.ExecutionStatus{}, exception.NewBatchError(l.step.ID, "Failed to save StepExecution", err, false, false)
	}

	sc := runtime.NewStepContext(jc, l.step, se, status)
	sc.SetRestartAfterCompletion(restartAfterCompletion)
	l.current.Store(sc)
	defer l.current.Store(nil)

	if jc.IsStopping() {
		logger.Infof("Step '%s' not started: job is stopping.", stepKey)
		if err := sc.TransitionTo(model.BatchStatusStopped); err != nil {
			return model.ExecutionStatus{}, err
		}
		return l.finish(ctx, sc, "")
	}

	if err := sc.TransitionTo(model.BatchStatusStarted); err != nil {
		return model.ExecutionStatus{}, err
	}
	if err := sc.Persist(ctx, rt.Repository.UpdateStepExecution); err != nil {
		return model.ExecutionStatus{}, exception.NewBatchError(l.step.ID, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	spanCtx, endSpan := rt.Tracer.StartStepSpan(ctx, sc.Snapshot())
	defer endSpan()
	rt.Recorder.RecordStepStart(spanCtx, sc.Snapshot())
	logger.Infof("%s step '%s' started (StepExecution ID: %s, partition: %d).", l.core.Kind(), stepKey, se.ID, se.PartitionIndex)

	actx := sc.WithContext(spanCtx)
	defaultExit := l.runBody(actx, sc)
	l.runPost(actx, sc)

	return l.finish(spanCtx, sc, defaultExit)
}

// prepareStepStatus loads or creates the StepStatus of stepKey and decides whether the
// step runs. A non-nil ExecutionStatus means the step does not run.
func (l *Lifecycle) prepareStepStatus(ctx context.Context, stepKey string) (*model.StepStatus, bool, *model.ExecutionStatus, error) {
	jc := l.jc
	repo := jc.Runtime().Repository

	status, err := repo.FindStepStatus(ctx, jc.InstanceID(), stepKey)
	restartAfterCompletion := false
	switch {
	case errors.Is(err, repository.ErrStepStatusNotFound):
		status = model.NewStepStatus(jc.InstanceID(), stepKey)
		if err := repo.CreateStepStatus(ctx, status); err != nil {
			return nil, false, nil, exception.NewBatchError(l.step.ID, "Failed to create StepStatus", err, false, false)
		}
	case err != nil:
		return nil, false, nil, exception.NewBatchError(l.step.ID, "Failed to load StepStatus", err, false, false)
	case status.Status == model.BatchStatusAbandoned:
		return nil, false, nil, exception.NewIllegalStateError(l.step.ID, "step '%s' was abandoned and cannot run again", stepKey)
	case status.Status == model.BatchStatusCompleted && !l.step.AllowStartIfComplete:
		logger.Infof("Step '%s' already COMPLETED (exit status: %s); not running it again.", stepKey, status.ExitStatus)
		l.lastRun = l.loadLastRun(ctx, status)
		st := model.NewExecutionStatus(model.DoNotRun, status.ExitStatus)
		return status, false, &st, nil
	case status.Status == model.BatchStatusCompleted:
		logger.Infof("Step '%s' already COMPLETED; running again because allow-start-if-complete is set.", stepKey)
		restartAfterCompletion = true
	}

	if !jc.IsPartition() && l.step.StartLimit > 0 && status.StartCount >= l.step.StartLimit {
		return nil, false, nil, exception.NewConfigurationError(l.step.ID,
			"step '%s' reached its start limit of %d", stepKey, l.step.StartLimit)
	}
	status.StartCount++
	status.Status = model.BatchStatusStarting
	if err := repo.UpdateStepStatus(ctx, status); err != nil {
		return nil, false, nil, exception.NewBatchError(l.step.ID, "Failed to update StepStatus", err, false, false)
	}
	return status, restartAfterCompletion, nil, nil
}

func (l *Lifecycle) loadLastRun(ctx context.Context, status *model.StepStatus) []*model.StepExecution {
	if status.LastRunStepExecutionID == "" {
		return nil
	}
	se, err := l.jc.Runtime().Repository.FindStepExecutionByID(ctx, status.LastRunStepExecutionID)
	if err != nil {
		logger.Warnf("Step '%s': failed to load last StepExecution %s: %v", status.StepName, status.LastRunStepExecutionID, err)
		return nil
	}
	return []*model.StepExecution{se}
}

// runBody invokes BeforeStep, the pre-step artifacts and the step body. Failures are
// recorded on sc.
func (l *Lifecycle) runBody(ctx context.Context, sc *runtime.StepContext) string {
	for _, sl := range l.listeners.Step {
		if err := guard(func() error { return sl.BeforeStep(ctx) }); err != nil {
			l.fail(ctx, sc, "StepListener.BeforeStep failed", err)
			return ""
		}
	}
	if err := guard(func() error { return l.core.InvokePreArtifacts(ctx, sc) }); err != nil {
		l.fail(ctx, sc, "pre-step artifacts failed", err)
		return ""
	}
	var exit string
	err := guard(func() error {
		var err error
		exit, err = l.core.InvokeCore(ctx, sc)
		return err
	})
	if err != nil {
		l.fail(ctx, sc, "step body failed", err)
	}
	return exit
}

// runPost invokes the post-step artifacts and AfterStep, always.
func (l *Lifecycle) runPost(ctx context.Context, sc *runtime.StepContext) {
	if err := guard(func() error { return l.core.InvokePostArtifacts(ctx, sc) }); err != nil {
		l.fail(ctx, sc, "post-step artifacts failed", err)
	}
	for _, sl := range l.listeners.Step {
		if err := guard(func() error { return sl.AfterStep(ctx) }); err != nil {
			l.fail(ctx, sc, "StepListener.AfterStep failed", err)
		}
	}
}

func (l *Lifecycle) fail(ctx context.Context, sc *runtime.StepContext, what string, err error) {
	logger.Errorf("Step '%s': %s: %v", l.step.ID, what, err)
	l.jc.Runtime().Tracer.RecordError(ctx, l.step.ID, err)
	sc.Fail(err)
}

// finish applies the final status transition and the exit status default, persists
// the StepExecution and StepStatus, and reports the partition status.
func (l *Lifecycle) finish(ctx context.Context, sc *runtime.StepContext, defaultExit string) (model.ExecutionStatus, error) {
	jc := l.jc
	rt := jc.Runtime()

	var invariantErr error
	switch sc.BatchStatus() {
	case model.BatchStatusStarted:
		invariantErr = sc.TransitionTo(model.BatchStatusCompleted)
	case model.BatchStatusStopping:
		invariantErr = sc.TransitionTo(model.BatchStatusStopped)
	case model.BatchStatusFailed, model.BatchStatusStopped:
	default:
		invariantErr = exception.NewIllegalStateError(l.step.ID, "step '%s' ended in unexpected status %s", l.step.ID, sc.BatchStatus())
	}
	if invariantErr != nil {
		sc.Fail(invariantErr)
	}

	if sc.ExitStatus() == "" {
		if defaultExit != "" {
			sc.SetExitStatus(defaultExit)
		} else {
			sc.SetExitStatus(sc.BatchStatus().String())
		}
	}
	sc.MarkEnded()

	if err := l.core.PersistStepExecution(ctx, sc); err != nil {
		logger.Errorf("Step '%s': failed to persist final StepExecution (ID: %s) in status %s: %v", l.step.ID, sc.StepExecutionID(), sc.BatchStatus(), err)
		return model.ExecutionStatus{}, exception.NewBatchError(l.step.ID, "Failed to update final StepExecution state", err, false, false)
	}
	se := sc.Snapshot()

	status := sc.StepStatus()
	status.Status = se.Status
	status.ExitStatus = se.ExitStatus
	status.LastRunStepExecutionID = se.ID
	status.PersistentUserData = append([]byte(nil), se.PersistentUserData...)
	if err := rt.Repository.UpdateStepStatus(ctx, status); err != nil {
		return model.ExecutionStatus{}, exception.NewBatchError(l.step.ID, "Failed to update StepStatus", err, false, false)
	}

	rt.Recorder.RecordStepEnd(ctx, se)
	l.lastRun = []*model.StepExecution{se}

	if jc.IsPartition() {
		reply := runtime.Reply{
			Kind:           runtime.ReplyStatus,
			SubJobID:       jc.SubJob().ID,
			PartitionIndex: jc.PartitionIndex(),
			BatchStatus:    se.Status,
			ExitStatus:     se.ExitStatus,
		}
		if err := jc.SubJob().Sink.Send(ctx, reply); err != nil {
			logger.Warnf("Step '%s': failed to deliver partition %d status: %v", l.step.ID, jc.PartitionIndex(), err)
		}
	}

	logger.Infof("%s step '%s' finished. BatchStatus: %s, ExitStatus: %s", l.core.Kind(), jc.StepKey(l.step.ID), se.Status, se.ExitStatus)

	switch se.Status {
	case model.BatchStatusCompleted:
		return model.NewExecutionStatus(model.NormalCompletion, se.ExitStatus), nil
	case model.BatchStatusStopped:
		return model.NewExecutionStatus(model.JobOperatorStopping, se.ExitStatus), nil
	default:
		return model.NewExecutionStatus(model.ExceptionThrown, se.ExitStatus), nil
	}
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewBatchErrorf("step", "panic: %v", r)
		}
	}()
	return fn()
}

// PersistStepExecution is the default CoreStep persistence: a plain update.
func PersistStepExecution(ctx context.Context, sc *runtime.StepContext) error {
	return sc.Persist(ctx, sc.Job().Runtime().Repository.UpdateStepExecution)
}

// String implements fmt.Stringer.
func (l *Lifecycle) String() string {
	return fmt.Sprintf("%s step '%s'", l.core.Kind(), l.step.ID)
}
