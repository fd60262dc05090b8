package runner

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/decision"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/navigator"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/split"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/factory"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// executions records the step executions produced during one walk of a job graph,
// including the walks of its flows.
type executions struct {
	byStep map[string][]*model.StepExecution
	order  []string
}

func newExecutions() *executions {
	return &executions{byStep: make(map[string][]*model.StepExecution)}
}

func (e *executions) record(stepID string, ses []*model.StepExecution) {
	if len(ses) == 0 {
		return
	}
	e.byStep[stepID] = ses
	e.order = append(e.order, stepID)
}

// Transitioner walks one level of the execution-element graph, executing one element
// after the other until a transition ends the walk.
type Transitioner struct {
	jc        *runtime.JobContext
	steps     factory.StepFactory
	nav       *navigator.Navigator
	restartOn string
	runs      *executions

	last runtime.ElementController
}

func newTransitioner(jc *runtime.JobContext, steps factory.StepFactory, elements jsl.Elements, restartOn string, runs *executions) *Transitioner {
	return &Transitioner{
		jc:        jc,
		steps:     steps,
		nav:       navigator.New(elements),
		restartOn: restartOn,
		runs:      runs,
	}
}

// LastRunStepExecutions returns the step executions of the last element executed.
func (t *Transitioner) LastRunStepExecutions() []*model.StepExecution {
	if t.last == nil {
		return nil
	}
	return t.last.LastRunStepExecutions()
}

// Run executes the walk. The returned error is set only for failures that must fail
// the whole job.
func (t *Transitioner) Run(ctx context.Context) (model.ExecutionStatus, error) {
	el, err := t.nav.First(t.restartOn)
	if err != nil {
		return model.ExecutionStatus{}, err
	}

	var prev jsl.Element
	var prevCtl runtime.ElementController
	for {
		if t.jc.IsStopping() {
			logger.Infof("Job '%s': stop requested; element '%s' is not started.", t.jc.JobName(), el.ElementID())
			return model.NewExecutionStatus(model.JobOperatorStopping, t.jc.ExitStatus()), nil
		}

		ctl, err := t.controllerFor(ctx, el, prev, prevCtl)
		if err != nil {
			return model.ExecutionStatus{}, err
		}
		t.jc.Slot().Set(ctl)
		status, err := ctl.Execute(ctx)
		t.jc.Slot().Clear()
		t.last = ctl
		if err != nil {
			return status, err
		}
		if el.Kind() == jsl.KindStep {
			t.runs.record(el.ElementID(), ctl.LastRunStepExecutions())
		}
		logger.Debugf("Job '%s': %s '%s' ended with %s.", t.jc.JobName(), el.Kind(), el.ElementID(), status)

		switch {
		case status.Status == model.JobOperatorStopping:
			return status, nil
		case (el.Kind() == jsl.KindFlow || el.Kind() == jsl.KindSplit) && status.Status != model.NormalCompletion:
			return status, nil
		case el.Kind() == jsl.KindDecision && status.Status == model.ExceptionThrown:
			return status, nil
		case t.jc.BatchStatus() == model.BatchStatusFailed:
			return status, exception.NewIllegalStateError("transitioner",
				"job '%s' was marked FAILED while executing '%s'", t.jc.JobName(), el.ElementID())
		}

		tr, err := t.nav.Next(el, status)
		if err != nil {
			return model.ExecutionStatus{}, err
		}
		switch {
		case tr.NoMatchAfterException:
			return model.NewExecutionStatus(model.ExceptionThrown, status.ExitStatus), nil
		case tr.Control != nil:
			return t.terminate(el, tr.Control), nil
		case tr.Element != nil:
			prev, prevCtl, el = el, ctl, tr.Element
		default:
			return model.NewExecutionStatus(model.NormalCompletion, status.ExitStatus), nil
		}
	}
}

// terminate applies an end, fail or stop transition.
func (t *Transitioner) terminate(el jsl.Element, c *jsl.Transition) model.ExecutionStatus {
	if c.ExitStatus != "" {
		t.jc.SetExitStatus(c.ExitStatus)
	}
	switch {
	case c.Stop:
		logger.Infof("Job '%s': stop transition after '%s' (restart at '%s').", t.jc.JobName(), el.ElementID(), c.Restart)
		t.jc.SetRestartOn(c.Restart)
		return model.ExecutionStatus{Status: model.JSLStop, ExitStatus: c.ExitStatus, RestartOn: c.Restart}
	case c.End:
		logger.Infof("Job '%s': end transition after '%s'.", t.jc.JobName(), el.ElementID())
		return model.NewExecutionStatus(model.JSLEnd, c.ExitStatus)
	default:
		logger.Infof("Job '%s': fail transition after '%s'.", t.jc.JobName(), el.ElementID())
		return model.NewExecutionStatus(model.JSLFail, c.ExitStatus)
	}
}

func (t *Transitioner) controllerFor(ctx context.Context, el, prev jsl.Element, prevCtl runtime.ElementController) (runtime.ElementController, error) {
	switch e := el.(type) {
	case *jsl.Step:
		return t.steps.CreateStep(ctx, t.jc, e)
	case *jsl.Flow:
		return newFlowController(t, e), nil
	case *jsl.Split:
		return split.New(t.jc, e), nil
	case *jsl.Decision:
		if prev != nil && prev.Kind() == jsl.KindDecision {
			return nil, exception.NewConfigurationError("transitioner", "decision '%s' follows decision '%s'", e.ID, prev.ElementID())
		}
		var previous []*model.StepExecution
		if prevCtl != nil {
			previous = prevCtl.LastRunStepExecutions()
		}
		return decision.New(t.jc, e, previous), nil
	}
	return nil, exception.NewIllegalStateError("transitioner", "unknown element type %T (ID: %s)", el, el.ElementID())
}
