// Package decision runs decision elements.
package decision

import (
	"context"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Controller runs a Decider over the step executions of the preceding element. The
// decider's result becomes the exit status of the element and of the job.
type Controller struct {
	jc       *runtime.JobContext
	def      *jsl.Decision
	previous []*model.StepExecution
}

var _ runtime.ElementController = (*Controller)(nil)

// New creates the controller of def. previous holds the last step executions of the
// element before the decision; it is empty when the walk starts at the decision.
func New(jc *runtime.JobContext, def *jsl.Decision, previous []*model.StepExecution) *Controller {
	return &Controller{jc: jc, def: def, previous: previous}
}

// Execute implements runtime.ElementController. A failing decider is reported as
// EXCEPTION_THROWN.
func (c *Controller) Execute(ctx context.Context) (model.ExecutionStatus, error) {
	rt := c.jc.Runtime()
	actx := c.jc.WithContext(ctx)
	ref := &jsl.ComponentRef{Ref: c.def.Ref, Properties: c.def.Properties}

	decider, err := step.CreateArtifact[port.Decider](actx, rt.Artifacts, ref)
	if err != nil {
		return c.failed(ctx, err), nil
	}
	exit, err := decider.Decide(actx, c.previous)
	if err != nil {
		return c.failed(ctx, exception.NewBatchError(c.def.ID, "Decider.Decide failed", err, false, false)), nil
	}
	logger.Infof("Decision '%s' decided exit status '%s' from %d step executions.", c.def.ID, exit, len(c.previous))
	c.jc.SetExitStatus(exit)
	return model.NewExecutionStatus(model.NormalCompletion, exit), nil
}

func (c *Controller) failed(ctx context.Context, err error) model.ExecutionStatus {
	logger.Errorf("Decision '%s' failed: %v", c.def.ID, err)
	c.jc.Runtime().Tracer.RecordError(ctx, c.def.ID, err)
	if je := c.jc.Execution(); je != nil {
		je.AddFailure(err)
	}
	return model.NewExecutionStatus(model.ExceptionThrown, "")
}

// Stop implements runtime.Stoppable. A decision is not interruptible.
func (c *Controller) Stop(context.Context) error { return nil }

// LastRunStepExecutions implements runtime.ElementController. A decision passes on
// the executions it received.
func (c *Controller) LastRunStepExecutions() []*model.StepExecution { return c.previous }
