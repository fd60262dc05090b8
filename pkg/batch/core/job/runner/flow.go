package runner

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// flowController walks the elements of a flow on the job's goroutine.
type flowController struct {
	parent *Transitioner
	def    *jsl.Flow
	// from is the position in the shared execution record where this flow began.
	from int
}

var _ runtime.ElementController = (*flowController)(nil)

func newFlowController(parent *Transitioner, def *jsl.Flow) *flowController {
	return &flowController{parent: parent, def: def}
}

func (f *flowController) Execute(ctx context.Context) (model.ExecutionStatus, error) {
	p := f.parent
	f.from = len(p.runs.order)
	logger.Debugf("Job '%s': entering flow '%s'.", p.jc.JobName(), f.def.ID)
	return newTransitioner(p.jc, p.steps, f.def.Elements, "", p.runs).Run(ctx)
}

// Stop does nothing: the steps of the flow install themselves in the job's stoppable
// slot while they run.
func (f *flowController) Stop(context.Context) error { return nil }

// LastRunStepExecutions returns the execution of the structurally last step of the
// flow, or of the step the flow executed last if that step did not run.
func (f *flowController) LastRunStepExecutions() []*model.StepExecution {
	runs := f.parent.runs
	if last := f.def.LastStep(); last != nil {
		if ses, ok := runs.byStep[last.ID]; ok {
			return ses
		}
	}
	if len(runs.order) > f.from {
		id := runs.order[len(runs.order)-1]
		logger.Warnf("Job '%s': the last step of flow '%s' did not run; passing on the executions of step '%s'.", f.parent.jc.JobName(), f.def.ID, id)
		return runs.byStep[id]
	}
	return nil
}
