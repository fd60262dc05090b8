// Package split runs the flows of a split element concurrently, one sub-job per flow.
package split

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Controller runs a split. Its flows are rebuilt on every execution; only the steps
// inside them remember a previous completion.
type Controller struct {
	jc  *runtime.JobContext
	def *jsl.Split

	mu       sync.Mutex
	stopping bool
	running  map[string]struct{}

	lastRun   []*model.StepExecution
	ambiguous bool
}

var _ runtime.ElementController = (*Controller)(nil)

// New creates the controller of def.
func New(jc *runtime.JobContext, def *jsl.Split) *Controller {
	return &Controller{jc: jc, def: def, running: make(map[string]struct{})}
}

// Execute submits every flow, waits for all of them and aggregates their outcomes.
func (c *Controller) Execute(ctx context.Context) (model.ExecutionStatus, error) {
	rt := c.jc.Runtime()
	fanIn := runtime.NewFanIn(len(c.def.Flows))
	defer fanIn.Close()

	logger.Infof("Split '%s': starting %d flows.", c.def.ID, len(c.def.Flows))
	var errs *multierror.Error
	for _, f := range c.def.Flows {
		if c.isStopping() {
			break
		}
		sj := c.subJob(f)
		fut, err := rt.Submitter.SubmitSubJob(ctx, sj)
		if err != nil {
			errs = multierror.Append(errs, exception.NewBatchError(c.def.ID, "Failed to submit flow "+f.ID, err, false, false))
			break
		}
		c.track(ctx, sj.ID)
		fanIn.Track(fut, model.TopLevelPartition)
	}

	agg := model.NewExecutionStatus(model.NormalCompletion, "")
	terminated := 0
	for fanIn.Pending() > 0 {
		r, err := fanIn.Next(ctx)
		if err != nil {
			return model.NewExecutionStatus(model.ExceptionThrown, ""), multierror.Append(errs, err).ErrorOrNil()
		}
		if r.Kind != runtime.ReplyDone {
			continue
		}
		c.untrack(r.SubJobID)
		res := r.Result
		c.lastRun = append(c.lastRun, res.LastStepExecutions...)
		st := res.ExecutionStatus
		if res.Err != nil {
			errs = multierror.Append(errs, exception.NewBatchError(c.def.ID, "flow sub-job "+r.SubJobID+" failed", res.Err, false, false))
			st = model.NewExecutionStatus(model.ExceptionThrown, res.ExitStatus)
		}
		logger.Debugf("Split '%s': sub-job %s finished with %s.", c.def.ID, r.SubJobID, st)
		if st.IsTerminating() {
			terminated++
			agg = Aggregate(agg, st)
		}
	}

	if terminated > 1 {
		c.ambiguous = true
		logger.Warnf("Split '%s': %d flows ended the job; the outcome %s was chosen by precedence.", c.def.ID, terminated, agg)
	}
	if agg.IsTerminating() && agg.ExitStatus != "" {
		c.jc.SetExitStatus(agg.ExitStatus)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return model.NewExecutionStatus(model.ExceptionThrown, agg.ExitStatus), err
	}
	logger.Infof("Split '%s' finished: %s.", c.def.ID, agg)
	return agg, nil
}

// Aggregate folds the terminating status next of one flow into the outcome so far.
// EXCEPTION_THROWN and JSL_FAIL override everything and each other. A stop
// overrides an end but not a failure. An end overrides nothing.
func Aggregate(current, next model.ExecutionStatus) model.ExecutionStatus {
	if rank(next.Status) >= rank(current.Status) {
		return next
	}
	return current
}

func rank(s model.ExtendedBatchStatus) int {
	switch s {
	case model.ExceptionThrown, model.JSLFail:
		return 3
	case model.JSLStop, model.JobOperatorStopping:
		return 2
	case model.JSLEnd:
		return 1
	}
	return 0
}

// Ambiguous reports whether more than one flow ended the job in the last execution.
func (c *Controller) Ambiguous() bool { return c.ambiguous }

func (c *Controller) subJob(f *jsl.Flow) *runtime.SubJob {
	flow := f.Clone()
	flow.Next = ""
	flow.Transitions = nil
	return &runtime.SubJob{
		ID:     fmt.Sprintf("%s:%s:%s", c.jc.RootExecutionID(), c.def.ID, f.ID),
		Kind:   runtime.SubJobSplitFlow,
		Parent: c.jc,
		Job: &jsl.Job{
			ID:         c.jc.JobName(),
			Properties: c.jc.Properties(),
			Elements:   jsl.Elements{flow},
		},
		PartitionIndex: model.TopLevelPartition,
	}
}

// Stop stops every running flow. A flow that finished meanwhile is not an error.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopping = true
	ids := make([]string, 0, len(c.running))
	for id := range c.running {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var errs *multierror.Error
	for _, id := range ids {
		if err := c.jc.Runtime().Submitter.StopSubJob(ctx, id); err != nil && !errors.Is(err, runtime.ErrJobNotRunning) {
			errs = multierror.Append(errs, exception.NewBatchError(c.def.ID, "Failed to stop flow sub-job "+id, err, false, false))
		}
	}
	return errs.ErrorOrNil()
}

// LastRunStepExecutions returns the last step execution of each flow.
func (c *Controller) LastRunStepExecutions() []*model.StepExecution { return c.lastRun }

func (c *Controller) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping || c.jc.IsStopping()
}

func (c *Controller) track(ctx context.Context, id string) {
	c.mu.Lock()
	c.running[id] = struct{}{}
	stopping := c.stopping
	c.mu.Unlock()
	if stopping {
		if err := c.jc.Runtime().Submitter.StopSubJob(ctx, id); err != nil && !errors.Is(err, runtime.ErrJobNotRunning) {
			logger.Warnf("Split '%s': failed to stop sub-job %s: %v", c.def.ID, id, err)
		}
	}
}

func (c *Controller) untrack(id string) {
	c.mu.Lock()
	delete(c.running, id)
	c.mu.Unlock()
}
