// Package partition runs a step as N concurrent partitions, each a sub-job holding a
// clone of the step, and aggregates their results through the analyzer and reducer.
package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/support/expression"
	"github.com/tigerroll/jbatch/pkg/batch/engine/checkpoint"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// PartitionStep is the CoreStep of a partitioned step. The step's own StepExecution
// only aggregates the metrics of its partitions.
type PartitionStep struct {
	jc  *runtime.JobContext
	def *jsl.Step

	analyzer port.PartitionAnalyzer
	reducer  port.PartitionReducer

	mu       sync.Mutex
	stopping bool
	// running holds the ids of the submitted sub-jobs that have not reported done.
	running map[string]struct{}
}

var _ step.CoreStep = (*PartitionStep)(nil)

// New creates the controller of a partitioned step.
func New(jc *runtime.JobContext, def *jsl.Step, listeners *step.Listeners) *step.Lifecycle {
	return step.NewLifecycle(jc, def, &PartitionStep{jc: jc, def: def, running: make(map[string]struct{})}, listeners)
}

func (s *PartitionStep) Kind() step.Kind { return step.KindPartitioned }

// InvokePreArtifacts creates the analyzer and reducer and begins the partitioned step.
func (s *PartitionStep) InvokePreArtifacts(ctx context.Context, sc *runtime.StepContext) error {
	factory := s.jc.Runtime().Artifacts
	p := s.def.Partition
	var err error
	if p.Analyzer != nil {
		if s.analyzer, err = step.CreateArtifact[port.PartitionAnalyzer](ctx, factory, p.Analyzer); err != nil {
			return err
		}
	}
	if p.Reducer != nil {
		if s.reducer, err = step.CreateArtifact[port.PartitionReducer](ctx, factory, p.Reducer); err != nil {
			return err
		}
		if err := s.reducer.BeginPartitionedStep(ctx); err != nil {
			return exception.NewBatchError(s.def.ID, "PartitionReducer.BeginPartitionedStep failed", err, false, false)
		}
	}
	return nil
}

// InvokeCore builds the partition plan, runs every partition and waits for all of them.
// Failures of partitions and of the analyzer are reported once, after the last
// partition finished.
func (s *PartitionStep) InvokeCore(ctx context.Context, sc *runtime.StepContext) (string, error) {
	plan, err := s.buildPlan(ctx)
	if err != nil {
		return "", err
	}
	execType, err := s.executionType(sc, plan)
	if err != nil {
		return "", err
	}
	logger.Infof("PartitionStep '%s': %s with %d partitions on %d threads.", s.def.ID, execType, plan.Partitions, plan.EffectiveThreads())

	if err := s.prepare(ctx, sc, plan, execType); err != nil {
		return "", err
	}

	stopped, err := s.runPartitions(ctx, sc, plan)
	switch {
	case err != nil:
		return "", err
	case stopped:
		logger.Infof("PartitionStep '%s': at least one partition stopped.", s.def.ID)
		sc.RequestStop()
	}
	return "", nil
}

// buildPlan returns the plan of the mapper, or the static plan of the definition.
func (s *PartitionStep) buildPlan(ctx context.Context) (*model.PartitionPlan, error) {
	p := s.def.Partition
	var plan *model.PartitionPlan
	if p.Mapper != nil {
		mapper, err := step.CreateArtifact[port.PartitionMapper](ctx, s.jc.Runtime().Artifacts, p.Mapper)
		if err != nil {
			return nil, err
		}
		if plan, err = mapper.MapPartitions(ctx); err != nil {
			return nil, exception.NewBatchError(s.def.ID, "PartitionMapper.MapPartitions failed", err, false, false)
		}
		if plan == nil {
			return nil, exception.NewConfigurationError(s.def.ID, "partition mapper '%s' returned no plan", p.Mapper.Ref)
		}
	} else {
		plan = &model.PartitionPlan{
			Partitions: p.Plan.Partitions,
			Threads:    p.Plan.Threads,
			Properties: p.Plan.Properties,
		}
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PartitionStep) executionType(sc *runtime.StepContext, plan *model.PartitionPlan) (model.PartitionExecutionType, error) {
	previous := sc.StepStatus().NumPartitions
	switch {
	case sc.RestartAfterCompletion():
		return model.PartitionRestartAfterCompletion, nil
	case previous == 0:
		return model.PartitionStart, nil
	case plan.Override:
		return model.PartitionRestartOverride, nil
	case previous != plan.Partitions:
		return 0, exception.NewConfigurationError(s.def.ID,
			"step '%s' ran with %d partitions and is restarted with %d without override", s.def.ID, previous, plan.Partitions)
	default:
		return model.PartitionRestartNormal, nil
	}
}

// prepare discards the results of earlier partitions when the plan starts fresh and
// records the partition count.
func (s *PartitionStep) prepare(ctx context.Context, sc *runtime.StepContext, plan *model.PartitionPlan, execType model.PartitionExecutionType) error {
	repo := s.jc.Runtime().Repository
	status := sc.StepStatus()

	if execType == model.PartitionRestartOverride || execType == model.PartitionRestartAfterCompletion {
		if execType == model.PartitionRestartOverride && s.reducer != nil {
			if err := s.reducer.RollbackPartitionedStep(ctx); err != nil {
				return exception.NewBatchError(s.def.ID, "PartitionReducer.RollbackPartitionedStep failed", err, false, false)
			}
		}
		for i := 0; i < max(status.NumPartitions, plan.Partitions); i++ {
			key := model.PartitionStepKey(s.def.ID, i)
			if err := repo.DeleteStepStatus(ctx, s.jc.InstanceID(), key); err != nil {
				return exception.NewBatchError(s.def.ID, "Failed to delete partition StepStatus", err, false, false)
			}
			if err := checkpoint.Delete(ctx, repo, s.jc.InstanceID(), key); err != nil {
				return exception.NewBatchError(s.def.ID, "Failed to delete partition checkpoint", err, false, false)
			}
		}
		logger.Debugf("PartitionStep '%s': discarded the results of %d earlier partitions.", s.def.ID, status.NumPartitions)
	}

	if status.NumPartitions != plan.Partitions {
		status.NumPartitions = plan.Partitions
		if err := repo.UpdateStepStatus(ctx, status); err != nil {
			return exception.NewBatchError(s.def.ID, "Failed to record the partition count", err, false, false)
		}
	}
	return nil
}

// subJob builds the sub-job of partition i: a one-step job holding the step resolved
// against the partition's properties.
func (s *PartitionStep) subJob(sc *runtime.StepContext, plan *model.PartitionPlan, i int, sink runtime.ReplySink) *runtime.SubJob {
	resolved := expression.ResolveStepForPartition(s.def, s.jc.Properties(), s.jc.Parameters(), plan.PropertiesFor(i))
	collector := resolved.Partition.Collector
	resolved.Partition = nil
	resolved.Next = ""
	resolved.Transitions = nil
	// Completed partitions are never rerun on a normal restart.
	resolved.AllowStartIfComplete = false

	return &runtime.SubJob{
		ID:     fmt.Sprintf("%s:%d", sc.StepExecutionID(), i),
		Kind:   runtime.SubJobPartition,
		Parent: s.jc,
		Job: &jsl.Job{
			ID:         s.jc.JobName(),
			Properties: s.jc.Properties(),
			Elements:   jsl.Elements{resolved},
		},
		PartitionIndex:        i,
		ParentStepExecutionID: sc.StepExecutionID(),
		Collector:             collector,
		Sink:                  sink,
	}
}

// runPartitions submits at most EffectiveThreads partitions at a time and drains the
// fan-in until every submitted partition reported done. It reports whether a
// partition stopped, or the deferred failures of partitions and analyzer.
func (s *PartitionStep) runPartitions(ctx context.Context, sc *runtime.StepContext, plan *model.PartitionPlan) (bool, error) {
	rt := s.jc.Runtime()
	threads := plan.EffectiveThreads()
	fanIn := runtime.NewFanIn(threads)
	defer fanIn.Close()

	var errs *multierror.Error
	stopped := false
	next := 0
	inFlight := 0

	for {
		for next < plan.Partitions && inFlight < threads && !s.isStopping(sc) {
			sj := s.subJob(sc, plan, next, fanIn)
			fut, err := rt.Submitter.SubmitSubJob(ctx, sj)
			if err != nil {
				errs = multierror.Append(errs, exception.NewBatchError(s.def.ID, fmt.Sprintf("Failed to submit partition %d", next), err, false, false))
				s.markStopping()
				break
			}
			s.track(ctx, sj.ID)
			fanIn.Track(fut, next)
			rt.Tracer.RecordEvent(ctx, "partition.submitted", map[string]string{"step": s.def.ID, "partition": fmt.Sprint(next)})
			next++
			inFlight++
		}
		if fanIn.Pending() == 0 {
			break
		}

		r, err := fanIn.Next(ctx)
		if err != nil {
			// The step's context ended; partitions still running are abandoned.
			return stopped, multierror.Append(errs, err).ErrorOrNil()
		}
		switch r.Kind {
		case runtime.ReplyData:
			if s.analyzer != nil {
				if err := s.analyzer.AnalyzeCollectorData(ctx, r.Data); err != nil {
					logger.Errorf("PartitionStep '%s': PartitionAnalyzer.AnalyzeCollectorData failed: %v", s.def.ID, err)
					errs = multierror.Append(errs, exception.NewBatchError(s.def.ID, "PartitionAnalyzer.AnalyzeCollectorData failed", err, false, false))
				}
			}
		case runtime.ReplyStatus:
			if s.analyzer != nil {
				if err := s.analyzer.AnalyzeStatus(ctx, r.BatchStatus, r.ExitStatus); err != nil {
					logger.Errorf("PartitionStep '%s': PartitionAnalyzer.AnalyzeStatus failed: %v", s.def.ID, err)
					errs = multierror.Append(errs, exception.NewBatchError(s.def.ID, "PartitionAnalyzer.AnalyzeStatus failed", err, false, false))
				}
			}
		case runtime.ReplyDone:
			inFlight--
			s.untrack(r.SubJobID)
			res := r.Result
			logger.Debugf("PartitionStep '%s': partition %d finished with %s (exit status: %s).", s.def.ID, r.PartitionIndex, res.BatchStatus, res.ExitStatus)
			switch {
			case res.Err != nil:
				errs = multierror.Append(errs, exception.NewBatchError(s.def.ID, fmt.Sprintf("partition %d failed", r.PartitionIndex), res.Err, false, false))
			case res.BatchStatus == model.BatchStatusFailed:
				errs = multierror.Append(errs, exception.NewBatchErrorf(s.def.ID, "partition %d ended FAILED (exit status: %s)", r.PartitionIndex, res.ExitStatus))
			case res.BatchStatus == model.BatchStatusStopped:
				stopped = true
			}
		}
	}

	if next < plan.Partitions {
		logger.Infof("PartitionStep '%s': %d of %d partitions were not started.", s.def.ID, plan.Partitions-next, plan.Partitions)
		stopped = true
	}
	return stopped, errs.ErrorOrNil()
}

// InvokePostArtifacts ends the partitioned step's unit of work: rollback when the step
// failed or stopped, otherwise before-completion. After-completion always runs.
func (s *PartitionStep) InvokePostArtifacts(ctx context.Context, sc *runtime.StepContext) error {
	if s.reducer == nil {
		return nil
	}
	outcome := port.PartitionCommit
	switch sc.BatchStatus() {
	case model.BatchStatusFailed, model.BatchStatusStopping, model.BatchStatusStopped:
		outcome = port.PartitionRollback
	default:
		if err := s.reducer.BeforePartitionedStepCompletion(ctx); err != nil {
			logger.Errorf("PartitionStep '%s': PartitionReducer.BeforePartitionedStepCompletion failed: %v", s.def.ID, err)
			sc.Fail(exception.NewBatchError(s.def.ID, "PartitionReducer.BeforePartitionedStepCompletion failed", err, false, false))
			outcome = port.PartitionRollback
		}
	}
	if outcome == port.PartitionRollback {
		if err := s.reducer.RollbackPartitionedStep(ctx); err != nil {
			return exception.NewBatchError(s.def.ID, "PartitionReducer.RollbackPartitionedStep failed", err, false, false)
		}
	}
	if err := s.reducer.AfterPartitionedStepCompletion(ctx, outcome); err != nil {
		return exception.NewBatchError(s.def.ID, "PartitionReducer.AfterPartitionedStepCompletion failed", err, false, false)
	}
	return nil
}

// PersistStepExecution stores the step with the metrics summed over its partitions.
func (s *PartitionStep) PersistStepExecution(ctx context.Context, sc *runtime.StepContext) error {
	return sc.Persist(ctx, s.jc.Runtime().Repository.UpdateStepExecutionWithAggregate)
}

// Stop prevents further partitions from starting and stops the running ones. A
// partition that finished meanwhile is not an error.
func (s *PartitionStep) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs *multierror.Error
	for _, id := range ids {
		err := s.jc.Runtime().Submitter.StopSubJob(ctx, id)
		switch {
		case err == nil:
			logger.Debugf("PartitionStep '%s': stop forwarded to sub-job %s.", s.def.ID, id)
		case errors.Is(err, runtime.ErrJobNotRunning):
			logger.Debugf("PartitionStep '%s': sub-job %s already finished.", s.def.ID, id)
		default:
			errs = multierror.Append(errs, exception.NewBatchError(s.def.ID, "Failed to stop partition sub-job "+id, err, false, false))
		}
	}
	return errs.ErrorOrNil()
}

func (s *PartitionStep) isStopping(sc *runtime.StepContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping || sc.IsStopping()
}

func (s *PartitionStep) markStopping() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
}

// track registers a submitted sub-job. A stop that arrived while it was being
// submitted is forwarded to it.
func (s *PartitionStep) track(ctx context.Context, id string) {
	s.mu.Lock()
	s.running[id] = struct{}{}
	stopping := s.stopping
	s.mu.Unlock()
	if !stopping {
		return
	}
	if err := s.jc.Runtime().Submitter.StopSubJob(ctx, id); err != nil && !errors.Is(err, runtime.ErrJobNotRunning) {
		logger.Warnf("PartitionStep '%s': failed to stop sub-job %s: %v", s.def.ID, id, err)
	}
}

func (s *PartitionStep) untrack(id string) {
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}
