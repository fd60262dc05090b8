// Package batchlet runs a step whose body is a single Batchlet call.
package batchlet

import (
	"context"
	"sync"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// BatchletStep is the CoreStep of a batchlet step.
type BatchletStep struct {
	jc  *runtime.JobContext
	def *jsl.Step

	// mu orders "about to process" against "stop requested".
	mu            sync.Mutex
	stopRequested bool
	batchlet      port.Batchlet
}

var _ step.CoreStep = (*BatchletStep)(nil)

// New creates the controller of a batchlet step.
func New(jc *runtime.JobContext, def *jsl.Step, listeners *step.Listeners) *step.Lifecycle {
	return step.NewLifecycle(jc, def, &BatchletStep{jc: jc, def: def}, listeners)
}

func (s *BatchletStep) Kind() step.Kind { return step.KindBatchlet }

func (s *BatchletStep) InvokePreArtifacts(context.Context, *runtime.StepContext) error { return nil }

// InvokeCore calls Batchlet.Process unless a stop was already requested. The returned
// string is the default exit status.
func (s *BatchletStep) InvokeCore(ctx context.Context, sc *runtime.StepContext) (string, error) {
	b, err := step.CreateArtifact[port.Batchlet](ctx, s.jc.Runtime().Artifacts, s.def.Batchlet)
	if err != nil {
		return "", err
	}
	collector, err := step.NewPartitionCollector(ctx, s.jc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopRequested || sc.IsStopping() {
		s.mu.Unlock()
		logger.Infof("BatchletStep '%s': stop requested before processing; batchlet not invoked.", s.def.ID)
		sc.RequestStop()
		return "", nil
	}
	s.batchlet = b
	s.mu.Unlock()

	exit, err := b.Process(ctx)
	if err != nil {
		return exit, exception.NewBatchError(s.def.ID, "Batchlet.Process failed", err, false, false)
	}
	if err := collector.Collect(ctx); err != nil {
		return exit, err
	}
	logger.Debugf("BatchletStep '%s' processed. Returned exit status: '%s'", s.def.ID, exit)
	return exit, nil
}

func (s *BatchletStep) InvokePostArtifacts(context.Context, *runtime.StepContext) error { return nil }

func (s *BatchletStep) PersistStepExecution(ctx context.Context, sc *runtime.StepContext) error {
	return step.PersistStepExecution(ctx, sc)
}

// Stop forwards the stop request to the batchlet if it is processing, otherwise it
// prevents processing from starting.
func (s *BatchletStep) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopRequested = true
	b := s.batchlet
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	logger.Infof("BatchletStep '%s': forwarding stop to the batchlet.", s.def.ID)
	return b.Stop(ctx)
}
