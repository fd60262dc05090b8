// Package factory turns a step definition into the controller that runs it.
package factory

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/batchlet"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/chunk"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/partition"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// StepFactory creates step controllers.
//
// The kind of controller is decided by the step's contents: a partition declaration
// wins over the chunk or batchlet it partitions. Inside a partition sub-job the
// definition no longer carries the partition, so the same factory builds the
// partition's chunk or batchlet controller.
type StepFactory interface {
	CreateStep(ctx context.Context, jc *runtime.JobContext, def *jsl.Step) (step.Controller, error)
}

// DefaultStepFactory is the default implementation of StepFactory.
type DefaultStepFactory struct{}

// NewDefaultStepFactory creates a new DefaultStepFactory.
func NewDefaultStepFactory() *DefaultStepFactory {
	return &DefaultStepFactory{}
}

// KindOf returns the controller kind def is run by.
func KindOf(def *jsl.Step) (step.Kind, error) {
	switch {
	case def.Partition != nil:
		return step.KindPartitioned, nil
	case def.Chunk != nil:
		return step.KindChunk, nil
	case def.Batchlet != nil:
		return step.KindBatchlet, nil
	}
	return "", exception.NewConfigurationError("step_factory", "step '%s' has neither a batchlet nor a chunk", def.ID)
}

// CreateStep builds the step listeners and the controller of def.
func (f *DefaultStepFactory) CreateStep(ctx context.Context, jc *runtime.JobContext, def *jsl.Step) (step.Controller, error) {
	kind, err := KindOf(def)
	if err != nil {
		return nil, err
	}
	listeners, err := step.BuildListeners(jc.WithContext(ctx), jc.Runtime().Artifacts, def.Listeners)
	if err != nil {
		return nil, err
	}

	var c step.Controller
	switch kind {
	case step.KindPartitioned:
		c = partition.New(jc, def, listeners)
	case step.KindChunk:
		c = chunk.New(jc, def, listeners)
	default:
		c = batchlet.New(jc, def, listeners)
	}
	logger.Debugf("%s step '%s' built (%d step listeners).", kind, def.ID, len(listeners.Step))
	return c, nil
}

var _ StepFactory = (*DefaultStepFactory)(nil)
