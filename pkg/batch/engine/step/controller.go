// Package step holds the lifecycle shared by every step controller: the StepStatus
// checks that decide whether a step runs, the StepExecution state machine, step
// listeners and final persistence. The chunk, batchlet and partition packages provide
// the CoreStep each controller runs inside this lifecycle.
package step

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
)

// Kind tags the concrete controller of a step.
type Kind string

const (
	KindBatchlet    Kind = "batchlet"
	KindChunk       Kind = "chunk"
	KindPartitioned Kind = "partitioned"
)

// Controller executes one jsl.Step.
type Controller interface {
	runtime.ElementController
	Kind() Kind
}

// CoreStep is the part of a step that differs between chunk, batchlet and partitioned
// steps. Every method runs on the step's own goroutine except Stop.
type CoreStep interface {
	Kind() Kind
	// InvokePreArtifacts runs after the step listeners' BeforeStep.
	InvokePreArtifacts(ctx context.Context, sc *runtime.StepContext) error
	// InvokeCore runs the step body and returns the default exit status, if any.
	InvokeCore(ctx context.Context, sc *runtime.StepContext) (string, error)
	// InvokePostArtifacts runs before the step listeners' AfterStep, even on failure.
	InvokePostArtifacts(ctx context.Context, sc *runtime.StepContext) error
	// PersistStepExecution writes the final StepExecution.
	PersistStepExecution(ctx context.Context, sc *runtime.StepContext) error
	// Stop asks the running body to stop. It may be called before InvokeCore.
	Stop(ctx context.Context) error
}
