package runtime

import (
	"context"
	"sync/atomic"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// Stoppable receives cooperative stop requests.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// ElementController executes one element of the execution-element graph.
type ElementController interface {
	Stoppable
	// Execute runs the element. The returned error is reserved for failures that must
	// fail the whole job; ordinary step failures are reported as EXCEPTION_THROWN.
	Execute(ctx context.Context) (model.ExecutionStatus, error)
	// LastRunStepExecutions returns the step executions a following decision receives.
	LastRunStepExecutions() []*model.StepExecution
}

type stoppableBox struct{ s Stoppable }

// StoppableSlot is the current stoppable controller of an executing graph walk.
//
// The executing goroutine sets it before invoking a controller and clears it afterwards;
// a stopping goroutine reads it. A stop that arrives just after the slot was cleared is a
// legal no-op, because the executing goroutine checks the job batch status before it
// dispatches the next element.
type StoppableSlot struct {
	current atomic.Pointer[stoppableBox]
}

// Set installs s as the current stoppable.
func (s *StoppableSlot) Set(st Stoppable) {
	s.current.Store(&stoppableBox{s: st})
}

// Clear removes the current stoppable.
func (s *StoppableSlot) Clear() {
	s.current.Store(nil)
}

// Stop forwards a stop request to the current stoppable, if any.
func (s *StoppableSlot) Stop(ctx context.Context) error {
	box := s.current.Load()
	if box == nil {
		return nil
	}
	return box.s.Stop(ctx)
}
