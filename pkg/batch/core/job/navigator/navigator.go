// Package navigator resolves the first element of an execution-element graph and the
// transition taken after each element.
package navigator

import (
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// Transition is the outcome of Next. At most one of Element and Control is set.
type Transition struct {
	// Element is the next element to execute.
	Element jsl.Element
	// Control is a matched end, fail or stop transition.
	Control *jsl.Transition
	// NoMatchAfterException is set when the element failed and no transition
	// matched its exit status.
	NoMatchAfterException bool
}

// IsFinal reports whether the walk ends normally after the current element.
func (t Transition) IsFinal() bool {
	return t.Element == nil && t.Control == nil && !t.NoMatchAfterException
}

// Navigator walks one level of the graph: a job's top-level elements or a flow's.
type Navigator struct {
	elements jsl.Elements
}

// New creates a Navigator over elements.
func New(elements jsl.Elements) *Navigator {
	return &Navigator{elements: elements}
}

// First returns the element the walk starts at: restartOn if set, otherwise the first
// element.
func (n *Navigator) First(restartOn string) (jsl.Element, error) {
	if len(n.elements) == 0 {
		return nil, exception.NewConfigurationError("navigator", "the execution-element graph is empty")
	}
	if restartOn == "" {
		return n.elements[0], nil
	}
	el, ok := n.elements.Find(restartOn)
	if !ok {
		return nil, exception.NewIllegalStateError("navigator", "restart position '%s' is not an element of this graph", restartOn)
	}
	return el, nil
}

// Next resolves the transition after current ended with status.
//
// Transition elements are tried in declaration order against the exit status; the
// first match wins. Without a match the next attribute applies, except after a
// failure, which only a matching transition element can route.
func (n *Navigator) Next(current jsl.Element, status model.ExecutionStatus) (Transition, error) {
	failed := status.Status == model.ExceptionThrown
	for _, t := range current.TransitionList() {
		if !jsl.MatchExitStatus(t.On, status.ExitStatus) {
			continue
		}
		if t.IsTerminating() {
			return Transition{Control: &t}, nil
		}
		return n.to(current, t.To)
	}
	if failed {
		return Transition{NoMatchAfterException: true}, nil
	}
	if next := current.NextID(); next != "" {
		return n.to(current, next)
	}
	return Transition{}, nil
}

func (n *Navigator) to(current jsl.Element, id string) (Transition, error) {
	el, ok := n.elements.Find(id)
	if !ok {
		return Transition{}, exception.NewConfigurationError("navigator",
			"element '%s' transitions to '%s', which is not in the same flow", current.ElementID(), id)
	}
	return Transition{Element: el}, nil
}
