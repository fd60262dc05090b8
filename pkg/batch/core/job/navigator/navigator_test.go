package navigator_test

import (
	"testing"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/navigator"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirst(t *testing.T) {
	a := &jsl.Step{ID: "a", Next: "b"}
	b := &jsl.Step{ID: "b"}
	n := navigator.New(jsl.Elements{a, b})

	el, err := n.First("")
	require.NoError(t, err)
	assert.Same(t, a, el)

	el, err = n.First("b")
	require.NoError(t, err)
	assert.Same(t, b, el)

	_, err = n.First("gone")
	assert.True(t, exception.IsIllegalState(err))

	_, err = navigator.New(nil).First("")
	assert.True(t, exception.IsConfigurationError(err))
}

func TestNext(t *testing.T) {
	b := &jsl.Step{ID: "b"}
	c := &jsl.Step{ID: "c"}
	d1 := &jsl.Decision{ID: "d1", Transitions: []jsl.Transition{{On: "*", To: "d2"}}}
	d2 := &jsl.Decision{ID: "d2"}
	a := &jsl.Step{ID: "a", Next: "b", Transitions: []jsl.Transition{
		{On: "SKIP_*", To: "c"},
		{On: "HALT", Stop: true, Restart: "b"},
		{On: "GIVE_UP", Fail: true, ExitStatus: "BAD"},
		{On: "*_DONE", End: true},
		{On: "MISSING", To: "nowhere"},
	}}
	n := navigator.New(jsl.Elements{a, b, c, d1, d2})

	tests := []struct {
		name    string
		current jsl.Element
		status  model.ExecutionStatus
		element jsl.Element
		control string
		noMatch bool
		final   bool
	}{
		{name: "first matching transition wins", current: a, status: model.NewExecutionStatus(model.NormalCompletion, "SKIP_ALL"), element: c},
		{name: "stop transition", current: a, status: model.NewExecutionStatus(model.NormalCompletion, "HALT"), control: "stop"},
		{name: "fail transition", current: a, status: model.NewExecutionStatus(model.NormalCompletion, "GIVE_UP"), control: "fail"},
		{name: "end transition", current: a, status: model.NewExecutionStatus(model.NormalCompletion, "ALL_DONE"), control: "end"},
		{name: "next attribute without a match", current: a, status: model.NewExecutionStatus(model.NormalCompletion, "COMPLETED"), element: b},
		{name: "failure routed by a transition", current: a, status: model.NewExecutionStatus(model.ExceptionThrown, "SKIP_REST"), element: c},
		{name: "failure without a match ignores next", current: a, status: model.NewExecutionStatus(model.ExceptionThrown, "FAILED"), noMatch: true},
		{name: "last element", current: b, status: model.NewExecutionStatus(model.NormalCompletion, "COMPLETED"), final: true},
		{name: "decision to decision", current: d1, status: model.NewExecutionStatus(model.NormalCompletion, "X"), element: d2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := n.Next(tt.current, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.final, tr.IsFinal())
			assert.Equal(t, tt.noMatch, tr.NoMatchAfterException)
			if tt.element != nil {
				assert.Same(t, tt.element, tr.Element)
			} else {
				assert.Nil(t, tr.Element)
			}
			switch tt.control {
			case "":
				assert.Nil(t, tr.Control)
			case "stop":
				require.NotNil(t, tr.Control)
				assert.True(t, tr.Control.Stop)
				assert.Equal(t, "b", tr.Control.Restart)
			case "fail":
				require.NotNil(t, tr.Control)
				assert.True(t, tr.Control.Fail)
				assert.Equal(t, "BAD", tr.Control.ExitStatus)
			case "end":
				require.NotNil(t, tr.Control)
				assert.True(t, tr.Control.End)
			}
		})
	}
}

func TestNext_UnknownTarget(t *testing.T) {
	a := &jsl.Step{ID: "a", Transitions: []jsl.Transition{{On: "*", To: "nowhere"}}}
	_, err := navigator.New(jsl.Elements{a}).Next(a, model.NewExecutionStatus(model.NormalCompletion, "COMPLETED"))
	assert.True(t, exception.IsConfigurationError(err))
}
