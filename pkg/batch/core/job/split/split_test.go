package split_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/decision"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/split"
	"github.com/tigerroll/jbatch/pkg/batch/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	var (
		none    = model.NewExecutionStatus(model.NormalCompletion, "")
		thrown  = model.NewExecutionStatus(model.ExceptionThrown, "A_BOOM")
		failed  = model.NewExecutionStatus(model.JSLFail, "F")
		ended   = model.NewExecutionStatus(model.JSLEnd, "B_END")
		ended2  = model.NewExecutionStatus(model.JSLEnd, "B_END_2")
		stopped = model.NewExecutionStatus(model.JSLStop, "S")
		stopOp  = model.NewExecutionStatus(model.JobOperatorStopping, "")
	)

	tests := []struct {
		name    string
		current model.ExecutionStatus
		next    model.ExecutionStatus
		want    model.ExecutionStatus
	}{
		{"first terminating status wins over nothing", none, ended, ended},
		{"exception after end", ended, thrown, thrown},
		{"end after exception", thrown, ended, thrown},
		{"stop after end", ended, stopped, stopped},
		{"end after stop", stopped, ended, stopped},
		{"operator stop after end", ended, stopOp, stopOp},
		{"fail after stop", stopped, failed, failed},
		{"stop after fail", failed, stopped, failed},
		{"exception and fail tie, later wins", failed, thrown, thrown},
		{"fail and exception tie, later wins", thrown, failed, failed},
		{"two ends tie, later wins", ended, ended2, ended2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, split.Aggregate(tt.current, tt.next))
		})
	}
}

func flowStep(id string, transitions ...jsl.Transition) *jsl.Flow {
	return &jsl.Flow{ID: "f" + id, Elements: jsl.Elements{
		&jsl.Step{ID: id, Batchlet: &jsl.ComponentRef{Ref: id}, Transitions: transitions},
	}}
}

func batchlet(reg *support.ArtifactRegistry, name, exit string, err error) {
	reg.RegisterValue(name, test.FuncBatchlet(func(context.Context) (string, error) { return exit, err }))
}

func TestController_ThreeFlowsFeedDecision(t *testing.T) {
	reg := support.NewArtifactRegistry()
	for _, n := range []string{"a", "b", "c"} {
		batchlet(reg, n, "DONE_"+n, nil)
	}
	k := test.NewKernel(t, reg)
	def := &jsl.Split{ID: "s", Next: "route", Flows: []*jsl.Flow{flowStep("a"), flowStep("b"), flowStep("c")}}
	dec := &jsl.Decision{ID: "route", Ref: "router"}
	job := &jsl.Job{ID: "j", Elements: jsl.Elements{def, dec}}
	jc := test.NewJobContext(t, k.Runtime(), job, nil)
	ctx := context.Background()

	ctl := split.New(jc, def)
	st, err := ctl.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NormalCompletion, st.Status)
	assert.False(t, ctl.Ambiguous())

	var seen []string
	reg.RegisterValue("router", test.FuncDecider(func(_ context.Context, ses []*model.StepExecution) (string, error) {
		for _, se := range ses {
			seen = append(seen, se.StepName+"="+se.ExitStatus)
		}
		return "ROUTED", nil
	}))
	dst, err := decision.New(jc, dec, ctl.LastRunStepExecutions()).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ROUTED", dst.ExitStatus)
	assert.ElementsMatch(t, []string{"a=DONE_a", "b=DONE_b", "c=DONE_c"}, seen)
}

func TestController_FailedFlowExitStatusWins(t *testing.T) {
	for _, order := range []string{"failure first", "end first"} {
		t.Run(order, func(t *testing.T) {
			reg := support.NewArtifactRegistry()
			first := make(chan struct{})
			slow := func(name, exit string, err error) {
				reg.RegisterValue(name, test.FuncBatchlet(func(ctx context.Context) (string, error) {
					select {
					case <-first:
						time.Sleep(20 * time.Millisecond)
					case <-ctx.Done():
					}
					return exit, err
				}))
			}
			fast := func(name, exit string, err error) {
				reg.RegisterValue(name, test.FuncBatchlet(func(context.Context) (string, error) {
					defer close(first)
					return exit, err
				}))
			}
			if order == "failure first" {
				fast("a", "A_BOOM", errors.New("boom"))
				slow("b", "", nil)
			} else {
				slow("a", "A_BOOM", errors.New("boom"))
				fast("b", "", nil)
			}
			k := test.NewKernel(t, reg)
			def := &jsl.Split{ID: "s", Flows: []*jsl.Flow{
				flowStep("a"),
				flowStep("b", jsl.Transition{On: "*", End: true, ExitStatus: "B_END"}),
			}}
			jc := test.NewJobContext(t, k.Runtime(), &jsl.Job{ID: "j", Elements: jsl.Elements{def}}, nil)

			ctl := split.New(jc, def)
			st, err := ctl.Execute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, model.ExceptionThrown, st.Status)
			assert.Equal(t, "A_BOOM", st.ExitStatus)
			assert.Equal(t, "A_BOOM", jc.ExitStatus())
			assert.True(t, ctl.Ambiguous())
		})
	}
}
