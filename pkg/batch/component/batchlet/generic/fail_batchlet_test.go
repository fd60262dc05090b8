package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/component/batchlet/generic"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

type stepContext struct {
	port.StepContext
	data []byte
}

func (s *stepContext) StepName() string                  { return "flaky" }
func (s *stepContext) PersistentUserData() []byte        { return s.data }
func (s *stepContext) SetPersistentUserData(data []byte) { s.data = data }

func TestRandomFailBatchlet_FailCount(t *testing.T) {
	sc := &stepContext{}
	ctx := port.WithStepContext(context.Background(), sc)
	b, err := generic.NewRandomFailBatchlet(map[string]string{"failCount": "2"})
	require.NoError(t, err)

	for run := 1; run <= 2; run++ {
		_, err := b.Process(ctx)
		var be *exception.BatchError
		require.ErrorAs(t, err, &be, "run %d", run)
	}
	exit, err := b.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", exit)
	assert.NotEmpty(t, sc.data, "run count is kept across restarts")
}

func TestRandomFailBatchlet_Rate(t *testing.T) {
	ctx := port.WithStepContext(context.Background(), &stepContext{})

	never, err := generic.NewRandomFailBatchlet(map[string]string{"failRate": "0"})
	require.NoError(t, err)
	_, err = never.Process(ctx)
	assert.NoError(t, err)

	always, err := generic.NewRandomFailBatchlet(map[string]string{"failRate": "1.0"})
	require.NoError(t, err)
	_, err = always.Process(ctx)
	assert.Error(t, err)
}

func TestRandomFailBatchlet_BadProperties(t *testing.T) {
	_, err := generic.NewRandomFailBatchlet(map[string]string{"failCount": "many"})
	assert.True(t, exception.IsConfigurationError(err))

	b, err := generic.NewRandomFailBatchlet(nil)
	require.NoError(t, err)
	_, err = b.Process(context.Background())
	assert.Error(t, err, "a StepContext is required")
}
