package logging_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

type jobContext struct {
	port.JobContext
}

func (jobContext) JobName() string                 { return "payroll" }
func (jobContext) ExecutionID() string             { return "je-1" }
func (jobContext) Parameters() model.JobParameters { return model.JobParameters{"password": "hunter2", "date": "2024-05-01"} }

type stepContext struct {
	port.StepContext
}

func (stepContext) StepName() string    { return "load" }
func (stepContext) PartitionIndex() int { return 2 }

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestModuleRegistersListeners(t *testing.T) {
	var registry *support.ArtifactRegistry
	app := fx.New(
		fx.NopLogger,
		fx.Supply(config.NewConfig()),
		support.Module,
		logging.Module,
		fx.Populate(&registry),
	)
	require.NoError(t, app.Err())

	for _, ref := range []string{
		logging.LoggingJobListenerRef, logging.LoggingStepListenerRef, logging.LoggingChunkListenerRef,
		logging.LoggingItemReadListenerRef, logging.LoggingItemProcessListenerRef, logging.LoggingItemWriteListenerRef,
		logging.LoggingSkipListenerRef, logging.LoggingRetryListenerRef,
	} {
		a, err := registry.Create(context.Background(), ref, nil)
		require.NoError(t, err, ref)
		assert.NotNil(t, a, ref)
	}
	a, err := registry.Create(context.Background(), logging.LoggingRetryListenerRef, nil)
	require.NoError(t, err)
	assert.Implements(t, (*port.RetryListener)(nil), a)
}

func TestLoggingJobListener_MasksParameters(t *testing.T) {
	buf := captureLog(t)
	ctx := port.WithJobContext(context.Background(), jobContext{})

	l := logging.NewLoggingJobListener([]string{"password"})
	require.NoError(t, l.BeforeJob(ctx))

	out := buf.String()
	assert.Contains(t, out, "JobName: payroll")
	assert.Contains(t, out, "2024-05-01")
	assert.NotContains(t, out, "hunter2")
}

func TestLoggingListeners_NameThePartition(t *testing.T) {
	buf := captureLog(t)
	ctx := port.WithStepContext(context.Background(), stepContext{})

	require.NoError(t, logging.NewLoggingSkipListener().OnSkipProcessItem(ctx, 7, errors.New("bad row")))
	require.NoError(t, logging.NewLoggingItemWriteListener().OnWriteError(ctx, []any{1, 2}, errors.New("disk full")))

	out := buf.String()
	assert.Contains(t, out, "StepName: load#2, Skipping item: 7, Error: bad row")
	assert.Contains(t, out, "Items count: 2, Error: disk full")
}
