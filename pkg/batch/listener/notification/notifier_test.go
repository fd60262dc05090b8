package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/listener/notification"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyJobCompletion(ctx context.Context, c notification.JobCompletion) error {
	return m.Called(ctx, c).Error(0)
}

type jobContext struct {
	port.JobContext
}

func (jobContext) JobName() string                { return "payroll" }
func (jobContext) ExecutionID() string            { return "je-7" }
func (jobContext) BatchStatus() model.BatchStatus { return model.BatchStatusFailed }
func (jobContext) ExitStatus() string             { return "FAILED" }

func TestNotificationJobListener(t *testing.T) {
	ctx := port.WithJobContext(context.Background(), jobContext{})
	n := &mockNotifier{}
	n.On("NotifyJobCompletion", ctx, mock.MatchedBy(func(c notification.JobCompletion) bool {
		return c.JobName == "payroll" && c.ExecutionID == "je-7" && c.Status == model.BatchStatusFailed && c.Duration >= 0
	})).Return(errors.New("smtp down"))

	l := notification.NewNotificationJobListener(n)
	require.NoError(t, l.BeforeJob(ctx))
	assert.NoError(t, l.AfterJob(ctx), "notification failures do not fail the job")
	n.AssertExpectations(t)
}

func TestJobCompletionString(t *testing.T) {
	c := notification.JobCompletion{JobName: "payroll", ExecutionID: "je-7", Status: model.BatchStatusCompleted, ExitStatus: "DONE"}
	assert.Equal(t, "Job 'payroll' (ID: je-7) finished with Status: COMPLETED, ExitStatus: DONE. Duration: 0s", c.String())
	assert.NoError(t, notification.NewLogNotifier().NotifyJobCompletion(context.Background(), c))
}
