package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
)

// MockMetricRecorder is a testify mock of metrics.MetricRecorder that accepts every call,
// so tests only assert the calls they care about.
type MockMetricRecorder struct {
	mock.Mock
}

var _ metrics.MetricRecorder = (*MockMetricRecorder)(nil)

// NewMockMetricRecorder creates a MockMetricRecorder with permissive expectations.
func NewMockMetricRecorder() *MockMetricRecorder {
	m := &MockMetricRecorder{}
	for method, arity := range map[string]int{
		"RecordJobStart": 2, "RecordJobEnd": 2, "RecordStepStart": 2, "RecordStepEnd": 2,
		"RecordItemRead": 3, "RecordItemWrite": 3, "RecordItemFilter": 3,
		"RecordItemSkip": 4, "RecordItemRetry": 4,
		"RecordChunkCommit": 2, "RecordChunkRollback": 2,
	} {
		args := make([]any, arity)
		for i := range args {
			args[i] = mock.Anything
		}
		m.On(method, args...).Return()
	}
	return m
}

func (m *MockMetricRecorder) RecordJobStart(ctx context.Context, e *model.JobExecution) {
	m.Called(ctx, e)
}

func (m *MockMetricRecorder) RecordJobEnd(ctx context.Context, e *model.JobExecution) {
	m.Called(ctx, e)
}

func (m *MockMetricRecorder) RecordStepStart(ctx context.Context, e *model.StepExecution) {
	m.Called(ctx, e)
}

func (m *MockMetricRecorder) RecordStepEnd(ctx context.Context, e *model.StepExecution) {
	m.Called(ctx, e)
}

func (m *MockMetricRecorder) RecordItemRead(ctx context.Context, stepName string, count int) {
	m.Called(ctx, stepName, count)
}

func (m *MockMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	m.Called(ctx, stepName, count)
}

func (m *MockMetricRecorder) RecordItemFilter(ctx context.Context, stepName string, count int) {
	m.Called(ctx, stepName, count)
}

func (m *MockMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, phase metrics.ItemPhase, reason string) {
	m.Called(ctx, stepName, phase, reason)
}

func (m *MockMetricRecorder) RecordItemRetry(ctx context.Context, stepName string, phase metrics.ItemPhase, reason string) {
	m.Called(ctx, stepName, phase, reason)
}

func (m *MockMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	m.Called(ctx, stepName)
}

func (m *MockMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	m.Called(ctx, stepName)
}
