package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/httpapi"
)

type mockOperator struct{ mock.Mock }

func (m *mockOperator) Start(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	args := m.Called(jobName, params)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

func (m *mockOperator) Restart(ctx context.Context, executionID string, overrides model.JobParameters) (*model.JobExecution, error) {
	args := m.Called(executionID, overrides)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

func (m *mockOperator) Stop(ctx context.Context, executionID string) error {
	return m.Called(executionID).Error(0)
}

func (m *mockOperator) Abandon(ctx context.Context, executionID string) error {
	return m.Called(executionID).Error(0)
}

// stubExplorer serves a fixed set of executions.
type stubExplorer struct {
	usecase.JobExplorer
	executions map[string]*model.JobExecution
	steps      map[string][]*model.StepExecution
}

func (s *stubExplorer) GetJobExecution(_ context.Context, id string) (*model.JobExecution, error) {
	je, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, repository.ErrJobExecutionNotFound)
	}
	return je, nil
}

func (s *stubExplorer) GetStepExecutions(_ context.Context, id string) ([]*model.StepExecution, error) {
	return s.steps[id], nil
}

func newServer(t *testing.T, op *mockOperator, ex *stubExplorer, registry *prometheus.Registry) *httptest.Server {
	var gatherer prometheus.Gatherer
	if registry != nil {
		gatherer = registry
	}
	srv := httptest.NewServer(httpapi.NewHandler(op, ex, gatherer, []string{"password"}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStartJob(t *testing.T) {
	op := &mockOperator{}
	je := model.NewJobExecution(model.NewJobInstance("payroll"), model.JobParameters{"date": "2024-05-01", "password": "hunter2"})
	op.On("Start", "payroll", model.JobParameters{"date": "2024-05-01", "password": "hunter2"}).Return(je, nil)
	op.On("Start", "unknown", model.JobParameters(nil)).Return(nil, fmt.Errorf("start: %w", usecase.ErrNoSuchJob))
	srv := newServer(t, op, &stubExplorer{}, nil)

	resp := post(t, srv.URL+"/jobs/payroll/start", `{"parameters":{"date":"2024-05-01","password":"hunter2"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/executions/"+je.ID, resp.Header.Get("Location"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, je.ID, body["id"])
	assert.Equal(t, "STARTING", body["status"])
	params := body["parameters"].(map[string]any)
	assert.Equal(t, "2024-05-01", params["date"])
	assert.NotEqual(t, "hunter2", params["password"], "masked keys are hidden")

	resp = post(t, srv.URL+"/jobs/unknown/start", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/jobs/payroll/start", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	op.AssertExpectations(t)
}

func TestRestartStopAbandon(t *testing.T) {
	op := &mockOperator{}
	restarted := model.NewJobExecution(model.NewJobInstance("payroll"), nil)
	op.On("Restart", "failed-1", model.JobParameters{"retry": "true"}).Return(restarted, nil)
	op.On("Restart", "done-1", model.JobParameters(nil)).Return(nil, fmt.Errorf("restart: %w", usecase.ErrJobExecutionAlreadyComplete))
	op.On("Stop", "running-1").Return(nil)
	op.On("Stop", "elsewhere-1").Return(kernel.ErrJobNotRunning)
	op.On("Abandon", "failed-1").Return(nil)
	op.On("Abandon", "running-1").Return(fmt.Errorf("abandon: %w", usecase.ErrJobExecutionIsRunning))
	op.On("Abandon", "missing").Return(repository.ErrJobExecutionNotFound)
	srv := newServer(t, op, &stubExplorer{}, nil)

	cases := []struct {
		path, body string
		want       int
	}{
		{"/executions/failed-1/restart", `{"parameters":{"retry":"true"}}`, http.StatusAccepted},
		{"/executions/done-1/restart", ``, http.StatusConflict},
		{"/executions/running-1/stop", ``, http.StatusAccepted},
		{"/executions/elsewhere-1/stop", ``, http.StatusConflict},
		{"/executions/failed-1/abandon", ``, http.StatusNoContent},
		{"/executions/running-1/abandon", ``, http.StatusConflict},
		{"/executions/missing/abandon", ``, http.StatusNotFound},
	}
	for _, c := range cases {
		resp := post(t, srv.URL+c.path, c.body)
		assert.Equal(t, c.want, resp.StatusCode, c.path)
	}
	op.AssertExpectations(t)
}

func TestGetExecutionAndSteps(t *testing.T) {
	je := model.NewJobExecution(model.NewJobInstance("payroll"), nil)
	top := model.NewStepExecution(je.ID, je.JobInstanceID, "load", model.TopLevelPartition)
	top.Metrics = model.StepMetrics{ReadCount: 10, WriteCount: 9, FilterCount: 1, CommitCount: 1}
	part := model.NewStepExecution(je.ID, je.JobInstanceID, "load", 0)
	part.ParentStepExecutionID = top.ID
	ex := &stubExplorer{
		executions: map[string]*model.JobExecution{je.ID: je},
		steps:      map[string][]*model.StepExecution{je.ID: {top, part}},
	}
	srv := newServer(t, &mockOperator{}, ex, nil)

	resp, err := http.Get(srv.URL + "/executions/" + je.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = http.Get(srv.URL + "/executions/" + je.ID + "/steps")
	require.NoError(t, err)
	defer resp.Body.Close()
	var steps []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&steps))
	require.Len(t, steps, 2)
	assert.Equal(t, "load", steps[0]["step_name"])
	assert.NotContains(t, steps[0], "partition_index")
	assert.Equal(t, 0.0, steps[1]["partition_index"])
	assert.Equal(t, 10.0, steps[0]["metrics"].(map[string]any)["read"])

	resp, err = http.Get(srv.URL + "/executions/nope/steps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/executions/" + je.ID + "/stop")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "batch_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Add(3)

	srv := newServer(t, &mockOperator{}, &stubExplorer{}, registry)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "batch_test_total 3")

	noMetrics := newServer(t, &mockOperator{}, &stubExplorer{}, nil)
	resp, err = http.Get(noMetrics.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
