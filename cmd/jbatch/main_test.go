package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/bootstrap"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

const testConfig = `
jbatch:
  batch:
    polling_interval_seconds: 1
  telemetry:
    metrics_exporter: none
  http:
    address: ""
`

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-job", "hello", "-param", "message=hi", "-param", "date=2024-05-01"})
	require.NoError(t, err)
	assert.True(t, opts.runOnce())
	assert.Equal(t, "hello", opts.jobName)
	assert.Equal(t, model.JobParameters{"message": "hi", "date": "2024-05-01"}, opts.parameters)

	opts, err = parseFlags(nil)
	require.NoError(t, err)
	assert.False(t, opts.runOnce())

	_, err = parseFlags([]string{"-param", "novalue"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"-job", "hello", "-restart", "42"})
	assert.Error(t, err)
}

func TestEmbeddedJobParses(t *testing.T) {
	job, err := jsl.Parse(embeddedJSL)
	require.NoError(t, err)
	assert.Equal(t, "hello", job.ID)
}

func TestApplicationOptions_MissingConfigFile(t *testing.T) {
	_, err := applicationOptions(cliOptions{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestRunHelloJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	options, err := applicationOptions(cliOptions{
		configPath:  path,
		envFilePath: filepath.Join(t.TempDir(), "none.env"),
	})
	require.NoError(t, err)

	var (
		result   *bootstrap.RunResult
		explorer usecase.JobExplorer
	)
	options = append(options,
		bootstrap.RunOnce(bootstrap.RunRequest{JobName: "hello", Parameters: model.JobParameters{"message": "hi"}}),
		fx.Populate(&result, &explorer),
	)
	app := fx.New(options...)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	select {
	case sig := <-app.Wait():
		assert.Equal(t, 0, sig.ExitCode)
	case <-ctx.Done():
		t.Fatal("job did not finish")
	}
	require.NoError(t, app.Stop(context.Background()))

	je, err := result.Execution()
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, "DONE", je.ExitStatus)

	steps, err := explorer.GetStepExecutions(context.Background(), je.ID)
	require.NoError(t, err)
	require.Len(t, steps, 4, "greet, count and its two partitions")
	assert.Equal(t, "greet", steps[0].StepName)
	assert.Equal(t, int64(7), steps[1].Metrics.ReadCount)
}
