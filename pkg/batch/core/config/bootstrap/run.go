package bootstrap

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// RunRequest asks the application to run one job execution to its end and shut down.
type RunRequest struct {
	// JobName is the job to start. Empty means jbatch.batch.job_name.
	JobName    string
	Parameters model.JobParameters
	// RestartExecutionID restarts that execution instead of starting a new instance.
	RestartExecutionID string
}

// RunResult receives the outcome of a RunRequest.
type RunResult struct {
	mu        sync.Mutex
	execution *model.JobExecution
	err       error
}

// Execution returns the last observed state of the execution, or the error that
// prevented it from being started or followed.
func (r *RunResult) Execution() (*model.JobExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.execution, r.err
}

func (r *RunResult) set(je *model.JobExecution, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if je != nil {
		r.execution = je
	}
	if err != nil {
		r.err = err
	}
}

// ExitCode maps the outcome onto a process exit code: 0 when the execution completed,
// 1 when it failed or could not run, 2 when it stopped.
func (r *RunResult) ExitCode() int {
	je, err := r.Execution()
	switch {
	case err != nil || je == nil:
		return 1
	case je.Status == model.BatchStatusCompleted:
		return 0
	case je.Status == model.BatchStatusStopped:
		return 2
	}
	return 1
}

// RunOnce runs req when the application starts, follows the execution until it ends
// and then shuts the application down with the exit code of the result. Stopping the
// application first stops the execution.
func RunOnce(req RunRequest) fx.Option {
	return fx.Options(
		fx.Supply(req),
		fx.Provide(func() *RunResult { return &RunResult{} }),
		fx.Invoke(runOnStart),
	)
}

type runParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Operator   usecase.JobOperator
	Explorer   usecase.JobExplorer
	Cfg        *config.Config
	Request    RunRequest
	Result     *RunResult
}

func runOnStart(p runParams) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in job execution: %v", r)
						p.Result.set(nil, exception.NewIllegalStateError("bootstrap", "panic while running the job: %v", r))
					}
					logger.Infof("Requesting application shutdown after job completion.")
					if err := p.Shutdowner.Shutdown(fx.ExitCode(p.Result.ExitCode())); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				follow(runCtx, p)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if je, _ := p.Result.Execution(); je != nil && !je.Status.IsTerminal() {
				logger.Warnf("Job '%s' (Execution ID: %s) is still running. Attempting graceful stop via JobOperator.", je.JobName, je.ID)
				if err := p.Operator.Stop(ctx, je.ID); err != nil {
					logger.Errorf("Failed to stop JobExecution (ID: %s): %v", je.ID, err)
				}
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func follow(ctx context.Context, p runParams) {
	req := p.Request
	var (
		je  *model.JobExecution
		err error
	)
	if req.RestartExecutionID != "" {
		logger.Infof("Restarting JobExecution (ID: %s)...", req.RestartExecutionID)
		je, err = p.Operator.Restart(ctx, req.RestartExecutionID, req.Parameters)
	} else {
		jobName := req.JobName
		if jobName == "" {
			jobName = p.Cfg.JBatch.Batch.JobName
		}
		logger.Infof("Starting job '%s'...", jobName)
		je, err = p.Operator.Start(ctx, jobName, req.Parameters)
	}
	p.Result.set(je, err)
	if err != nil {
		logger.Errorf("Failed to launch job: %v", err)
		return
	}

	pollingInterval := time.Duration(p.Cfg.JBatch.Batch.PollingIntervalSeconds) * time.Second
	if pollingInterval <= 0 {
		pollingInterval = 5 * time.Second
	}
	logger.Infof("Monitoring job '%s' (Execution ID: %s) with polling interval %v...", je.JobName, je.ID, pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Warnf("Stopped monitoring job '%s' (Execution ID: %s).", je.JobName, je.ID)
			return
		case <-ticker.C:
			latest, err := p.Explorer.GetJobExecution(ctx, je.ID)
			if err != nil {
				logger.Errorf("Failed to fetch latest status for JobExecution (ID: %s): %v", je.ID, err)
				continue
			}
			p.Result.set(latest, nil)
			if latest.Status.IsTerminal() {
				logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
					latest.JobName, latest.ID, latest.Status, latest.ExitStatus)
				return
			}
			logger.Debugf("Job '%s' (Execution ID: %s) is still running. Current status: %s", latest.JobName, latest.ID, latest.Status)
		}
	}
}
