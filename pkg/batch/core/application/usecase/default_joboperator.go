package usecase

import (
	"context"
	"errors"
	"fmt"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	launcher      *SimpleJobLauncher
	submitter     JobSubmitter
}

// Verify that DefaultJobOperator implements the JobOperator interface.
var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a new instance of DefaultJobOperator.
func NewDefaultJobOperator(jobRepository repository.JobRepository, launcher *SimpleJobLauncher, submitter JobSubmitter) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		launcher:      launcher,
		submitter:     submitter,
	}
}

// Start implements JobOperator.
func (o *DefaultJobOperator) Start(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("JobOperator: Start called. Job: %s", jobName)
	return o.launcher.Launch(ctx, jobName, params)
}

// Restart implements JobOperator. Only the most recent execution of an instance can be
// restarted, and only when it is STOPPED or FAILED.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string, overrides model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("JobOperator: Restart called. Execution ID: %s", executionID)

	prev, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("restart of execution %s: %w", executionID, err)
	}
	switch {
	case prev.Status == model.BatchStatusCompleted:
		return nil, fmt.Errorf("restart of execution %s: %w", executionID, ErrJobExecutionAlreadyComplete)
	case prev.Status == model.BatchStatusAbandoned:
		return nil, fmt.Errorf("restart of execution %s: %w", executionID, ErrJobExecutionAbandoned)
	case prev.Status.IsRunning():
		return nil, fmt.Errorf("restart of execution %s (status %s): %w", executionID, prev.Status, ErrJobExecutionIsRunning)
	}

	latest, err := o.jobRepository.FindLatestJobExecution(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Failed to load the latest execution of JobInstance (ID: %s)", prev.JobInstanceID), err, false, false)
	}
	if latest.ID != prev.ID {
		return nil, fmt.Errorf("restart of execution %s (latest is %s): %w", executionID, latest.ID, ErrJobExecutionNotMostRecent)
	}

	job, err := o.launcher.definition(prev.JobName)
	if err != nil {
		return nil, err
	}
	if !job.IsRestartable() {
		return nil, fmt.Errorf("job '%s': %w", job.ID, ErrJobNotRestartable)
	}
	inst, err := o.jobRepository.FindJobInstanceByID(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Failed to load JobInstance (ID: %s)", prev.JobInstanceID), err, false, false)
	}

	params := prev.Parameters.Merge(overrides)
	je, err := o.launcher.launch(ctx, job, inst, params, prev.RestartOn)
	if err != nil {
		return nil, err
	}
	logger.Infof("Restarted job '%s' (previous Execution ID: %s, new Execution ID: %s, restart at: '%s').", job.ID, executionID, je.ID, prev.RestartOn)
	return je, nil
}

// Stop implements JobOperator. An execution recorded as running that this process does
// not run is reported with kernel.ErrJobNotRunning.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Stop called. Execution ID: %s", executionID)

	je, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("stop of execution %s: %w", executionID, err)
	}
	if je.Status.IsTerminal() {
		logger.Infof("JobExecution (ID: %s) is already %s; nothing to stop.", executionID, je.Status)
		return nil
	}
	if err := o.submitter.Stop(ctx, executionID); err != nil {
		if errors.Is(err, kernel.ErrJobNotRunning) {
			// The execution may have finished between the read and the stop.
			if st, lerr := o.jobRepository.FindJobExecutionByID(ctx, executionID); lerr == nil && st.Status.IsTerminal() {
				return nil
			}
		}
		return err
	}
	logger.Infof("Sent stop request to JobExecution (ID: %s).", executionID)
	return nil
}

// Abandon implements JobOperator.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Abandon called. Execution ID: %s", executionID)

	je, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("abandon of execution %s: %w", executionID, err)
	}
	switch {
	case je.Status == model.BatchStatusAbandoned:
		logger.Infof("JobExecution (ID: %s) is already ABANDONED.", executionID)
		return nil
	case je.Status.IsRunning():
		return fmt.Errorf("abandon of execution %s (status %s): %w", executionID, je.Status, ErrJobExecutionIsRunning)
	}
	if err := je.TransitionTo(model.BatchStatusAbandoned); err != nil {
		return exception.NewIllegalStateError("job_operator", "%v", err)
	}
	if err := o.jobRepository.UpdateJobExecution(ctx, je); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Failed to update JobExecution (ID: %s) to ABANDONED", executionID), err, false, false)
	}
	logger.Infof("Abandoned JobExecution (ID: %s).", executionID)
	return nil
}
