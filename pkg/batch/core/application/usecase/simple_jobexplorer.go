package usecase

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// SimpleJobExplorer is a basic implementation of the JobExplorer interface.
// It reads from the JobRepository and overlays the live status of executions this
// process runs, since the repository only sees a status once the job thread persists it.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
	submitter     JobSubmitter
}

// Verify that SimpleJobExplorer implements the JobExplorer interface.
var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository repository.JobRepository, submitter JobSubmitter) *SimpleJobExplorer {
	return &SimpleJobExplorer{
		jobRepository: jobRepository,
		submitter:     submitter,
	}
}

func (e *SimpleJobExplorer) overlay(je *model.JobExecution) *model.JobExecution {
	if je == nil || e.submitter == nil {
		return je
	}
	if live, ok := e.submitter.LiveStatus(je.ID); ok && live != je.Status {
		je.Status = live
	}
	return je
}

// GetJobExecution retrieves a JobExecution by its ID.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	logger.Debugf("JobExplorer: GetJobExecution called. Execution ID: %s", executionID)

	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("JobExecution (ID: %s): %w", executionID, err)
	}
	return e.overlay(jobExecution), nil
}

// GetJobExecutions retrieves all JobExecutions of a JobInstance, newest first.
func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	logger.Debugf("JobExplorer: GetJobExecutions called. Instance ID: %s", instanceID)

	executions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecutions for JobInstance (ID: %s)", instanceID), err, false, false)
	}
	for _, je := range executions {
		e.overlay(je)
	}
	return executions, nil
}

// GetLastJobExecution retrieves the latest JobExecution for a given JobInstance.
func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	logger.Debugf("JobExplorer: GetLastJobExecution called. Instance ID: %s", instanceID)

	jobExecution, err := e.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("latest JobExecution of JobInstance (ID: %s): %w", instanceID, err)
	}
	return e.overlay(jobExecution), nil
}

// GetJobInstance retrieves a JobInstance by its ID.
func (e *SimpleJobExplorer) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	logger.Debugf("JobExplorer: GetJobInstance called. Instance ID: %s", instanceID)

	jobInstance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("JobInstance (ID: %s): %w", instanceID, err)
	}
	return jobInstance, nil
}

// GetJobInstances retrieves the JobInstances of a job, newest first.
func (e *SimpleJobExplorer) GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	logger.Debugf("JobExplorer: GetJobInstances called. Job Name: %s", jobName)

	jobInstances, err := e.jobRepository.FindJobInstancesByJobName(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstances (JobName: %s)", jobName), err, false, false)
	}
	if len(jobInstances) == 0 {
		logger.Debugf("No JobInstances found for JobName '%s'.", jobName)
	}
	return jobInstances, nil
}

// GetJobNames retrieves all job names known to the repository.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := e.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", "Failed to retrieve registered job names", err, false, false)
	}
	logger.Debugf("Retrieved %d job names.", len(jobNames))
	return jobNames, nil
}

// GetParameters retrieves the JobParameters for the specified JobExecution.
func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return model.NewJobParameters(), fmt.Errorf("JobExecution (ID: %s): %w", executionID, err)
	}
	return jobExecution.Parameters.Copy(), nil
}

// GetStepExecutions retrieves the top-level StepExecutions of a JobExecution in start
// order, each followed by its partition executions ordered by partition index.
func (e *SimpleJobExplorer) GetStepExecutions(ctx context.Context, executionID string) ([]*model.StepExecution, error) {
	if _, err := e.jobRepository.FindJobExecutionByID(ctx, executionID); err != nil {
		return nil, fmt.Errorf("JobExecution (ID: %s): %w", executionID, err)
	}
	top, err := e.jobRepository.FindStepExecutionsByJobExecution(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve StepExecutions of JobExecution (ID: %s)", executionID), err, false, false)
	}
	out := make([]*model.StepExecution, 0, len(top))
	for _, se := range top {
		out = append(out, se)
		parts, err := e.jobRepository.FindPartitionStepExecutions(ctx, se.ID)
		if err != nil {
			return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve partitions of StepExecution (ID: %s)", se.ID), err, false, false)
		}
		sort.SliceStable(parts, func(i, j int) bool { return parts[i].PartitionIndex < parts[j].PartitionIndex })
		out = append(out, parts...)
	}
	return out, nil
}

// GetRunningExecutions retrieves the ids of the executions of jobName run by this process.
func (e *SimpleJobExplorer) GetRunningExecutions(ctx context.Context, jobName string) ([]string, error) {
	var ids []string
	for _, id := range e.submitter.RunningExecutions() {
		je, err := e.jobRepository.FindJobExecutionByID(ctx, id)
		if err != nil {
			// The execution may not have been persisted yet or may be gone.
			continue
		}
		if je.JobName == jobName {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
