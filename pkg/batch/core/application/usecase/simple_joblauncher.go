package usecase

import (
	"context"
	"fmt"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// SimpleJobLauncher persists new executions and hands them to the kernel.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	jobs          JobDefinitions
	submitter     JobSubmitter
}

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, jobs JobDefinitions, submitter JobSubmitter) *SimpleJobLauncher {
	return &SimpleJobLauncher{jobRepository: repo, jobs: jobs, submitter: submitter}
}

// Launch creates a new JobInstance of jobName and submits its first execution.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	job, err := l.definition(jobName)
	if err != nil {
		return nil, err
	}
	inst := model.NewJobInstance(jobName)
	if err := l.jobRepository.SaveJobInstance(ctx, inst); err != nil {
		return nil, exception.NewBatchError("job_launcher", fmt.Sprintf("Failed to save new JobInstance for '%s'", jobName), err, false, false)
	}
	logger.Infof("Created JobInstance (ID: %s, JobName: %s).", inst.ID, jobName)
	return l.launch(ctx, job, inst, params, "")
}

func (l *SimpleJobLauncher) definition(jobName string) (*jsl.Job, error) {
	job, ok := l.jobs.Get(jobName)
	if !ok {
		return nil, fmt.Errorf("job '%s': %w", jobName, ErrNoSuchJob)
	}
	return job, nil
}

// launch persists a STARTING execution of inst and submits it. The returned value is a
// snapshot; the execution itself belongs to the job goroutine.
func (l *SimpleJobLauncher) launch(ctx context.Context, job *jsl.Job, inst *model.JobInstance, params model.JobParameters, restartAt string) (*model.JobExecution, error) {
	je := model.NewJobExecution(inst, params)
	if err := l.jobRepository.SaveJobExecution(ctx, je); err != nil {
		return nil, exception.NewBatchError("job_launcher", "Failed to save JobExecution initially", err, false, false)
	}
	logger.Debugf("Saved JobExecution (ID: %s) in status %s.", je.ID, je.Status)
	snapshot := je.Clone()

	if _, err := l.submitter.Submit(ctx, job, je, restartAt); err != nil {
		logger.Errorf("Failed to submit JobExecution (ID: %s) of job '%s': %v", je.ID, job.ID, err)
		je.Status = model.BatchStatusFailed
		je.ExitStatus = model.BatchStatusFailed.String()
		je.AddFailure(err)
		je.MarkEnded()
		if uerr := l.jobRepository.UpdateJobExecution(ctx, je); uerr != nil {
			logger.Errorf("Failed to mark unsubmitted JobExecution (ID: %s) FAILED: %v", je.ID, uerr)
		}
		return nil, err
	}
	logger.Infof("Launched job '%s' (Execution ID: %s, Instance ID: %s).", job.ID, je.ID, inst.ID)
	return snapshot, nil
}
