package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random identifier for instances and executions.
func NewID() string {
	return uuid.NewString()
}

// JobInstance is the identity of a named job across all of its executions.
type JobInstance struct {
	ID         string
	JobName    string
	CreateTime time.Time
	Version    int
}

// NewJobInstance creates a JobInstance for jobName.
func NewJobInstance(jobName string) *JobInstance {
	return &JobInstance{
		ID:         NewID(),
		JobName:    jobName,
		CreateTime: time.Now(),
	}
}

// JobExecution is one attempt (start or restart) to run a JobInstance.
// Its status is mutated only by the thread owning the job.
type JobExecution struct {
	ID            string
	JobInstanceID string
	JobName       string
	Status        BatchStatus
	ExitStatus    string
	Parameters    JobParameters
	// RestartOn is the element id recorded by a JSL stop for the next restart.
	RestartOn   string
	Failures    FailureList
	CreateTime  time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Version     int
}

// NewJobExecution creates a JobExecution in STARTING status.
func NewJobExecution(instance *JobInstance, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:            NewID(),
		JobInstanceID: instance.ID,
		JobName:       instance.JobName,
		Status:        BatchStatusStarting,
		Parameters:    params.Copy(),
		Failures:      FailureList{},
		CreateTime:    now,
		LastUpdated:   now,
	}
}

// TransitionTo moves the execution to next if the batch status state machine allows it.
func (je *JobExecution) TransitionTo(next BatchStatus) error {
	if !CanTransition(je.Status, next) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, next)
	}
	je.Status = next
	je.LastUpdated = time.Now()
	return nil
}

// MarkStarted records STARTED and the start timestamp.
func (je *JobExecution) MarkStarted() error {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		return err
	}
	now := time.Now()
	je.StartTime = &now
	return nil
}

// MarkEnded records the end timestamp.
func (je *JobExecution) MarkEnded() {
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// AddFailure appends the message of err unless it is already recorded.
func (je *JobExecution) AddFailure(err error) {
	je.Failures = je.Failures.With(err)
}

// Clone returns a copy safe to hand to another goroutine.
func (je *JobExecution) Clone() *JobExecution {
	if je == nil {
		return nil
	}
	c := *je
	c.Parameters = je.Parameters.Copy()
	c.Failures = append(FailureList{}, je.Failures...)
	c.StartTime = copyTime(je.StartTime)
	c.EndTime = copyTime(je.EndTime)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
