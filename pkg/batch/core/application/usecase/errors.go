package usecase

import (
	"errors"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

var (
	// ErrNoSuchJob is returned when no job definition is registered under a name.
	ErrNoSuchJob = errors.New("no such job")
	// ErrJobExecutionAlreadyComplete is returned when a COMPLETED execution is restarted.
	ErrJobExecutionAlreadyComplete = errors.New("job execution is already complete")
	// ErrJobExecutionAbandoned is returned when an ABANDONED execution is restarted.
	ErrJobExecutionAbandoned = errors.New("job execution was abandoned")
	// ErrJobExecutionNotMostRecent is returned when a restart names an execution that
	// is not the latest of its instance.
	ErrJobExecutionNotMostRecent = errors.New("job execution is not the most recent of its instance")
	// ErrJobExecutionIsRunning is returned when a running execution is restarted or abandoned.
	ErrJobExecutionIsRunning = errors.New("job execution is running")
	// ErrJobNotRestartable is returned when a job declared restartable: false is restarted.
	ErrJobNotRestartable = errors.New("job is not restartable")
)

func init() {
	exception.RegisterErrorType("ErrNoSuchJob", ErrNoSuchJob)
	exception.RegisterErrorType("ErrJobExecutionAlreadyComplete", ErrJobExecutionAlreadyComplete)
	exception.RegisterErrorType("ErrJobExecutionAbandoned", ErrJobExecutionAbandoned)
	exception.RegisterErrorType("ErrJobExecutionNotMostRecent", ErrJobExecutionNotMostRecent)
	exception.RegisterErrorType("ErrJobExecutionIsRunning", ErrJobExecutionIsRunning)
	exception.RegisterErrorType("ErrJobNotRestartable", ErrJobNotRestartable)
}
