package kernel

import (
	"errors"

	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

var (
	// ErrExecutionAlreadyRegistered is returned when an execution or sub-job id is
	// submitted while it is still running.
	ErrExecutionAlreadyRegistered = errors.New("job execution is already registered")
	// ErrInstanceAlreadyRunning is returned when a job instance already has a running execution.
	ErrInstanceAlreadyRunning = errors.New("job instance already has a running execution")
	// ErrJobNotRunning is returned when a stop targets an execution that is not running.
	ErrJobNotRunning = runtime.ErrJobNotRunning
	// ErrKernelShutdown is returned for submissions after Shutdown.
	ErrKernelShutdown = errors.New("batch kernel is shut down")
)

func init() {
	exception.RegisterErrorType("ErrExecutionAlreadyRegistered", ErrExecutionAlreadyRegistered)
	exception.RegisterErrorType("ErrInstanceAlreadyRunning", ErrInstanceAlreadyRunning)
	exception.RegisterErrorType("ErrKernelShutdown", ErrKernelShutdown)
}
