package model

import (
	"fmt"
)

// BatchStatus is the persisted status of a job or step execution.
type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusStopping  BatchStatus = "STOPPING"
	BatchStatusStopped   BatchStatus = "STOPPED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
)

// String returns the status name.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further execution happens in this status.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusStopped, BatchStatusCompleted, BatchStatusFailed, BatchStatusAbandoned:
		return true
	}
	return false
}

// IsRunning reports whether an execution in this status is still owned by a thread.
func (s BatchStatus) IsRunning() bool {
	switch s {
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping:
		return true
	}
	return false
}

// ParseBatchStatus converts a status name into a BatchStatus.
func ParseBatchStatus(s string) (BatchStatus, error) {
	switch st := BatchStatus(s); st {
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping, BatchStatusStopped,
		BatchStatusCompleted, BatchStatusFailed, BatchStatusAbandoned:
		return st, nil
	}
	return "", fmt.Errorf("unknown batch status %q", s)
}

// validTransitions is the batch status state machine shared by job and step executions.
// STARTING is never re-entered; ABANDONED is reachable only from a terminal status.
var validTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusStarting:  {BatchStatusStarted, BatchStatusStopping, BatchStatusStopped, BatchStatusFailed},
	BatchStatusStarted:   {BatchStatusStopping, BatchStatusCompleted, BatchStatusFailed},
	BatchStatusStopping:  {BatchStatusStopped, BatchStatusFailed},
	BatchStatusStopped:   {BatchStatusAbandoned},
	BatchStatusFailed:    {BatchStatusAbandoned},
	BatchStatusCompleted: {BatchStatusAbandoned},
}

// CanTransition reports whether from -> to is a legal batch status transition.
func CanTransition(from, to BatchStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExtendedBatchStatus is the control-flow outcome of executing one element of the
// execution-element graph. It is never persisted.
type ExtendedBatchStatus string

const (
	NormalCompletion    ExtendedBatchStatus = "NORMAL_COMPLETION"
	JobOperatorStopping ExtendedBatchStatus = "JOB_OPERATOR_STOPPING"
	JSLStop             ExtendedBatchStatus = "JSL_STOP"
	JSLEnd              ExtendedBatchStatus = "JSL_END"
	JSLFail             ExtendedBatchStatus = "JSL_FAIL"
	ExceptionThrown     ExtendedBatchStatus = "EXCEPTION_THROWN"
	DoNotRun            ExtendedBatchStatus = "DO_NOT_RUN"
)

// ExecutionStatus is the value threaded through the execution-element graph to drive transitions.
type ExecutionStatus struct {
	Status     ExtendedBatchStatus
	ExitStatus string
	// RestartOn is the element id a JSL stop asked the next restart to resume at.
	RestartOn string
}

// NewExecutionStatus creates an ExecutionStatus with the given outcome and exit status.
func NewExecutionStatus(status ExtendedBatchStatus, exitStatus string) ExecutionStatus {
	return ExecutionStatus{Status: status, ExitStatus: exitStatus}
}

// IsTerminating reports whether the status ends the enclosing job, flow or split.
func (s ExecutionStatus) IsTerminating() bool {
	switch s.Status {
	case JobOperatorStopping, JSLStop, JSLEnd, JSLFail, ExceptionThrown:
		return true
	}
	return false
}

// String renders the status for logs.
func (s ExecutionStatus) String() string {
	if s.RestartOn != "" {
		return fmt.Sprintf("%s(exit=%s, restartOn=%s)", s.Status, s.ExitStatus, s.RestartOn)
	}
	return fmt.Sprintf("%s(exit=%s)", s.Status, s.ExitStatus)
}
