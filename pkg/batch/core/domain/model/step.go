package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// FailureList holds error messages recorded against an execution.
type FailureList []string

// With returns the list extended by the message of err, skipping duplicates.
func (fl FailureList) With(err error) FailureList {
	if err == nil {
		return fl
	}
	msg := exception.ExtractErrorMessage(err)
	for _, existing := range fl {
		if existing == msg {
			return fl
		}
	}
	return append(fl, msg)
}

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(fl))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*fl = FailureList{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}
	if len(b) == 0 {
		*fl = FailureList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	*fl = out
	return nil
}

// StepMetrics are the counters kept for one step execution.
type StepMetrics struct {
	ReadCount        int64 `json:"readCount"`
	WriteCount       int64 `json:"writeCount"`
	FilterCount      int64 `json:"filterCount"`
	CommitCount      int64 `json:"commitCount"`
	RollbackCount    int64 `json:"rollbackCount"`
	ReadSkipCount    int64 `json:"readSkipCount"`
	ProcessSkipCount int64 `json:"processSkipCount"`
	WriteSkipCount   int64 `json:"writeSkipCount"`
}

// Add returns the element-wise sum of m and o.
func (m StepMetrics) Add(o StepMetrics) StepMetrics {
	return StepMetrics{
		ReadCount:        m.ReadCount + o.ReadCount,
		WriteCount:       m.WriteCount + o.WriteCount,
		FilterCount:      m.FilterCount + o.FilterCount,
		CommitCount:      m.CommitCount + o.CommitCount,
		RollbackCount:    m.RollbackCount + o.RollbackCount,
		ReadSkipCount:    m.ReadSkipCount + o.ReadSkipCount,
		ProcessSkipCount: m.ProcessSkipCount + o.ProcessSkipCount,
		WriteSkipCount:   m.WriteSkipCount + o.WriteSkipCount,
	}
}

// SkipCount is the total of read, process and write skips.
func (m StepMetrics) SkipCount() int64 {
	return m.ReadSkipCount + m.ProcessSkipCount + m.WriteSkipCount
}

// Validate checks that no counter is negative and that read - write == filter.
func (m StepMetrics) Validate() error {
	if m.ReadCount < 0 || m.WriteCount < 0 || m.FilterCount < 0 || m.CommitCount < 0 || m.RollbackCount < 0 {
		return exception.NewIllegalStateError("model", "negative step metric: %+v", m)
	}
	if m.ReadCount-m.WriteCount != m.FilterCount {
		return exception.NewIllegalStateError("model",
			"inconsistent step metrics: read %d - write %d != filter %d", m.ReadCount, m.WriteCount, m.FilterCount)
	}
	return nil
}

// Value implements driver.Valuer.
func (m StepMetrics) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *StepMetrics) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = StepMetrics{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("unsupported Scan type for StepMetrics: %T", value)
}

// TopLevelPartition is the partition index of a step execution that is not a partition.
const TopLevelPartition = -1

// StepExecution is one attempt to run a step within a JobExecution.
type StepExecution struct {
	ID             string
	JobExecutionID string
	JobInstanceID  string
	StepName       string
	// PartitionIndex is TopLevelPartition for the step itself and 0..N-1 for its partitions.
	PartitionIndex        int
	ParentStepExecutionID string
	Status                BatchStatus
	ExitStatus            string
	Metrics               StepMetrics
	PersistentUserData    []byte
	Failures              FailureList
	StartTime             *time.Time
	EndTime               *time.Time
	LastUpdated           time.Time
	Version               int
}

// NewStepExecution creates a StepExecution in STARTING status.
func NewStepExecution(jobExecutionID, jobInstanceID, stepName string, partitionIndex int) *StepExecution {
	return &StepExecution{
		ID:             NewID(),
		JobExecutionID: jobExecutionID,
		JobInstanceID:  jobInstanceID,
		StepName:       stepName,
		PartitionIndex: partitionIndex,
		Status:         BatchStatusStarting,
		Failures:       FailureList{},
		LastUpdated:    time.Now(),
	}
}

// IsPartition reports whether this execution belongs to a partition thread.
func (se *StepExecution) IsPartition() bool {
	return se.PartitionIndex != TopLevelPartition
}

// TransitionTo moves the step execution to next if allowed.
func (se *StepExecution) TransitionTo(next BatchStatus) error {
	if !CanTransition(se.Status, next) {
		return exception.NewIllegalStateError("model",
			"StepExecution (ID: %s, Step: %s): invalid state transition: %s -> %s", se.ID, se.StepName, se.Status, next)
	}
	se.Status = next
	se.LastUpdated = time.Now()
	if next == BatchStatusStarted {
		now := se.LastUpdated
		se.StartTime = &now
	}
	return nil
}

// MarkEnded records the end timestamp.
func (se *StepExecution) MarkEnded() {
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// AddFailure records err.
func (se *StepExecution) AddFailure(err error) {
	se.Failures = se.Failures.With(err)
}

// Clone returns a deep copy.
func (se *StepExecution) Clone() *StepExecution {
	if se == nil {
		return nil
	}
	c := *se
	c.PersistentUserData = append([]byte(nil), se.PersistentUserData...)
	c.Failures = append(FailureList{}, se.Failures...)
	c.StartTime = copyTime(se.StartTime)
	c.EndTime = copyTime(se.EndTime)
	return &c
}

// StepStatus is persisted per (job instance, step) and survives restarts. It decides
// whether a step runs again and carries the start count and persistent user data.
type StepStatus struct {
	JobInstanceID string
	// StepName is the step id, or PartitionStepKey(step, index) for a partition.
	StepName               string
	Status                 BatchStatus
	ExitStatus             string
	StartCount             int
	NumPartitions          int
	PersistentUserData     []byte
	LastRunStepExecutionID string
	LastUpdated            time.Time
	Version                int
}

// NewStepStatus creates the first StepStatus for a step of an instance.
func NewStepStatus(jobInstanceID, stepName string) *StepStatus {
	return &StepStatus{
		JobInstanceID: jobInstanceID,
		StepName:      stepName,
		Status:        BatchStatusStarting,
		LastUpdated:   time.Now(),
	}
}

// Clone returns a deep copy.
func (ss *StepStatus) Clone() *StepStatus {
	if ss == nil {
		return nil
	}
	c := *ss
	c.PersistentUserData = append([]byte(nil), ss.PersistentUserData...)
	return &c
}
