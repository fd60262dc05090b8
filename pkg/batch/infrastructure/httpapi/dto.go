package httpapi

import (
	"time"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// startRequest is the body of the start and restart endpoints. Both fields are optional.
type startRequest struct {
	Parameters map[string]string `json:"parameters"`
}

type jobExecutionResponse struct {
	ID            string            `json:"id"`
	JobInstanceID string            `json:"job_instance_id"`
	JobName       string            `json:"job_name"`
	Status        string            `json:"status"`
	ExitStatus    string            `json:"exit_status,omitempty"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	RestartOn     string            `json:"restart_on,omitempty"`
	Failures      []string          `json:"failures,omitempty"`
	CreateTime    time.Time         `json:"create_time"`
	StartTime     *time.Time        `json:"start_time,omitempty"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	LastUpdated   time.Time         `json:"last_updated"`
}

type stepMetricsResponse struct {
	Read        int64 `json:"read"`
	Write       int64 `json:"write"`
	Filter      int64 `json:"filter"`
	Commit      int64 `json:"commit"`
	Rollback    int64 `json:"rollback"`
	ReadSkip    int64 `json:"read_skip"`
	ProcessSkip int64 `json:"process_skip"`
	WriteSkip   int64 `json:"write_skip"`
}

type stepExecutionResponse struct {
	ID                    string              `json:"id"`
	StepName              string              `json:"step_name"`
	PartitionIndex        *int                `json:"partition_index,omitempty"`
	ParentStepExecutionID string              `json:"parent_step_execution_id,omitempty"`
	Status                string              `json:"status"`
	ExitStatus            string              `json:"exit_status,omitempty"`
	Metrics               stepMetricsResponse `json:"metrics"`
	Failures              []string            `json:"failures,omitempty"`
	StartTime             *time.Time          `json:"start_time,omitempty"`
	EndTime               *time.Time          `json:"end_time,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toJobExecutionResponse(je *model.JobExecution, maskedKeys []string) jobExecutionResponse {
	return jobExecutionResponse{
		ID:            je.ID,
		JobInstanceID: je.JobInstanceID,
		JobName:       je.JobName,
		Status:        je.Status.String(),
		ExitStatus:    je.ExitStatus,
		Parameters:    je.Parameters.Masked(maskedKeys),
		RestartOn:     je.RestartOn,
		Failures:      je.Failures,
		CreateTime:    je.CreateTime,
		StartTime:     je.StartTime,
		EndTime:       je.EndTime,
		LastUpdated:   je.LastUpdated,
	}
}

func toStepExecutionResponse(se *model.StepExecution) stepExecutionResponse {
	r := stepExecutionResponse{
		ID:                    se.ID,
		StepName:              se.StepName,
		ParentStepExecutionID: se.ParentStepExecutionID,
		Status:                se.Status.String(),
		ExitStatus:            se.ExitStatus,
		Metrics: stepMetricsResponse{
			Read:        se.Metrics.ReadCount,
			Write:       se.Metrics.WriteCount,
			Filter:      se.Metrics.FilterCount,
			Commit:      se.Metrics.CommitCount,
			Rollback:    se.Metrics.RollbackCount,
			ReadSkip:    se.Metrics.ReadSkipCount,
			ProcessSkip: se.Metrics.ProcessSkipCount,
			WriteSkip:   se.Metrics.WriteSkipCount,
		},
		Failures:  se.Failures,
		StartTime: se.StartTime,
		EndTime:   se.EndTime,
	}
	if se.IsPartition() {
		idx := se.PartitionIndex
		r.PartitionIndex = &idx
	}
	return r
}
