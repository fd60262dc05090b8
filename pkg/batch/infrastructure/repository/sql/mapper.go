package sql

import (
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

func toJobInstanceEntity(d *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:         d.ID,
		JobName:    d.JobName,
		CreateTime: d.CreateTime,
		Version:    d.Version,
	}
}

func fromJobInstanceEntity(e *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:         e.ID,
		JobName:    e.JobName,
		CreateTime: e.CreateTime,
		Version:    e.Version,
	}
}

func toJobExecutionEntity(d *model.JobExecution) *JobExecutionEntity {
	failures := d.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	return &JobExecutionEntity{
		ID:            d.ID,
		JobInstanceID: d.JobInstanceID,
		JobName:       d.JobName,
		Status:        d.Status.String(),
		ExitStatus:    d.ExitStatus,
		Parameters:    d.Parameters.Copy(),
		RestartOn:     d.RestartOn,
		Failures:      failures,
		CreateTime:    d.CreateTime,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		LastUpdated:   d.LastUpdated,
		Version:       d.Version,
	}
}

func fromJobExecutionEntity(e *JobExecutionEntity) *model.JobExecution {
	params := e.Parameters
	if params == nil {
		params = model.NewJobParameters()
	}
	return &model.JobExecution{
		ID:            e.ID,
		JobInstanceID: e.JobInstanceID,
		JobName:       e.JobName,
		Status:        model.BatchStatus(e.Status),
		ExitStatus:    e.ExitStatus,
		Parameters:    params,
		RestartOn:     e.RestartOn,
		Failures:      e.Failures,
		CreateTime:    e.CreateTime,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		LastUpdated:   e.LastUpdated,
		Version:       e.Version,
	}
}

// jobExecutionColumns are the columns an update writes.
func jobExecutionColumns(e *JobExecutionEntity) map[string]interface{} {
	return map[string]interface{}{
		"status":       e.Status,
		"exit_status":  e.ExitStatus,
		"parameters":   e.Parameters,
		"restart_on":   e.RestartOn,
		"failures":     e.Failures,
		"start_time":   e.StartTime,
		"end_time":     e.EndTime,
		"last_updated": e.LastUpdated,
		"version":      e.Version,
	}
}

func toStepExecutionEntity(d *model.StepExecution) *StepExecutionEntity {
	failures := d.Failures
	if failures == nil {
		failures = model.FailureList{}
	}
	return &StepExecutionEntity{
		ID:                    d.ID,
		JobExecutionID:        d.JobExecutionID,
		JobInstanceID:         d.JobInstanceID,
		StepName:              d.StepName,
		PartitionIndex:        d.PartitionIndex,
		ParentStepExecutionID: d.ParentStepExecutionID,
		Status:                d.Status.String(),
		ExitStatus:            d.ExitStatus,
		Metrics:               d.Metrics,
		PersistentUserData:    d.PersistentUserData,
		Failures:              failures,
		StartTime:             d.StartTime,
		EndTime:               d.EndTime,
		LastUpdated:           d.LastUpdated,
		Version:               d.Version,
	}
}

func fromStepExecutionEntity(e *StepExecutionEntity) *model.StepExecution {
	return &model.StepExecution{
		ID:                    e.ID,
		JobExecutionID:        e.JobExecutionID,
		JobInstanceID:         e.JobInstanceID,
		StepName:              e.StepName,
		PartitionIndex:        e.PartitionIndex,
		ParentStepExecutionID: e.ParentStepExecutionID,
		Status:                model.BatchStatus(e.Status),
		ExitStatus:            e.ExitStatus,
		Metrics:               e.Metrics,
		PersistentUserData:    e.PersistentUserData,
		Failures:              e.Failures,
		StartTime:             e.StartTime,
		EndTime:               e.EndTime,
		LastUpdated:           e.LastUpdated,
		Version:               e.Version,
	}
}

func stepExecutionColumns(e *StepExecutionEntity) map[string]interface{} {
	return map[string]interface{}{
		"status":               e.Status,
		"exit_status":          e.ExitStatus,
		"metrics":              e.Metrics,
		"persistent_user_data": e.PersistentUserData,
		"failures":             e.Failures,
		"start_time":           e.StartTime,
		"end_time":             e.EndTime,
		"last_updated":         e.LastUpdated,
		"version":              e.Version,
	}
}

func toStepStatusEntity(d *model.StepStatus) *StepStatusEntity {
	return &StepStatusEntity{
		JobInstanceID:          d.JobInstanceID,
		StepName:               d.StepName,
		Status:                 d.Status.String(),
		ExitStatus:             d.ExitStatus,
		StartCount:             d.StartCount,
		NumPartitions:          d.NumPartitions,
		PersistentUserData:     d.PersistentUserData,
		LastRunStepExecutionID: d.LastRunStepExecutionID,
		LastUpdated:            d.LastUpdated,
		Version:                d.Version,
	}
}

func fromStepStatusEntity(e *StepStatusEntity) *model.StepStatus {
	return &model.StepStatus{
		JobInstanceID:          e.JobInstanceID,
		StepName:               e.StepName,
		Status:                 model.BatchStatus(e.Status),
		ExitStatus:             e.ExitStatus,
		StartCount:             e.StartCount,
		NumPartitions:          e.NumPartitions,
		PersistentUserData:     e.PersistentUserData,
		LastRunStepExecutionID: e.LastRunStepExecutionID,
		LastUpdated:            e.LastUpdated,
		Version:                e.Version,
	}
}

func stepStatusColumns(e *StepStatusEntity) map[string]interface{} {
	return map[string]interface{}{
		"status":                     e.Status,
		"exit_status":                e.ExitStatus,
		"start_count":                e.StartCount,
		"num_partitions":             e.NumPartitions,
		"persistent_user_data":       e.PersistentUserData,
		"last_run_step_execution_id": e.LastRunStepExecutionID,
		"last_updated":               e.LastUpdated,
		"version":                    e.Version,
	}
}

func toCheckpointDataEntity(d *model.CheckpointData) *CheckpointDataEntity {
	return &CheckpointDataEntity{
		JobInstanceID:  d.Key.JobInstanceID,
		StepName:       d.Key.StepName,
		CheckpointType: string(d.Key.Type),
		Token:          d.Token,
		LastUpdated:    d.LastUpdated,
	}
}

func fromCheckpointDataEntity(e *CheckpointDataEntity) *model.CheckpointData {
	key := model.CheckpointKey{
		JobInstanceID: e.JobInstanceID,
		StepName:      e.StepName,
		Type:          model.CheckpointType(e.CheckpointType),
	}
	c := model.NewCheckpointData(key, e.Token)
	c.LastUpdated = e.LastUpdated
	return c
}
