package sql

import (
	"time"

	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
)

// Table names of the repository schema.
const (
	tableJobInstance    = "batch_job_instance"
	tableJobExecution   = "batch_job_execution"
	tableStepExecution  = "batch_step_execution"
	tableStepStatus     = "batch_step_status"
	tableCheckpointData = "batch_checkpoint_data"
)

// JobInstanceEntity is the row of batch_job_instance. Seq orders instances by creation.
type JobInstanceEntity struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID         string    `gorm:"column:id"`
	JobName    string    `gorm:"column:job_name"`
	CreateTime time.Time `gorm:"column:create_time"`
	Version    int       `gorm:"column:version"`
}

func (JobInstanceEntity) TableName() string { return tableJobInstance }

// JobExecutionEntity is the row of batch_job_execution.
type JobExecutionEntity struct {
	Seq           int64               `gorm:"column:seq;primaryKey;autoIncrement"`
	ID            string              `gorm:"column:id"`
	JobInstanceID string              `gorm:"column:job_instance_id"`
	JobName       string              `gorm:"column:job_name"`
	Status        string              `gorm:"column:status"`
	ExitStatus    string              `gorm:"column:exit_status"`
	Parameters    model.JobParameters `gorm:"column:parameters"`
	RestartOn     string              `gorm:"column:restart_on"`
	Failures      model.FailureList   `gorm:"column:failures"`
	CreateTime    time.Time           `gorm:"column:create_time"`
	StartTime     *time.Time          `gorm:"column:start_time"`
	EndTime       *time.Time          `gorm:"column:end_time"`
	LastUpdated   time.Time           `gorm:"column:last_updated"`
	Version       int                 `gorm:"column:version"`
}

func (JobExecutionEntity) TableName() string { return tableJobExecution }

// StepExecutionEntity is the row of batch_step_execution. Metrics and Failures are
// stored as JSON text.
type StepExecutionEntity struct {
	Seq                   int64             `gorm:"column:seq;primaryKey;autoIncrement"`
	ID                    string            `gorm:"column:id"`
	JobExecutionID        string            `gorm:"column:job_execution_id"`
	JobInstanceID         string            `gorm:"column:job_instance_id"`
	StepName              string            `gorm:"column:step_name"`
	PartitionIndex        int               `gorm:"column:partition_index"`
	ParentStepExecutionID string            `gorm:"column:parent_step_execution_id"`
	Status                string            `gorm:"column:status"`
	ExitStatus            string            `gorm:"column:exit_status"`
	Metrics               model.StepMetrics `gorm:"column:metrics"`
	PersistentUserData    []byte            `gorm:"column:persistent_user_data"`
	Failures              model.FailureList `gorm:"column:failures"`
	StartTime             *time.Time        `gorm:"column:start_time"`
	EndTime               *time.Time        `gorm:"column:end_time"`
	LastUpdated           time.Time         `gorm:"column:last_updated"`
	Version               int               `gorm:"column:version"`
}

func (StepExecutionEntity) TableName() string { return tableStepExecution }

// StepStatusEntity is the row of batch_step_status.
type StepStatusEntity struct {
	JobInstanceID          string    `gorm:"column:job_instance_id;primaryKey"`
	StepName               string    `gorm:"column:step_name;primaryKey"`
	Status                 string    `gorm:"column:status"`
	ExitStatus             string    `gorm:"column:exit_status"`
	StartCount             int       `gorm:"column:start_count"`
	NumPartitions          int       `gorm:"column:num_partitions"`
	PersistentUserData     []byte    `gorm:"column:persistent_user_data"`
	LastRunStepExecutionID string    `gorm:"column:last_run_step_execution_id"`
	LastUpdated            time.Time `gorm:"column:last_updated"`
	Version                int       `gorm:"column:version"`
}

func (StepStatusEntity) TableName() string { return tableStepStatus }

// CheckpointDataEntity is the row of batch_checkpoint_data.
type CheckpointDataEntity struct {
	JobInstanceID  string    `gorm:"column:job_instance_id;primaryKey"`
	StepName       string    `gorm:"column:step_name;primaryKey"`
	CheckpointType string    `gorm:"column:checkpoint_type;primaryKey"`
	Token          []byte    `gorm:"column:token"`
	LastUpdated    time.Time `gorm:"column:last_updated"`
}

func (CheckpointDataEntity) TableName() string { return tableCheckpointData }
