package model

import (
	"fmt"
	"time"
)

// CheckpointType distinguishes reader and writer restart tokens.
type CheckpointType string

const (
	CheckpointReader CheckpointType = "READER"
	CheckpointWriter CheckpointType = "WRITER"
)

// CheckpointKey identifies one restart token.
type CheckpointKey struct {
	JobInstanceID string
	// StepName is the step id, or PartitionStepKey(step, index) inside a partition.
	StepName string
	Type     CheckpointType
}

// String renders the key for logs.
func (k CheckpointKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.JobInstanceID, k.StepName, k.Type)
}

// CheckpointData is the opaque restart token produced by a reader or writer.
type CheckpointData struct {
	Key         CheckpointKey
	Token       []byte
	LastUpdated time.Time
}

// NewCheckpointData creates a CheckpointData holding a copy of token.
func NewCheckpointData(key CheckpointKey, token []byte) *CheckpointData {
	return &CheckpointData{
		Key:         key,
		Token:       append([]byte(nil), token...),
		LastUpdated: time.Now(),
	}
}
