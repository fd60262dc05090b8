package model

import (
	"fmt"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// PartitionStepKey is the step name under which a partition keeps its StepStatus and checkpoints.
func PartitionStepKey(stepName string, index int) string {
	return fmt.Sprintf("%s:%d", stepName, index)
}

// PartitionPlan describes how a step is fanned out.
type PartitionPlan struct {
	Partitions int
	// Threads bounds concurrent partitions; zero means one thread per partition.
	Threads int
	// Properties holds one property map per partition, indexed by partition number.
	Properties []map[string]string
	// Override discards prior partition results on restart.
	Override bool
}

// EffectiveThreads returns the concurrency bound for the plan.
func (p *PartitionPlan) EffectiveThreads() int {
	if p.Threads <= 0 || p.Threads > p.Partitions {
		return p.Partitions
	}
	return p.Threads
}

// PropertiesFor returns the properties of partition i, or nil if none were given.
func (p *PartitionPlan) PropertiesFor(i int) map[string]string {
	if i < 0 || i >= len(p.Properties) {
		return nil
	}
	return p.Properties[i]
}

// Validate rejects malformed plans.
func (p *PartitionPlan) Validate() error {
	if p.Partitions <= 0 {
		return exception.NewConfigurationError("model", "partition plan must have at least one partition, got %d", p.Partitions)
	}
	if p.Threads < 0 {
		return exception.NewConfigurationError("model", "partition plan threads must not be negative, got %d", p.Threads)
	}
	if len(p.Properties) > p.Partitions {
		return exception.NewConfigurationError("model",
			"partition plan has %d property sets for %d partitions", len(p.Properties), p.Partitions)
	}
	return nil
}

// PartitionExecutionType classifies how a partitioned step is (re)started.
type PartitionExecutionType int

const (
	PartitionStart PartitionExecutionType = iota
	PartitionRestartNormal
	PartitionRestartOverride
	PartitionRestartAfterCompletion
)

func (t PartitionExecutionType) String() string {
	switch t {
	case PartitionStart:
		return "START"
	case PartitionRestartNormal:
		return "RESTART_NORMAL"
	case PartitionRestartOverride:
		return "RESTART_OVERRIDE"
	case PartitionRestartAfterCompletion:
		return "RESTART_AFTER_COMPLETION"
	}
	return fmt.Sprintf("PartitionExecutionType(%d)", int(t))
}
