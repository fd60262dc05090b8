package step

import (
	"context"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// PartitionCollector sends the data of a partition's collector artifact to the
// partitioned step waiting on the partition.
type PartitionCollector struct {
	jc        *runtime.JobContext
	collector port.PartitionCollector
}

// NewPartitionCollector creates the collector of the partition jc runs, or returns nil
// when jc is not a partition or its step declares no collector.
func NewPartitionCollector(ctx context.Context, jc *runtime.JobContext) (*PartitionCollector, error) {
	sj := jc.SubJob()
	if !jc.IsPartition() || sj.Collector == nil {
		return nil, nil
	}
	c, err := CreateArtifact[port.PartitionCollector](ctx, jc.Runtime().Artifacts, sj.Collector)
	if err != nil {
		return nil, err
	}
	return &PartitionCollector{jc: jc, collector: c}, nil
}

// Collect invokes the collector and sends its data. A nil receiver does nothing.
func (p *PartitionCollector) Collect(ctx context.Context) error {
	if p == nil {
		return nil
	}
	data, err := p.collector.CollectPartitionData(ctx)
	if err != nil {
		return exception.NewBatchError("partition_collector", "PartitionCollector.CollectPartitionData failed", err, false, false)
	}
	sj := p.jc.SubJob()
	return sj.Sink.Send(ctx, runtime.Reply{
		Kind:           runtime.ReplyData,
		SubJobID:       sj.ID,
		PartitionIndex: sj.PartitionIndex,
		Data:           data,
	})
}
