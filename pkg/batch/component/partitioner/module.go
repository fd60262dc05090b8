package partitioner

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// RangePartitionMapperRef is the reference name of RangePartitionMapper.
const RangePartitionMapperRef = "rangePartitionMapper"

func rangePartitionMapperArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: RangePartitionMapperRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewRangePartitionMapper(properties)
	}}
}

// Module contributes the partition mappers to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(support.AsArtifact(rangePartitionMapperArtifact)),
)
