// Package item provides general purpose item artifacts: a list reader, a pass-through
// processor and a discarding writer.
package item

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// Reference names under which the artifacts of this package are registered.
const (
	ListItemReaderRef           = "listItemReader"
	PassThroughItemProcessorRef = "passThroughItemProcessor"
	NoOpItemWriterRef           = "noOpItemWriter"
)

func listItemReaderArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: ListItemReaderRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewListItemReaderFromProperties(properties), nil
	}}
}

func passThroughItemProcessorArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: PassThroughItemProcessorRef, Builder: func(context.Context, map[string]string) (any, error) {
		return NewPassThroughItemProcessor(), nil
	}}
}

func noOpItemWriterArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: NoOpItemWriterRef, Builder: func(context.Context, map[string]string) (any, error) {
		return NewNoOpItemWriter(), nil
	}}
}

// Module contributes the item artifacts to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(
		support.AsArtifact(listItemReaderArtifact),
		support.AsArtifact(passThroughItemProcessorArtifact),
		support.AsArtifact(noOpItemWriterArtifact),
	),
)
