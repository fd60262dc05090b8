package step

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// HelloBatchletRef is the JSL ref of HelloBatchlet.
const HelloBatchletRef = "helloBatchlet"

// Module contributes the sample artifacts to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(support.AsArtifact(func() support.NamedArtifact {
		return support.NamedArtifact{Name: HelloBatchletRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
			return NewHelloBatchlet(properties)
		}}
	})),
)
