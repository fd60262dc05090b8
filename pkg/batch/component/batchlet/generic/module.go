package generic

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// RandomFailBatchletRef is the reference name of RandomFailBatchlet.
const RandomFailBatchletRef = "randomFailBatchlet"

func randomFailBatchletArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: RandomFailBatchletRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewRandomFailBatchlet(properties)
	}}
}

// Module contributes the generic batchlets to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(support.AsArtifact(randomFailBatchletArtifact)),
)
