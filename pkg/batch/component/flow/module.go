package flow

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// ExitStatusDeciderRef is the reference name of ExitStatusDecider.
const ExitStatusDeciderRef = "exitStatusDecider"

func exitStatusDeciderArtifact() support.NamedArtifact {
	return support.NamedArtifact{Name: ExitStatusDeciderRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewExitStatusDecider(properties)
	}}
}

// Module contributes the deciders to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(support.AsArtifact(exitStatusDeciderArtifact)),
)
