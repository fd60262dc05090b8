package support

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
)

// ArtifactsParams collects every artifact contributed to the "artifacts" group.
type ArtifactsParams struct {
	fx.In
	Artifacts []NamedArtifact `group:"artifacts"`
}

// NewRegistryFromGroup builds the ArtifactRegistry from the contributed artifacts.
func NewRegistryFromGroup(p ArtifactsParams) *ArtifactRegistry {
	r := NewArtifactRegistry()
	for _, a := range p.Artifacts {
		r.Register(a.Name, a.Builder)
	}
	return r
}

// AsArtifact annotates a NamedArtifact constructor for the "artifacts" group.
func AsArtifact(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"artifacts"`))
}

// Module provides the ArtifactRegistry and binds it as the port.ArtifactFactory.
var Module = fx.Options(
	fx.Provide(
		NewRegistryFromGroup,
		func(r *ArtifactRegistry) port.ArtifactFactory { return r },
	),
)
