package local

import (
	"go.uber.org/fx"
)

// Module contributes the local storage provider to the storage_providers group.
var Module = fx.Provide(fx.Annotate(
	NewProvider,
	fx.ResultTags(`group:"storage_providers"`),
))
