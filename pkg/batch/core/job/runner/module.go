package runner

import (
	"go.uber.org/fx"
)

// Module provides the JobRunner.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
