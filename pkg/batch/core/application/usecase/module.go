package usecase

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
)

// Module is the Fx module for the job launcher, JobOperator and JobExplorer.
// It expects a *kernel.BatchKernel and a *jsl.Registry in the graph.
var Module = fx.Options(
	fx.Provide(
		func(k *kernel.BatchKernel) JobSubmitter { return k },
		func(r *jsl.Registry) JobDefinitions { return r },
		NewSimpleJobLauncher,
		fx.Annotate(NewSimpleJobExplorer, fx.As(new(JobExplorer))),
		fx.Annotate(NewDefaultJobOperator, fx.As(new(JobOperator))),
	),
)
