package kernel

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

type kernelParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Runtime   *runtime.RuntimeContext
	Runner    *runner.JobRunner
	Options   Options `optional:"true"`
}

// NewModuleKernel builds the BatchKernel and stops it with the application.
func NewModuleKernel(p kernelParams) (*BatchKernel, error) {
	k, err := NewBatchKernel(p.Runtime, p.Runner, p.Options)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Stopping BatchKernel.")
			return k.Shutdown(ctx)
		},
	})
	return k, nil
}

// Module provides the BatchKernel. The RuntimeContext must be provided elsewhere; the
// kernel installs itself as its Submitter.
var Module = fx.Options(
	fx.Provide(NewModuleKernel),
)
