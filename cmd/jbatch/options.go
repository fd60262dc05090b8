package main

import (
	"os"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/cmd/jbatch/internal/step"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/bootstrap"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// applicationOptions assembles the Fx options of the jbatch application.
func applicationOptions(opts cliOptions) ([]fx.Option, error) {
	data := embeddedConfig
	if opts.configPath != "" {
		var err error
		if data, err = os.ReadFile(opts.configPath); err != nil {
			return nil, exception.NewBatchError("main", "failed to read configuration file", err, false, false)
		}
	}
	return []fx.Option{
		fx.Supply(
			config.EmbeddedConfig(data),
			fx.Annotated{Name: "envFilePath", Target: opts.envFilePath},
		),
		bootstrap.Module,
		bootstrap.JobDefinition(embeddedJSL),
		step.Module,
	}, nil
}
