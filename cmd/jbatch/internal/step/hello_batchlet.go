// Package step holds the artifacts of the jbatch sample jobs.
package step

import (
	"context"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	configbinder "github.com/tigerroll/jbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// HelloBatchletConfig binds the JSL properties of HelloBatchlet.
type HelloBatchletConfig struct {
	Message    string `yaml:"message"`
	// ExitStatus is returned by Process. Defaults to COMPLETED.
	ExitStatus string `yaml:"exit_status"`
}

// HelloBatchlet logs a configurable message.
type HelloBatchlet struct {
	config HelloBatchletConfig
}

// NewHelloBatchlet binds properties to a HelloBatchlet. The message property is required.
func NewHelloBatchlet(properties map[string]string) (*HelloBatchlet, error) {
	cfg := HelloBatchletConfig{ExitStatus: "COMPLETED"}
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError("hello_batchlet", "Failed to bind properties", err, false, false)
	}
	if cfg.Message == "" {
		return nil, exception.NewConfigurationError("hello_batchlet", "message property is required for HelloBatchlet")
	}
	return &HelloBatchlet{config: cfg}, nil
}

// Process implements port.Batchlet.
func (b *HelloBatchlet) Process(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := "?"
	if sc, ok := port.StepContextFrom(ctx); ok {
		name = sc.StepName()
	}
	logger.Infof("HelloBatchlet[%s]: %s", name, b.config.Message)
	return b.config.ExitStatus, nil
}

// Stop implements port.Batchlet.
func (b *HelloBatchlet) Stop(ctx context.Context) error {
	logger.Debugf("HelloBatchlet: Stop called.")
	return nil
}
