// Package generic provides general purpose batchlets.
package generic

import (
	"context"
	"math/rand/v2"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

// RandomFailBatchletConfig holds the JSL properties of RandomFailBatchlet.
type RandomFailBatchletConfig struct {
	// FailRate is the probability of failure (0.0 - 1.0), used when FailCount is 0.
	FailRate float64 `mapstructure:"failRate"`
	// FailCount makes the first FailCount runs of the step fail.
	FailCount int `mapstructure:"failCount"`
}

// RandomFailBatchlet fails on purpose, to exercise restart. The number of runs is kept in
// the persistent user data of the step, so it survives restarts of the job.
type RandomFailBatchlet struct {
	cfg RandomFailBatchletConfig
}

// NewRandomFailBatchlet creates a batchlet from its JSL properties.
func NewRandomFailBatchlet(properties map[string]string) (*RandomFailBatchlet, error) {
	cfg := RandomFailBatchletConfig{FailRate: 0.5}
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	return &RandomFailBatchlet{cfg: cfg}, nil
}

// Process implements port.Batchlet.
func (b *RandomFailBatchlet) Process(ctx context.Context) (string, error) {
	sc, ok := port.StepContextFrom(ctx)
	if !ok {
		return "", exception.NewIllegalStateError("random_fail_batchlet", "no StepContext in context")
	}
	run := 0
	if _, err := serialization.UnmarshalToken(sc.PersistentUserData(), &run); err != nil {
		return "", err
	}
	run++
	data, err := serialization.MarshalToken(run)
	if err != nil {
		return "", err
	}
	sc.SetPersistentUserData(data)

	shouldFail := rand.Float64() < b.cfg.FailRate
	if b.cfg.FailCount > 0 {
		shouldFail = run <= b.cfg.FailCount
	}
	if shouldFail {
		logger.Errorf("RandomFailBatchlet '%s' (Run %d): Intentionally failing (Rate: %.2f, Count: %d).", sc.StepName(), run, b.cfg.FailRate, b.cfg.FailCount)
		return "", exception.NewBatchErrorf(sc.StepName(), "Random failure occurred on run %d", run)
	}
	logger.Infof("RandomFailBatchlet '%s' (Run %d): Completed successfully.", sc.StepName(), run)
	return "COMPLETED", nil
}

// Stop implements port.Batchlet.
func (b *RandomFailBatchlet) Stop(ctx context.Context) error { return nil }

var _ port.Batchlet = (*RandomFailBatchlet)(nil)
