// Package checkpoint decides when a chunk commits and persists the reader and writer
// restart tokens at every commit.
package checkpoint

import (
	"context"
	"strconv"
	"time"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// TransactionTimeoutProperty is the step property holding the chunk transaction timeout
// in seconds for the item checkpoint policy.
const TransactionTimeoutProperty = "transaction-timeout"

// DefaultTransactionTimeout is the chunk transaction timeout in seconds when the step
// declares none.
const DefaultTransactionTimeout = 180

// ItemAlgorithm is the "item" checkpoint policy: a chunk is ready after item-count items
// or once time-limit seconds have elapsed, whichever comes first.
type ItemAlgorithm struct {
	itemCount int
	timeLimit time.Duration
	timeout   int

	count int
	start time.Time
	now   func() time.Time
}

var _ port.CheckpointAlgorithm = (*ItemAlgorithm)(nil)

// NewItemAlgorithm creates the item checkpoint policy of chunk. stepProps supplies the
// transaction timeout.
func NewItemAlgorithm(chunk *jsl.Chunk, stepProps map[string]string) *ItemAlgorithm {
	a := &ItemAlgorithm{
		itemCount: chunk.EffectiveItemCount(),
		timeLimit: time.Duration(chunk.TimeLimit) * time.Second,
		timeout:   DefaultTransactionTimeout,
		now:       time.Now,
	}
	if v, ok := stepProps[TransactionTimeoutProperty]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			a.timeout = n
		} else {
			logger.Warnf("Ignoring invalid %s '%s'; using %d seconds.", TransactionTimeoutProperty, v, a.timeout)
		}
	}
	return a
}

// ItemCount returns the configured chunk size.
func (a *ItemAlgorithm) ItemCount() int { return a.itemCount }

func (a *ItemAlgorithm) CheckpointTimeout(context.Context) (int, error) {
	return a.timeout, nil
}

func (a *ItemAlgorithm) BeginCheckpoint(context.Context) error {
	a.count = 0
	a.start = a.now()
	return nil
}

func (a *ItemAlgorithm) IsReadyToCheckpoint(context.Context) (bool, error) {
	a.count++
	if a.count >= a.itemCount {
		return true, nil
	}
	return a.timeLimit > 0 && a.now().Sub(a.start) >= a.timeLimit, nil
}

func (a *ItemAlgorithm) EndCheckpoint(context.Context) error {
	return nil
}
