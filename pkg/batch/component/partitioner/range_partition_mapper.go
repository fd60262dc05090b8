// Package partitioner provides partition mappers.
package partitioner

import (
	"context"
	"strconv"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

const moduleName = "partitioner"

// RangePartitionMapperConfig holds the JSL properties of RangePartitionMapper.
type RangePartitionMapperConfig struct {
	// Start and End bound the key range, both inclusive.
	Start int64 `mapstructure:"start"`
	End   int64 `mapstructure:"end"`
	// Partitions is the number of sub-ranges. It is capped at the size of the range.
	Partitions int `mapstructure:"partitions"`
	// Threads bounds concurrent partitions; zero runs them all at once.
	Threads  int  `mapstructure:"threads"`
	Override bool `mapstructure:"override"`
}

// RangePartitionMapper splits [start, end] into contiguous sub-ranges of near equal size.
// Each partition receives its bounds as the "start" and "end" properties.
type RangePartitionMapper struct {
	cfg RangePartitionMapperConfig
}

// NewRangePartitionMapper creates a mapper from its JSL properties.
func NewRangePartitionMapper(properties map[string]string) (*RangePartitionMapper, error) {
	cfg := RangePartitionMapperConfig{Partitions: 1}
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	if cfg.End < cfg.Start {
		return nil, exception.NewConfigurationError(moduleName, "end (%d) must not be less than start (%d)", cfg.End, cfg.Start)
	}
	if cfg.Partitions <= 0 {
		return nil, exception.NewConfigurationError(moduleName, "partitions must be positive, got %d", cfg.Partitions)
	}
	if cfg.Threads < 0 {
		return nil, exception.NewConfigurationError(moduleName, "threads must not be negative, got %d", cfg.Threads)
	}
	return &RangePartitionMapper{cfg: cfg}, nil
}

// MapPartitions implements port.PartitionMapper.
func (m *RangePartitionMapper) MapPartitions(ctx context.Context) (*model.PartitionPlan, error) {
	size := m.cfg.End - m.cfg.Start + 1
	n := int64(m.cfg.Partitions)
	if n > size {
		n = size
	}
	plan := &model.PartitionPlan{
		Partitions: int(n),
		Threads:    m.cfg.Threads,
		Override:   m.cfg.Override,
		Properties: make([]map[string]string, 0, n),
	}
	// The first size%n partitions take one extra key.
	base, extra := size/n, size%n
	lo := m.cfg.Start
	for i := int64(0); i < n; i++ {
		width := base
		if i < extra {
			width++
		}
		hi := lo + width - 1
		plan.Properties = append(plan.Properties, map[string]string{
			"start": strconv.FormatInt(lo, 10),
			"end":   strconv.FormatInt(hi, 10),
		})
		lo = hi + 1
	}
	logger.Debugf("RangePartitionMapper: split [%d, %d] into %d partitions.", m.cfg.Start, m.cfg.End, n)
	return plan, nil
}

var _ port.PartitionMapper = (*RangePartitionMapper)(nil)
