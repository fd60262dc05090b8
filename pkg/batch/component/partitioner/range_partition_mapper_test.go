package partitioner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/component/partitioner"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

func TestRangePartitionMapper(t *testing.T) {
	cases := []struct {
		name   string
		props  map[string]string
		ranges [][2]string
	}{
		{
			name:   "even split",
			props:  map[string]string{"start": "1", "end": "9", "partitions": "3"},
			ranges: [][2]string{{"1", "3"}, {"4", "6"}, {"7", "9"}},
		},
		{
			name:   "remainder goes to the first partitions",
			props:  map[string]string{"start": "0", "end": "9", "partitions": "3"},
			ranges: [][2]string{{"0", "3"}, {"4", "6"}, {"7", "9"}},
		},
		{
			name:   "capped at range size",
			props:  map[string]string{"start": "5", "end": "6", "partitions": "4"},
			ranges: [][2]string{{"5", "5"}, {"6", "6"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := partitioner.NewRangePartitionMapper(tc.props)
			require.NoError(t, err)
			plan, err := m.MapPartitions(context.Background())
			require.NoError(t, err)
			require.NoError(t, plan.Validate())
			require.Equal(t, len(tc.ranges), plan.Partitions)
			for i, r := range tc.ranges {
				assert.Equal(t, map[string]string{"start": r[0], "end": r[1]}, plan.PropertiesFor(i), "partition %d", i)
			}
		})
	}
}

func TestRangePartitionMapper_ThreadsAndOverride(t *testing.T) {
	m, err := partitioner.NewRangePartitionMapper(map[string]string{"start": "1", "end": "100", "partitions": "4", "threads": "2", "override": "true"})
	require.NoError(t, err)
	plan, err := m.MapPartitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, plan.EffectiveThreads())
	assert.True(t, plan.Override)
}

func TestRangePartitionMapper_InvalidProperties(t *testing.T) {
	for _, props := range []map[string]string{
		{"start": "10", "end": "1"},
		{"start": "1", "end": "10", "partitions": "0"},
		{"start": "1", "end": "10", "threads": "-1"},
		{"start": "one"},
	} {
		_, err := partitioner.NewRangePartitionMapper(props)
		assert.True(t, exception.IsConfigurationError(err), "%v: %v", props, err)
	}
}
