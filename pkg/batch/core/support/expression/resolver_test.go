package expression_test

import (
	"testing"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/core/support/expression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	src := expression.Sources{
		JobParameters: map[string]string{"date": "2024-05-01"},
		JobProperties: map[string]string{"table": "orders"},
	}
	assert.Equal(t, "orders_2024-05-01", expression.Resolve("#{jobProperties['table']}_#{jobParameters['date']}", src))
	assert.Equal(t, "eu", expression.Resolve("#{jobParameters['region']}?:eu;", src))
	assert.Equal(t, "", expression.Resolve("#{jobParameters['region']}", src))
	assert.Equal(t, "plain", expression.Resolve("plain", src))
	assert.Equal(t, "#{partitionPlan['from']}", expression.Resolve("#{partitionPlan['from']}", src),
		"partition expressions wait for the partition")

	src.PartitionPlan = map[string]string{"from": "100"}
	assert.Equal(t, "100", expression.Resolve("#{partitionPlan['from']}", src))
}

const jobYAML = `
id: export
properties:
  table: "#{jobParameters['table']}?:orders;"
elements:
  - step:
      id: dump
      partition:
        plan:
          partitions: 2
          properties:
            - {from: "0"}
            - {from: "#{jobParameters['split']}"}
      chunk:
        reader:
          ref: sqlPagingReader
          properties:
            table: "#{jobProperties['table']}"
            from: "#{partitionPlan['from']}"
        writer: {ref: logWriter}
`

func TestResolveJobAndPartition(t *testing.T) {
	job, err := jsl.Parse([]byte(jobYAML))
	require.NoError(t, err)

	resolved := expression.ResolveJob(job, map[string]string{"split": "500"})
	assert.Equal(t, "orders", resolved.Properties["table"])

	step := resolved.Elements[0].(*jsl.Step)
	assert.Equal(t, "orders", step.Chunk.Reader.Properties["table"])
	assert.Equal(t, "#{partitionPlan['from']}", step.Chunk.Reader.Properties["from"])
	assert.Equal(t, "500", step.Partition.Plan.Properties[1]["from"])

	p1 := expression.ResolveStepForPartition(step, resolved.Properties, nil, step.Partition.Plan.Properties[1])
	assert.Equal(t, "500", p1.Chunk.Reader.Properties["from"])
	assert.Equal(t, "#{partitionPlan['from']}", step.Chunk.Reader.Properties["from"], "the shared definition is untouched")

	original := job.Elements[0].(*jsl.Step)
	assert.Equal(t, "#{jobProperties['table']}", original.Chunk.Reader.Properties["table"])
}
