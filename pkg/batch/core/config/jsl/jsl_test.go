package jsl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payrollYAML = `
id: payroll
properties:
  region: eu
listeners:
  - ref: jobLoggingListener
elements:
  - step:
      id: load
      next: branch
      start-limit: 3
      chunk:
        reader: {ref: listReader}
        writer: {ref: logWriter}
        item-count: 5
        skip-limit: 2
        skippable-exception-classes:
          include: [ErrBadRecord]
  - decision:
      id: branch
      ref: exitStatusDecider
      transitions:
        - {on: "SKIP*", to: report}
        - {on: "HALT", stop: true, exit-status: HALTED, restart: report}
        - {on: "*", end: true}
  - split:
      id: report
      flows:
        - id: f1
          elements:
            - step: {id: r1, batchlet: {ref: noopBatchlet}}
        - id: f2
          elements:
            - step: {id: r2a, next: r2b, batchlet: {ref: noopBatchlet}}
            - step: {id: r2b, batchlet: {ref: noopBatchlet}}
`

func TestParse(t *testing.T) {
	job, err := jsl.Parse([]byte(payrollYAML))
	require.NoError(t, err)

	assert.Equal(t, "payroll", job.ID)
	assert.True(t, job.IsRestartable())
	require.Len(t, job.Elements, 3)

	load := job.Elements[0].(*jsl.Step)
	assert.Equal(t, jsl.KindStep, load.Kind())
	assert.Equal(t, 3, load.StartLimit)
	assert.Equal(t, 5, load.Chunk.EffectiveItemCount())
	assert.Equal(t, []string{"ErrBadRecord"}, load.Chunk.SkippableExceptions.Include)

	branch := job.Elements[1].(*jsl.Decision)
	require.Len(t, branch.Transitions, 3)
	assert.True(t, branch.Transitions[1].Stop)
	assert.Equal(t, "report", branch.Transitions[1].Restart)

	split := job.Elements[2].(*jsl.Split)
	require.Len(t, split.Flows, 2)
	assert.Equal(t, "r2b", split.Flows[1].LastStep().ID)
}

func TestClone(t *testing.T) {
	job, err := jsl.Parse([]byte(payrollYAML))
	require.NoError(t, err)

	c := job.Clone()
	c.Properties["region"] = "us"
	c.Elements[0].(*jsl.Step).Chunk.SkippableExceptions.Include[0] = "Other"
	c.Elements[2].(*jsl.Split).Flows[0].ID = "changed"

	assert.Equal(t, "eu", job.Properties["region"])
	assert.Equal(t, "ErrBadRecord", job.Elements[0].(*jsl.Step).Chunk.SkippableExceptions.Include[0])
	assert.Equal(t, "f1", job.Elements[2].(*jsl.Split).Flows[0].ID)
}

func TestMatchExitStatus(t *testing.T) {
	cases := []struct {
		pattern, status string
		want            bool
	}{
		{"*", "", true},
		{"*", "COMPLETED", true},
		{"COMPLETED", "COMPLETED", true},
		{"COMPLETED", "COMPLETE", false},
		{"COMP*", "COMPLETED", true},
		{"*ED", "FAILED", true},
		{"C?MPLETED", "COMPLETED", true},
		{"C?MPLETED", "CMPLETED", false},
		{"*FAIL*", "PARTIAL_FAILURE", true},
		{"?", "", false},
		{"", "", true},
		{"", "X", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, jsl.MatchExitStatus(c.pattern, c.status), "%q vs %q", c.pattern, c.status)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"decision after decision": `
id: j
elements:
  - decision: {id: d1, ref: x, transitions: [{on: "*", to: d2}]}
  - decision: {id: d2, ref: x}
`,
		"step without content": `
id: j
elements:
  - step: {id: s1}
`,
		"step with both": `
id: j
elements:
  - step: {id: s1, batchlet: {ref: b}, chunk: {reader: {ref: r}, writer: {ref: w}}}
`,
		"duplicate ids": `
id: j
elements:
  - step: {id: s1, next: s1, batchlet: {ref: b}}
  - step: {id: s1, batchlet: {ref: b}}
`,
		"unknown next": `
id: j
elements:
  - step: {id: s1, next: nowhere, batchlet: {ref: b}}
`,
		"negative start limit": `
id: j
elements:
  - step: {id: s1, start-limit: -1, batchlet: {ref: b}}
`,
		"mapper and plan": `
id: j
elements:
  - step:
      id: s1
      batchlet: {ref: b}
      partition: {mapper: {ref: m}, plan: {partitions: 2}}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := jsl.Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, exception.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	_, err := jsl.Parse([]byte(`
id: j
elements:
  - step: {id: s1, start-limit: -2}
`))
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
}

func TestRegistry(t *testing.T) {
	r := jsl.NewRegistry()
	_, err := r.Load([]byte(payrollYAML))
	require.NoError(t, err)
	_, err = r.Load([]byte(payrollYAML))
	assert.True(t, exception.IsConfigurationError(err))

	j1, ok := r.Get("payroll")
	require.True(t, ok)
	j1.ID = "mutated"
	j2, _ := r.Get("payroll")
	assert.Equal(t, "payroll", j2.ID)
	assert.Equal(t, []string{"payroll"}, r.Names())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payroll.yaml"), []byte(payrollYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a job"), 0o600))
	other := "id: cleanup\nelements:\n  - step: {id: s1, chunk: {reader: {ref: r}, writer: {ref: w}}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cleanup.yml"), []byte(other), 0o600))

	r := jsl.NewRegistry()
	require.NoError(t, r.LoadDir(dir))
	assert.Equal(t, []string{"cleanup", "payroll"}, r.Names())

	require.Error(t, r.LoadDir(filepath.Join(dir, "missing")))
}

func TestSetDefaultItemCount(t *testing.T) {
	job, err := jsl.Parse([]byte("id: cleanup\nelements:\n  - step: {id: s1, next: s2, chunk: {reader: {ref: r}, writer: {ref: w}}}\n  - step: {id: s2, chunk: {reader: {ref: r}, writer: {ref: w}, item-count: 3}}\n"))
	require.NoError(t, err)
	job.SetDefaultItemCount(50)

	assert.Equal(t, 50, job.Elements[0].(*jsl.Step).Chunk.EffectiveItemCount())
	assert.Equal(t, 3, job.Elements[1].(*jsl.Step).Chunk.EffectiveItemCount(), "declared counts are kept")
}
