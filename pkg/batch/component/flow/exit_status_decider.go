// Package flow provides deciders for JSL decision elements.
package flow

import (
	"context"
	"strings"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

const moduleName = "flow"

// ExitStatusDeciderConfig holds the JSL properties of ExitStatusDecider.
type ExitStatusDeciderConfig struct {
	// Prefer lists exit statuses, by priority, looked up across all preceding executions
	// before falling back to the last one. Useful after a split.
	Prefer string `mapstructure:"prefer"`
	// Mapping rewrites exit statuses, e.g. "FAILED=RETRY,COMPLETED=DONE".
	Mapping string `mapstructure:"mapping"`
	// Default is returned when there is no preceding execution.
	Default string `mapstructure:"default"`
}

// ExitStatusDecider routes a flow on the exit status of the executions that precede the decision.
type ExitStatusDecider struct {
	prefer  []string
	mapping map[string]string
	def     string
}

// NewExitStatusDecider creates a decider from its JSL properties.
func NewExitStatusDecider(properties map[string]string) (*ExitStatusDecider, error) {
	cfg := ExitStatusDeciderConfig{Default: model.BatchStatusCompleted.String()}
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	d := &ExitStatusDecider{prefer: splitList(cfg.Prefer), mapping: map[string]string{}, def: cfg.Default}
	for _, pair := range splitList(cfg.Mapping) {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, exception.NewConfigurationError(moduleName, "invalid mapping entry '%s', expected FROM=TO", pair)
		}
		d.mapping[from] = to
	}
	return d, nil
}

// Decide implements port.Decider.
func (d *ExitStatusDecider) Decide(ctx context.Context, executions []*model.StepExecution) (string, error) {
	status := d.pick(executions)
	if mapped, ok := d.mapping[status]; ok {
		status = mapped
	}
	logger.Debugf("ExitStatusDecider: decided '%s' from %d executions.", status, len(executions))
	return status, nil
}

func (d *ExitStatusDecider) pick(executions []*model.StepExecution) string {
	if len(executions) == 0 {
		return d.def
	}
	for _, want := range d.prefer {
		for _, se := range executions {
			if exitStatusOf(se) == want {
				return want
			}
		}
	}
	return exitStatusOf(executions[len(executions)-1])
}

func exitStatusOf(se *model.StepExecution) string {
	if se.ExitStatus != "" {
		return se.ExitStatus
	}
	return se.Status.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ port.Decider = (*ExitStatusDecider)(nil)
