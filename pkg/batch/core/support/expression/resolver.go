// Package expression substitutes property expressions in job definitions.
//
// Supported forms are #{jobParameters['k']}, #{jobProperties['k']} and
// #{partitionPlan['k']}, each optionally followed by a default: #{jobParameters['k']}?:fallback;
// An unresolved expression without default becomes the empty string, except
// partitionPlan expressions, which are left untouched until a partition resolves them.
package expression

import (
	"regexp"

	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Sources are the property maps expressions resolve against. A nil PartitionPlan means
// the resolution happens outside a partition.
type Sources struct {
	JobParameters map[string]string
	JobProperties map[string]string
	PartitionPlan map[string]string
}

var expressionPattern = regexp.MustCompile(`#\{(jobParameters|jobProperties|partitionPlan)\['([^']*)'\]\}(\?:([^;]*);)?`)

// Resolve replaces every expression in s.
func Resolve(s string, src Sources) string {
	if !expressionPattern.MatchString(s) {
		return s
	}
	return expressionPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := expressionPattern.FindStringSubmatch(match)
		scope, key, hasDefault := m[1], m[2], m[3] != ""
		var values map[string]string
		switch scope {
		case "jobParameters":
			values = src.JobParameters
		case "jobProperties":
			values = src.JobProperties
		case "partitionPlan":
			if src.PartitionPlan == nil {
				return match
			}
			values = src.PartitionPlan
		}
		if v, ok := values[key]; ok {
			return v
		}
		if hasDefault {
			return m[4]
		}
		logger.Debugf("ExpressionResolver: %s['%s'] is not set; substituting empty string.", scope, key)
		return ""
	})
}

// ResolveMap returns a copy of props with every value resolved.
func ResolveMap(props map[string]string, src Sources) map[string]string {
	if props == nil {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = Resolve(v, src)
	}
	return out
}
