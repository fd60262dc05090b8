package jsl

import (
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// Matches reports whether err is named by an include entry and by no exclude entry.
// Names are resolved with exception.IsErrorOfType.
func (f ExceptionClassFilter) Matches(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err, f.Include) && !f.Excludes(err)
}

// Excludes reports whether err is named by an exclude entry.
func (f ExceptionClassFilter) Excludes(err error) bool {
	return matchesAny(err, f.Exclude)
}

func matchesAny(err error, names []string) bool {
	for _, name := range names {
		if exception.IsErrorOfType(err, name) {
			return true
		}
	}
	return false
}
