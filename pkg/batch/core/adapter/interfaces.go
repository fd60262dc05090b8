// Package adapter defines the contracts shared by connections to external resources
// (databases, object storage) configured by name.
package adapter

import (
	"context"
	"errors"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// ErrConnectionNotConfigured is returned when no configuration exists under a connection name.
var ErrConnectionNotConfigured = errors.New("connection is not configured")

func init() {
	exception.RegisterErrorType("ErrConnectionNotConfigured", ErrConnectionNotConfigured)
}

// ResourceConnection represents a named connection to a resource.
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "gcs").
	Type() string
	// Name returns the configured connection name (e.g., "metadata", "workload").
	Name() string
}

// ResourceConnectionResolver resolves a connection by its configured name.
type ResourceConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
