// Package support provides the ArtifactRegistry, the named-builder ArtifactFactory through
// which the engine creates readers, writers, batchlets, partition artifacts, deciders and
// listeners referenced by JSL.
package support

import (
	"context"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	exception "github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// ArtifactBuilder creates a fresh artifact from its resolved JSL properties.
type ArtifactBuilder func(ctx context.Context, properties map[string]string) (any, error)

// NamedArtifact is an ArtifactBuilder contributed to the fx "artifacts" group.
type NamedArtifact struct {
	Name    string
	Builder ArtifactBuilder
}

// ArtifactRegistry maps reference names to builders.
type ArtifactRegistry struct {
	mu       sync.RWMutex
	builders map[string]ArtifactBuilder
}

var _ port.ArtifactFactory = (*ArtifactRegistry)(nil)

// NewArtifactRegistry creates an empty registry.
func NewArtifactRegistry() *ArtifactRegistry {
	return &ArtifactRegistry{builders: make(map[string]ArtifactBuilder)}
}

// Register binds name to builder, replacing any previous binding.
func (r *ArtifactRegistry) Register(name string, builder ArtifactBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[name]; exists {
		logger.Warnf("Artifact '%s' is registered twice; the last registration wins.", name)
	}
	r.builders[name] = builder
}

// RegisterValue binds name to a builder returning v itself. Meant for stateless artifacts
// and tests; every other artifact should get a fresh instance per step.
func (r *ArtifactRegistry) RegisterValue(name string, v any) {
	r.Register(name, func(context.Context, map[string]string) (any, error) { return v, nil })
}

// Create implements port.ArtifactFactory.
func (r *ArtifactRegistry) Create(ctx context.Context, ref string, properties map[string]string) (any, error) {
	r.mu.RLock()
	builder, ok := r.builders[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, exception.NewConfigurationError("artifact_registry", "no artifact registered under '%s'", ref)
	}
	a, err := builder(ctx, properties)
	if err != nil {
		return nil, exception.NewBatchError("artifact_registry", "Failed to build artifact '"+ref+"'", err, false, false)
	}
	if a == nil {
		return nil, exception.NewConfigurationError("artifact_registry", "builder of '%s' returned nil", ref)
	}
	return a, nil
}

// Names returns the registered names in sorted order.
func (r *ArtifactRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DecodeProperties decodes string properties into the struct pointed to by out, using
// `mapstructure` tags and weak typing ("10" -> int, "true" -> bool).
func DecodeProperties(properties map[string]string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(properties); err != nil {
		return exception.NewConfigurationError("artifact_registry", "invalid artifact properties: %v", err)
	}
	return nil
}
