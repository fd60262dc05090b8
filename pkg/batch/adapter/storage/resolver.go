package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
)

// ConnectionResolver implements StorageConnectionResolver by dispatching on the configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *config.Config
}

// ResolverParams are the dependencies of NewConnectionResolver.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver creates a resolver over the registered providers.
func NewConnectionResolver(p ResolverParams) *ConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &ConnectionResolver{providers: providers, cfg: p.Cfg}
}

// ResolveStorageConnection implements StorageConnectionResolver.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	sc, err := LookupConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", sc.Type, name)
	}
	return provider.GetConnection(name)
}

// ResolveConnection implements coreAdapter.ResourceConnectionResolver.
func (r *ConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// Module provides the storage resolver and closes every provider on stop. The local and
// gcs modules contribute the providers.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewConnectionResolver, fx.As(new(StorageConnectionResolver)))),
	fx.Invoke(closeProvidersOnStop),
)

type closeParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Providers []StorageProvider `group:"storage_providers"`
}

func closeProvidersOnStop(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			var lastErr error
			for _, provider := range p.Providers {
				if err := provider.CloseAll(); err != nil {
					lastErr = err
				}
			}
			return lastErr
		},
	})
}
