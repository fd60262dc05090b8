package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
)

// Module provides the connection resolver. Dialect modules (sqlite, mysql, postgres)
// contribute the providers.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver), new(coreAdapter.ResourceConnectionResolver)),
	)),
	fx.Invoke(closeProvidersOnStop),
)

type closeParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Providers []database.DBProvider `group:"db_providers"`
}

func closeProvidersOnStop(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return CloseProviders(p.Providers)
		},
	})
}
