package postgres

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
)

// Module contributes the PostgreSQL DBProvider.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewProvider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))),
)
