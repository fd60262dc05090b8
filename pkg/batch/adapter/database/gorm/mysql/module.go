package mysql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
)

// Module contributes the MySQL DBProvider.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewProvider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))),
)
