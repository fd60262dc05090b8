package reader

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// SQLPagingReaderRef is the reference name of SQLPagingReader.
const SQLPagingReaderRef = "sqlPagingReader"

func sqlPagingReaderArtifact(resolver database.DBConnectionResolver) support.NamedArtifact {
	return support.NamedArtifact{Name: SQLPagingReaderRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewSQLPagingReader(resolver, properties)
	}}
}

// Module contributes the readers to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(support.AsArtifact(sqlPagingReaderArtifact)),
)
