package writer

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// Reference names of the writers of this package.
const (
	SQLBatchWriterRef    = "sqlBatchWriter"
	ParquetItemWriterRef = "parquetItemWriter"
)

func sqlBatchWriterArtifact(resolver database.DBConnectionResolver) support.NamedArtifact {
	return support.NamedArtifact{Name: SQLBatchWriterRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewSQLBatchWriter(resolver, properties)
	}}
}

func parquetItemWriterArtifact(resolver storage.StorageConnectionResolver) support.NamedArtifact {
	return support.NamedArtifact{Name: ParquetItemWriterRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewParquetItemWriter(resolver, properties)
	}}
}

// Module contributes the writers to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(
		support.AsArtifact(sqlBatchWriterArtifact),
		support.AsArtifact(parquetItemWriterArtifact),
	),
)
