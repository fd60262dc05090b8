package sql

import (
	"context"
	"embed"
	"io/fs"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/migration"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

//go:embed migrations
var rawMigrations embed.FS

// MigrationsFS returns the repository schema migrations, one directory per database type
// (sqlite, mysql, postgres).
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(rawMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies the repository schema to the connection named dbName.
func Migrate(ctx context.Context, resolver database.DBConnectionResolver, dbName string) error {
	conn, err := resolver.ResolveDBConnection(ctx, dbName)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to resolve DB connection '"+dbName+"' for migration", err, false, false)
	}
	if err := migration.NewMigrator(conn).Up(ctx, MigrationsFS(), "", migration.FrameworkMigrationsTable); err != nil {
		return exception.NewBatchError(moduleName, "failed to migrate repository schema", err, false, false)
	}
	return nil
}
