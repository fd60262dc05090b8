package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	sqlrepo "github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/sql"
)

// MigrationBatchletRef is the reference name of MigrationBatchlet.
const MigrationBatchletRef = "migrationBatchlet"

// FrameworkFSName is the name of the file system holding the job repository schema.
const FrameworkFSName = "framework"

// NamedFS is a migration file system contributed to the "migration_fs" group.
type NamedFS struct {
	Name string
	FS   fs.FS
}

// AsMigrationFS annotates a NamedFS constructor for the "migration_fs" group.
func AsMigrationFS(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"migration_fs"`))
}

type batchletParams struct {
	fx.In
	Resolver    database.DBConnectionResolver
	FileSystems []NamedFS `group:"migration_fs"`
}

func migrationBatchletArtifact(p batchletParams) support.NamedArtifact {
	fileSystems := make(map[string]fs.FS, len(p.FileSystems))
	for _, nfs := range p.FileSystems {
		fileSystems[nfs.Name] = nfs.FS
	}
	return support.NamedArtifact{Name: MigrationBatchletRef, Builder: func(_ context.Context, properties map[string]string) (any, error) {
		return NewMigrationBatchlet(p.Resolver, fileSystems, properties)
	}}
}

func frameworkFS() NamedFS {
	return NamedFS{Name: FrameworkFSName, FS: sqlrepo.MigrationsFS()}
}

// Module contributes the MigrationBatchlet and the framework schema file system.
var Module = fx.Options(
	fx.Provide(
		AsMigrationFS(frameworkFS),
		support.AsArtifact(migrationBatchletArtifact),
	),
)
