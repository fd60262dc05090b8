// Package migration provides the MigrationBatchlet, which applies golang-migrate schema
// migrations from a named file system as a job step.
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	dbmigration "github.com/tigerroll/jbatch/pkg/batch/adapter/database/migration"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Config holds the JSL properties of MigrationBatchlet.
type Config struct {
	// DBRef names the database connection to migrate.
	DBRef string `mapstructure:"dbRef"`
	// MigrationFSName names a file system contributed to the "migration_fs" group.
	MigrationFSName string `mapstructure:"migrationFSName"`
	// MigrationDir is the directory of scripts in the file system. Empty means the database type.
	MigrationDir string `mapstructure:"migrationDir"`
	// Command is "up" (default) or "down".
	Command string `mapstructure:"command"`
	// IsFramework selects the framework history table instead of the application one.
	IsFramework bool `mapstructure:"isFramework"`
}

// MigrationBatchlet runs one migration command. Its exit status is "MIGRATED_UP" or
// "MIGRATED_DOWN".
type MigrationBatchlet struct {
	resolver database.DBConnectionResolver
	fsys     fs.FS
	cfg      Config
	stopped  atomic.Bool
}

// NewMigrationBatchlet creates a batchlet from its JSL properties. fileSystems holds the
// named migration file systems.
func NewMigrationBatchlet(resolver database.DBConnectionResolver, fileSystems map[string]fs.FS, properties map[string]string) (*MigrationBatchlet, error) {
	var cfg Config
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	if cfg.DBRef == "" {
		return nil, exception.NewConfigurationError("migration_batchlet", "property 'dbRef' is required")
	}
	fsys, ok := fileSystems[cfg.MigrationFSName]
	if !ok {
		return nil, exception.NewConfigurationError("migration_batchlet", "no migration file system named '%s'", cfg.MigrationFSName)
	}
	if cfg.Command == "" {
		cfg.Command = dbmigration.CommandUp
	}
	if cfg.Command != dbmigration.CommandUp && cfg.Command != dbmigration.CommandDown {
		return nil, exception.NewConfigurationError("migration_batchlet", "unsupported migration command '%s'", cfg.Command)
	}
	return &MigrationBatchlet{resolver: resolver, fsys: fsys, cfg: cfg}, nil
}

// Process implements port.Batchlet.
func (b *MigrationBatchlet) Process(ctx context.Context) (string, error) {
	if b.stopped.Load() {
		logger.Warnf("MigrationBatchlet: stopped before migrating '%s'.", b.cfg.DBRef)
		return "STOPPED", nil
	}
	conn, err := b.resolver.ResolveDBConnection(ctx, b.cfg.DBRef)
	if err != nil {
		return "", exception.NewBatchError("migration_batchlet", fmt.Sprintf("Failed to resolve database connection '%s'", b.cfg.DBRef), err, false, false)
	}
	table := dbmigration.AppMigrationsTable
	if b.cfg.IsFramework {
		table = dbmigration.FrameworkMigrationsTable
	}
	if err := dbmigration.NewMigrator(conn).Run(ctx, b.cfg.Command, b.fsys, b.cfg.MigrationDir, table); err != nil {
		return "", exception.NewBatchError("migration_batchlet", "Migration failed", err, false, false)
	}
	return "MIGRATED_" + strings.ToUpper(b.cfg.Command), nil
}

// Stop implements port.Batchlet. A migration in progress is not interrupted: golang-migrate
// leaves the schema dirty when stopped midway.
func (b *MigrationBatchlet) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	return nil
}

var _ port.Batchlet = (*MigrationBatchlet)(nil)
