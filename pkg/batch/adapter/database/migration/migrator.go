// Package migration applies golang-migrate schema migrations over a resolved database connection.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Migration history tables.
const (
	FrameworkMigrationsTable = "batch_framework_migrations"
	AppMigrationsTable       = "batch_app_migrations"
)

// Commands accepted by Run.
const (
	CommandUp   = "up"
	CommandDown = "down"
)

// Migrator runs migrations against one connection. golang-migrate closes the underlying
// *sql.DB when it is done, so the connection is left for the resolver to reopen on its
// next ping.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for conn.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

// Up applies all pending migrations found under dir of fsys.
func (m *Migrator) Up(ctx context.Context, fsys fs.FS, dir, table string) error {
	return m.Run(ctx, CommandUp, fsys, dir, table)
}

// Down reverts all applied migrations.
func (m *Migrator) Down(ctx context.Context, fsys fs.FS, dir, table string) error {
	return m.Run(ctx, CommandDown, fsys, dir, table)
}

// Run executes command. An empty dir defaults to the connection type, so one file
// system can hold the scripts of every dialect.
func (m *Migrator) Run(ctx context.Context, command string, fsys fs.FS, dir, table string) error {
	if dir == "" {
		dir = m.conn.Type()
	}
	logger.Infof("Executing migration '%s' on '%s' (Path: %s, Table: %s)", command, m.conn.Name(), dir, table)

	instance, err := m.instance(fsys, dir, table)
	if err != nil {
		return err
	}
	defer instance.Close()

	switch command {
	case CommandUp:
		err = instance.Up()
	case CommandDown:
		err = instance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if version, dirty, verr := instance.Version(); verr == nil {
			logger.Errorf("Migration stopped at version %d (dirty: %t)", version, dirty)
		}
		return fmt.Errorf("migration '%s' failed (DB: %s, Path: %s): %w", command, m.conn.Name(), dir, err)
	}
	logger.Infof("Migration '%s' on '%s' completed.", command, m.conn.Name())
	return nil
}

func (m *Migrator) instance(fsys fs.FS, dir, table string) (*migrate.Migrate, error) {
	sqlDB, err := m.conn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations at %s: %w", dir, err)
	}

	var driver migratedb.Driver
	switch m.conn.Type() {
	case "postgres":
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: table})
	case "mysql":
		driver, err = mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: table})
	case "sqlite":
		driver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: table})
	default:
		err = fmt.Errorf("unsupported database type for migration: %s", m.conn.Type())
	}
	if err != nil {
		source.Close()
		return nil, err
	}
	return migrate.NewWithInstance("iofs", source, m.conn.Type(), driver)
}
