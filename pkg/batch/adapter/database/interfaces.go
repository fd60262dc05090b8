// Package database defines the named database connections used by the SQL JobRepository
// and the SQL artifacts.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/jbatch/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
)

// DBConnection is an open, named database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection

	// Config returns the configuration the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
	// Ping checks that the connection is alive.
	Ping(ctx context.Context) error
}

// DBProvider opens and caches the connections of one database type.
type DBProvider interface {
	// GetConnection returns the connection configured under name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes every connection opened by the provider.
	CloseAll() error
	// Type returns the database type handled by the provider.
	Type() string
}

// DBConnectionResolver resolves a connection by name across all registered providers.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
