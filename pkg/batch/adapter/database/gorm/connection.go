package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/jbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// GormDBConnection implements database.DBConnection over a *gorm.DB.
type GormDBConnection struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
	name  string
}

var _ database.DBConnection = (*GormDBConnection)(nil)

// NewGormDBConnection wraps db as the connection called name.
func NewGormDBConnection(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBConnection, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB of '%s': %w", name, err)
	}
	return &GormDBConnection{db: db, sqlDB: sqlDB, cfg: cfg, name: name}, nil
}

// GormDB returns the *gorm.DB of the connection.
func (c *GormDBConnection) GormDB() *gorm.DB { return c.db }

// Close implements database.DBConnection.
func (c *GormDBConnection) Close() error {
	logger.Infof("Closing database connection '%s'...", c.name)
	return c.sqlDB.Close()
}

// Type implements database.DBConnection.
func (c *GormDBConnection) Type() string { return c.cfg.Type }

// Name implements database.DBConnection.
func (c *GormDBConnection) Name() string { return c.name }

// Config implements database.DBConnection.
func (c *GormDBConnection) Config() dbconfig.DatabaseConfig { return c.cfg }

// GetSQLDB implements database.DBConnection.
func (c *GormDBConnection) GetSQLDB() (*sql.DB, error) { return c.sqlDB, nil }

// Ping implements database.DBConnection.
func (c *GormDBConnection) Ping(ctx context.Context) error { return c.sqlDB.PingContext(ctx) }

// GormDBOf returns the *gorm.DB behind conn.
func GormDBOf(conn database.DBConnection) (*gorm.DB, error) {
	gc, ok := conn.(*GormDBConnection)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is a %T, not a GORM connection", conn.Name(), conn)
	}
	return gc.db, nil
}

// IsTableNotExistError reports whether err says a table is missing, for the supported dialects.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return (strings.Contains(msg, "relation \"") && strings.Contains(msg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(msg, "Error 1146") && strings.Contains(msg, "doesn't exist")) || // MySQL
		strings.Contains(msg, "no such table:") // SQLite
}
