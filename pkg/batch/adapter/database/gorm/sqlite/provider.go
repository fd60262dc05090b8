// Package sqlite registers the SQLite dialect of the GORM database adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/jbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
)

// Type is the database type handled by this package.
const Type = "sqlite"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn := ConnectionString(cfg)
		if dsn == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(dsn), nil
	})
}

// ConnectionString returns the DSN of cfg: the explicit DSN, else the database file path
// with foreign keys and a busy timeout enabled.
func ConnectionString(cfg dbconfig.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Database == "" {
		return ""
	}
	return "file:" + cfg.Database + "?_foreign_keys=on&_busy_timeout=5000"
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, Type)
}
