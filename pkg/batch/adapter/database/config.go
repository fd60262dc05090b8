package database

import (
	"fmt"

	dbconfig "github.com/tigerroll/jbatch/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/configbinder"
)

// LookupConfig decodes the database configuration stored under jbatch.database.<name>.
func LookupConfig(cfg *config.Config, name string) (dbconfig.DatabaseConfig, error) {
	var dbConfig dbconfig.DatabaseConfig
	raw, ok := cfg.JBatch.Database[name]
	if !ok {
		return dbConfig, fmt.Errorf("database '%s': %w", name, coreAdapter.ErrConnectionNotConfigured)
	}
	if err := configbinder.Decode(raw, &dbConfig); err != nil {
		return dbConfig, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	return dbConfig, nil
}
