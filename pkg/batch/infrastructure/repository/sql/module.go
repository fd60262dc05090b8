package sql

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Module replaces the default JobRepository and TransactionManagerFactory when
// jbatch.infrastructure.repository_type is "sql". The repository then writes to the
// connection named by jbatch.infrastructure.job_repository_db_ref, chunk transactions run
// on that same connection, and the schema is migrated on start when
// jbatch.infrastructure.run_migrations is set.
var Module = fx.Options(
	fx.Decorate(decorateRepository),
	fx.Decorate(decorateTxFactory),
	fx.Invoke(migrateOnStart),
)

func enabled(cfg *config.Config) bool {
	return cfg.JBatch.Infrastructure.RepositoryType == config.RepositoryTypeSQL
}

func decorateRepository(def repository.JobRepository, resolver database.DBConnectionResolver, cfg *config.Config) repository.JobRepository {
	if !enabled(cfg) {
		return def
	}
	logger.Infof("Using SQL JobRepository on '%s'.", cfg.JBatch.Infrastructure.JobRepositoryDBRef)
	return NewSQLJobRepository(resolver, cfg.JBatch.Infrastructure.JobRepositoryDBRef)
}

func decorateTxFactory(def tx.TransactionManagerFactory, resolver database.DBConnectionResolver, cfg *config.Config) tx.TransactionManagerFactory {
	if !enabled(cfg) {
		return def
	}
	return gormadapter.NewGormTransactionManagerFactory(resolver, cfg.JBatch.Infrastructure.JobRepositoryDBRef)
}

func migrateOnStart(lc fx.Lifecycle, resolver database.DBConnectionResolver, cfg *config.Config) {
	if !enabled(cfg) || !cfg.JBatch.Infrastructure.RunMigrations {
		return
	}
	dbName := cfg.JBatch.Infrastructure.JobRepositoryDBRef
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Infof("Migrating job repository schema on '%s'.", dbName)
			return Migrate(ctx, resolver, dbName)
		},
	})
}
