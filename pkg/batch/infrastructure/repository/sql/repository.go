// Package sql provides a GORM implementation of the JobRepository interface. Every call
// joins the transaction carried by the context when it was begun on the same connection.
package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

const moduleName = "sql_repository"

// SQLJobRepository implements repository.JobRepository on a named database connection.
// The connection is resolved on every call, so a connection reopened by the resolver
// (for instance after migrations) is picked up.
type SQLJobRepository struct {
	resolver database.DBConnectionResolver
	dbName   string
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates a repository over the connection named dbName.
func NewSQLJobRepository(resolver database.DBConnectionResolver, dbName string) *SQLJobRepository {
	return &SQLJobRepository{resolver: resolver, dbName: dbName}
}

// DBName returns the name of the connection the repository writes to.
func (r *SQLJobRepository) DBName() string {
	return r.dbName
}

// db returns the transaction of ctx for this connection, or the plain connection.
func (r *SQLJobRepository) db(ctx context.Context) (*gorm.DB, error) {
	if gtx, ok := gormadapter.TxFromContext(ctx, r.dbName); ok {
		return gtx, nil
	}
	base, err := gormadapter.ResolveGormDB(ctx, r.resolver, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to resolve DB connection '"+r.dbName+"'", err, false, true)
	}
	return base.WithContext(ctx), nil
}

// Close is a no-op: connections belong to their providers.
func (r *SQLJobRepository) Close() error {
	return nil
}

// updateVersioned runs an optimistic update of the row identified by where. When no row
// matched, it tells a missing row (notFound) from a concurrent update.
func (r *SQLJobRepository) updateVersioned(
	ctx context.Context,
	entity interface{},
	columns map[string]interface{},
	version int,
	notFound error,
	what string,
	where string,
	args ...interface{},
) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	columns["version"] = version + 1
	res := db.Model(entity).Where(where+" AND version = ?", append(args, version)...).Updates(columns)
	if res.Error != nil {
		return exception.NewBatchError(moduleName, "failed to update "+what, res.Error, false, true)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.Model(entity).Where(where, args...).Count(&n).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to check "+what, err, false, true)
	}
	if n == 0 {
		return notFound
	}
	return exception.NewOptimisticLockingFailure(moduleName, what+" was updated concurrently")
}

func notFoundOr(err error, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return exception.NewBatchError(moduleName, msg, err, false, true)
}

func now() time.Time {
	return time.Now().UTC()
}
