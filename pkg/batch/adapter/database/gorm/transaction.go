package gorm

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

type txKey struct{ name string }

// WithTx returns ctx carrying gtx as the open transaction of connection name.
func WithTx(ctx context.Context, name string, gtx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{name}, gtx)
}

// TxFromContext returns the open transaction of connection name carried by ctx.
func TxFromContext(ctx context.Context, name string) (*gorm.DB, bool) {
	gtx, ok := ctx.Value(txKey{name}).(*gorm.DB)
	return gtx, ok
}

// DBFromContext returns the transaction of connection name carried by ctx when there is
// one, otherwise db bound to ctx. Repositories and writers use it to join the chunk
// transaction.
func DBFromContext(ctx context.Context, name string, db *gorm.DB) *gorm.DB {
	if gtx, ok := TxFromContext(ctx, name); ok {
		return gtx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// gormTx is a tx.Tx backed by a GORM transaction.
type gormTx struct {
	*tx.BaseTx
	db *gorm.DB
}

// GormTransactionManager implements tx.TransactionManager with a database transaction on
// one named connection. The transaction is reachable from Tx.Context() through DBFromContext.
type GormTransactionManager struct {
	resolver database.DBConnectionResolver
	dbName   string
	timeout  atomic.Int32
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a manager for the connection dbName.
func NewGormTransactionManager(resolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{resolver: resolver, dbName: dbName}
}

// SetTransactionTimeout implements tx.TransactionManager.
func (m *GormTransactionManager) SetTransactionTimeout(seconds int) {
	m.timeout.Store(int32(seconds))
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context) (tx.Tx, error) {
	db, err := ResolveGormDB(ctx, m.resolver, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	base := tx.NewBaseTx(ctx, int(m.timeout.Load()))
	gtx := db.WithContext(base.Context()).Begin()
	if gtx.Error != nil {
		base.Finish()
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.dbName, gtx.Error)
	}
	base.WithContext(WithTx(base.Context(), m.dbName, gtx))
	return &gormTx{BaseTx: base, db: gtx}, nil
}

// Commit implements tx.TransactionManager. A rollback-only or timed out transaction is
// rolled back and the reason returned.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gt, err := m.cast(t)
	if err != nil {
		return err
	}
	if reason := gt.CheckCommittable(); reason != nil {
		rbErr := gt.db.Rollback().Error
		gt.Finish()
		if rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", reason, rbErr)
		}
		return reason
	}
	commitErr := gt.db.Commit().Error
	if !gt.Finish() {
		return exception.NewIllegalStateError("tx", "transaction already completed")
	}
	return commitErr
}

// Rollback implements tx.TransactionManager.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gt, err := m.cast(t)
	if err != nil {
		return err
	}
	if !gt.Finish() {
		return nil
	}
	return gt.db.Rollback().Error
}

func (m *GormTransactionManager) cast(t tx.Tx) (*gormTx, error) {
	gt, ok := t.(*gormTx)
	if !ok {
		return nil, exception.NewIllegalStateError("tx", "foreign transaction %T passed to GormTransactionManager", t)
	}
	return gt, nil
}

// GormTransactionManagerFactory creates a GormTransactionManager per step, all on the
// same connection.
type GormTransactionManagerFactory struct {
	resolver database.DBConnectionResolver
	dbName   string
}

var _ tx.TransactionManagerFactory = (*GormTransactionManagerFactory)(nil)

// NewGormTransactionManagerFactory creates a factory for the connection dbName.
func NewGormTransactionManagerFactory(resolver database.DBConnectionResolver, dbName string) *GormTransactionManagerFactory {
	return &GormTransactionManagerFactory{resolver: resolver, dbName: dbName}
}

// NewTransactionManager implements tx.TransactionManagerFactory.
func (f *GormTransactionManagerFactory) NewTransactionManager(string) tx.TransactionManager {
	return NewGormTransactionManager(f.resolver, f.dbName)
}
