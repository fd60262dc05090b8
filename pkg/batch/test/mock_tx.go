package test

import (
	"sync/atomic"

	tx "github.com/tigerroll/jbatch/pkg/batch/core/tx"
)

// CountingTxFactory hands out in-process transaction managers and counts the
// transactions they commit and roll back.
type CountingTxFactory struct {
	commits   atomic.Int64
	rollbacks atomic.Int64
}

var _ tx.TransactionManagerFactory = (*CountingTxFactory)(nil)

// NewTransactionManager implements tx.TransactionManagerFactory.
func (f *CountingTxFactory) NewTransactionManager(string) tx.TransactionManager {
	return &countingTxManager{LocalTransactionManager: tx.NewLocalTransactionManager(), f: f}
}

// Commits returns the number of successful commits.
func (f *CountingTxFactory) Commits() int64 { return f.commits.Load() }

// Rollbacks returns the number of rollbacks.
func (f *CountingTxFactory) Rollbacks() int64 { return f.rollbacks.Load() }

type countingTxManager struct {
	*tx.LocalTransactionManager
	f *CountingTxFactory
}

func (m *countingTxManager) Commit(t tx.Tx) error {
	if err := m.LocalTransactionManager.Commit(t); err != nil {
		return err
	}
	m.f.commits.Add(1)
	return nil
}

func (m *countingTxManager) Rollback(t tx.Tx) error {
	m.f.rollbacks.Add(1)
	return m.LocalTransactionManager.Rollback(t)
}
