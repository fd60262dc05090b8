// Package tx provides the step-scoped transaction abstraction used by the chunk loop.
// A chunk runs in exactly one transaction; transactions never span steps.
package tx

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

var (
	// ErrRollbackOnly is returned by Commit when the transaction was marked rollback-only.
	ErrRollbackOnly = errors.New("transaction is marked rollback-only")
	// ErrTransactionTimeout is returned by Commit when the transaction outlived its timeout.
	ErrTransactionTimeout = errors.New("transaction timed out")
)

func init() {
	exception.RegisterErrorType("ErrRollbackOnly", ErrRollbackOnly)
	exception.RegisterErrorType("ErrTransactionTimeout", ErrTransactionTimeout)
}

// Tx represents an ongoing transaction.
type Tx interface {
	// Context returns the context bound to the transaction. It carries the timeout deadline
	// and, for resource-backed managers, the transactional handle that participants join.
	Context() context.Context
	// SetRollbackOnly makes the next Commit roll back instead.
	SetRollbackOnly()
	IsRollbackOnly() bool
}

// TransactionManager manages the transactions of one step.
type TransactionManager interface {
	// SetTransactionTimeout sets the timeout, in seconds, applied by the next Begin. Zero means none.
	SetTransactionTimeout(seconds int)
	// Begin starts a transaction.
	// ctx: The parent context.
	// Returns: The started Tx and any error that occurred while starting it.
	Begin(ctx context.Context) (Tx, error)
	// Commit commits tx. A rollback-only or timed out transaction is rolled back and an error returned.
	Commit(tx Tx) error
	// Rollback rolls back tx.
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates the TransactionManager scoped to one step execution.
type TransactionManagerFactory interface {
	NewTransactionManager(stepName string) TransactionManager
}

// BaseTx carries the state shared by every Tx implementation.
type BaseTx struct {
	ctx          context.Context
	cancel       context.CancelFunc
	rollbackOnly atomic.Bool
	done         atomic.Bool
}

// NewBaseTx derives the transaction context from parent, applying timeoutSeconds when positive.
func NewBaseTx(parent context.Context, timeoutSeconds int) *BaseTx {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSeconds > 0 {
		ctx, cancel = context.WithTimeout(parent, time.Duration(timeoutSeconds)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &BaseTx{ctx: ctx, cancel: cancel}
}

// Context implements Tx.
func (t *BaseTx) Context() context.Context { return t.ctx }

// SetRollbackOnly implements Tx.
func (t *BaseTx) SetRollbackOnly() { t.rollbackOnly.Store(true) }

// IsRollbackOnly implements Tx.
func (t *BaseTx) IsRollbackOnly() bool { return t.rollbackOnly.Load() }

// WithContext replaces the transaction context, keeping its cancel function. Resource-backed
// managers use it to attach their transactional handle.
func (t *BaseTx) WithContext(ctx context.Context) { t.ctx = ctx }

// CheckCommittable reports why the transaction must not be committed, if anything.
func (t *BaseTx) CheckCommittable() error {
	if t.IsRollbackOnly() {
		return ErrRollbackOnly
	}
	if errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
		return ErrTransactionTimeout
	}
	return nil
}

// Finish releases the transaction context. It reports false if the transaction was already finished.
func (t *BaseTx) Finish() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	t.cancel()
	return true
}

// LocalTransactionManager is an in-process TransactionManager with no backing resource.
// It enforces timeouts and rollback-only marks so the chunk loop behaves the same with or
// without a database.
type LocalTransactionManager struct {
	timeout atomic.Int32
}

// NewLocalTransactionManager creates a LocalTransactionManager.
func NewLocalTransactionManager() *LocalTransactionManager {
	return &LocalTransactionManager{}
}

// SetTransactionTimeout implements TransactionManager.
func (m *LocalTransactionManager) SetTransactionTimeout(seconds int) {
	m.timeout.Store(int32(seconds))
}

// Begin implements TransactionManager.
func (m *LocalTransactionManager) Begin(ctx context.Context) (Tx, error) {
	return NewBaseTx(ctx, int(m.timeout.Load())), nil
}

// Commit implements TransactionManager.
func (m *LocalTransactionManager) Commit(t Tx) error {
	bt, ok := t.(*BaseTx)
	if !ok {
		return exception.NewIllegalStateError("tx", "foreign transaction %T passed to LocalTransactionManager", t)
	}
	err := bt.CheckCommittable()
	if !bt.Finish() {
		return exception.NewIllegalStateError("tx", "transaction already completed")
	}
	return err
}

// Rollback implements TransactionManager.
func (m *LocalTransactionManager) Rollback(t Tx) error {
	bt, ok := t.(*BaseTx)
	if !ok {
		return exception.NewIllegalStateError("tx", "foreign transaction %T passed to LocalTransactionManager", t)
	}
	bt.Finish()
	return nil
}

// LocalTransactionManagerFactory creates a LocalTransactionManager per step.
type LocalTransactionManagerFactory struct{}

// NewTransactionManager implements TransactionManagerFactory.
func (LocalTransactionManagerFactory) NewTransactionManager(string) TransactionManager {
	return NewLocalTransactionManager()
}

var (
	_ TransactionManager        = (*LocalTransactionManager)(nil)
	_ TransactionManagerFactory = LocalTransactionManagerFactory{}
)
