package tx_test

import (
	"context"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/tx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTransactionManager_CommitAndRollback(t *testing.T) {
	tm := tx.LocalTransactionManagerFactory{}.NewTransactionManager("load")

	t1, err := tm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tm.Commit(t1))
	assert.Error(t, t1.Context().Err(), "context is released after commit")
	assert.Error(t, tm.Commit(t1), "double commit is an error")

	t2, err := tm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tm.Rollback(t2))
}

func TestLocalTransactionManager_RollbackOnly(t *testing.T) {
	tm := tx.NewLocalTransactionManager()
	t1, err := tm.Begin(context.Background())
	require.NoError(t, err)
	t1.SetRollbackOnly()
	assert.True(t, t1.IsRollbackOnly())
	assert.ErrorIs(t, tm.Commit(t1), tx.ErrRollbackOnly)
}

func TestLocalTransactionManager_Timeout(t *testing.T) {
	tm := tx.NewLocalTransactionManager()
	tm.SetTransactionTimeout(1)
	t1, err := tm.Begin(context.Background())
	require.NoError(t, err)
	deadline, ok := t1.Context().Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)

	<-t1.Context().Done()
	assert.ErrorIs(t, tm.Commit(t1), tx.ErrTransactionTimeout)
}
