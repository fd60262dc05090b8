package exception

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parseError struct{ field string }

func (e *parseError) Error() string { return "cannot parse " + e.field }

var errQuotaExceeded = errors.New("quota exceeded")

func TestIsErrorOfType(t *testing.T) {
	RegisterErrorType("QuotaExceeded", errQuotaExceeded)

	wrapped := fmt.Errorf("writer: %w", errQuotaExceeded)
	assert.True(t, IsErrorOfType(wrapped, "QuotaExceeded"), "registered sentinel through wrap")

	pe := NewBatchError("reader", "bad record", &parseError{field: "amount"}, true, false)
	assert.True(t, IsErrorOfType(pe, "*exception.parseError"), "pointer type name")
	assert.True(t, IsErrorOfType(pe, "exception.parseError"), "element type name")
	assert.True(t, IsErrorOfType(pe, "cannot parse"), "message substring")
	assert.False(t, IsErrorOfType(pe, "QuotaExceeded"))
	assert.False(t, IsErrorOfType(nil, "QuotaExceeded"))
	assert.False(t, IsErrorOfType(pe, ""))

	joined := errors.Join(errors.New("first"), &parseError{field: "date"})
	assert.True(t, IsErrorOfType(joined, "*exception.parseError"))

	assert.True(t, IsErrorOfType(fmt.Errorf("read: %w", io.EOF), "io.EOF"))
}

func TestBatchError(t *testing.T) {
	be := NewBatchError("writer", "insert failed", io.ErrUnexpectedEOF, false, true)
	assert.Equal(t, "[writer] insert failed: unexpected EOF", be.Error())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.ErrorIs(t, be, io.ErrUnexpectedEOF)
	assert.NotEmpty(t, be.StackTrace)

	plain := NewBatchError("kernel", "no such job", nil, false, false)
	assert.Equal(t, "[kernel] no such job", plain.Error())
}

func TestNewBatchErrorf(t *testing.T) {
	be := NewBatchErrorf("step", "step '%s' failed", "load", io.EOF)
	assert.Equal(t, "step 'load' failed", be.Message)
	assert.ErrorIs(t, be, io.EOF)

	be = NewBatchErrorf("step", "value %v", io.EOF)
	assert.Nil(t, be.OriginalErr)
	assert.Equal(t, "value EOF", be.Message)
}

func TestSentinelKinds(t *testing.T) {
	cfg := NewConfigurationError("jsl", "decision '%s' follows decision '%s'", "d2", "d1")
	require.True(t, IsConfigurationError(cfg))
	assert.Equal(t, "decision 'd2' follows decision 'd1'", ExtractErrorMessage(cfg))
	assert.False(t, IsIllegalState(cfg))

	assert.True(t, IsIllegalState(NewIllegalStateError("runner", "bad status %s", "STARTING")))
	assert.True(t, IsOptimisticLockingFailure(NewOptimisticLockingFailure("repository", "stale")))
	assert.True(t, IsErrorOfType(cfg, "ConfigurationError"))
	assert.Equal(t, "boom", ExtractErrorMessage(errors.New("boom")))
	assert.Equal(t, "", ExtractErrorMessage(nil))
}

func TestRegisterErrorTypePanics(t *testing.T) {
	assert.Panics(t, func() { RegisterErrorType("", errQuotaExceeded) })
	assert.Panics(t, func() { RegisterErrorType("Nil", nil) })
	assert.False(t, IsErrorTypeRegistered("NeverRegistered"))
}
