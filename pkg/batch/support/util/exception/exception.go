// Package exception defines the error taxonomy of the batch engine.
//
// Artifacts and configuration refer to error "classes" by name. A name matches an
// error when it is registered for a sentinel that errors.Is recognizes, when it equals
// the Go type name of an error in the unwrap chain, or when it is a substring of an
// error message in that chain.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var (
	registryMu    sync.RWMutex
	errorRegistry = make(map[string]error)
)

// RegisterErrorType binds an error class name to a prototype compared with errors.Is.
// It panics on an empty name or nil prototype.
func RegisterErrorType(name string, prototype error) {
	if name == "" {
		panic("exception: error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("exception: cannot register nil prototype for %q", name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name has a registered prototype.
func IsErrorTypeRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// IsErrorOfType reports whether err belongs to the error class named errorTypeName.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil || errorTypeName == "" {
		return false
	}

	registryMu.RLock()
	target, registered := errorRegistry[errorTypeName]
	registryMu.RUnlock()
	if registered && errors.Is(err, target) {
		return true
	}

	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if typeNameMatches(cur, errorTypeName) {
			return true
		}
		if strings.Contains(cur.Error(), errorTypeName) {
			return true
		}
		if joined, ok := cur.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if IsErrorOfType(inner, errorTypeName) {
					return true
				}
			}
		}
	}
	return false
}

func typeNameMatches(err error, name string) bool {
	t := reflect.TypeOf(err)
	if t == nil {
		return false
	}
	if t.String() == name {
		return true
	}
	return t.Kind() == reflect.Ptr && t.Elem().String() == name
}

// BatchError is an error raised by the engine or an artifact, tagged with the module
// where it happened and whether it may be skipped or retried.
type BatchError struct {
	Module      string
	Message     string
	OriginalErr error
	StackTrace  string
	skippable   bool
	retryable   bool
}

// NewBatchError creates a BatchError wrapping originalErr.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
		skippable:   isSkippable,
		retryable:   isRetryable,
	}
}

// NewBatchErrorf creates a non-skippable, non-retryable BatchError with a formatted message.
// When the last argument is an error it becomes the wrapped error and is not used for formatting.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var original error
	if n := len(a); n > 0 {
		if err, ok := a[n-1].(error); ok && strings.Count(format, "%") < n {
			original = err
			a = a[:n-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, a...), original, false, false)
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements error.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped error.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error was raised as retryable.
func (e *BatchError) IsRetryable() bool {
	return e.retryable
}

// IsSkippable reports whether the error was raised as skippable.
func (e *BatchError) IsSkippable() bool {
	return e.skippable
}

// Sentinels shared by the engine.
var (
	// ErrConfiguration marks unrecoverable configuration errors (bad start limit,
	// malformed partition plan, decision after decision, step without content).
	ErrConfiguration = errors.New("batch configuration error")
	// ErrIllegalState marks an internal invariant violation.
	ErrIllegalState = errors.New("illegal batch state")
	// ErrOptimisticLockingFailure is returned when a versioned update finds a stale row.
	ErrOptimisticLockingFailure = errors.New("OptimisticLockingFailureException")
)

// NewConfigurationError creates a BatchError wrapping ErrConfiguration.
func NewConfigurationError(module, format string, a ...interface{}) *BatchError {
	return NewBatchError(module, fmt.Sprintf(format, a...), ErrConfiguration, false, false)
}

// NewIllegalStateError creates a BatchError wrapping ErrIllegalState.
func NewIllegalStateError(module, format string, a ...interface{}) *BatchError {
	return NewBatchError(module, fmt.Sprintf(format, a...), ErrIllegalState, false, false)
}

// NewOptimisticLockingFailure creates a BatchError wrapping ErrOptimisticLockingFailure.
func NewOptimisticLockingFailure(module, message string) *BatchError {
	return NewBatchError(module, message, ErrOptimisticLockingFailure, false, false)
}

// IsConfigurationError reports whether err wraps ErrConfiguration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsIllegalState reports whether err wraps ErrIllegalState.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrIllegalState)
}

// IsOptimisticLockingFailure reports whether err wraps ErrOptimisticLockingFailure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType("OptimisticLockingFailureException", ErrOptimisticLockingFailure)
	RegisterErrorType("ConfigurationError", ErrConfiguration)
	RegisterErrorType("io.EOF", io.EOF)
	RegisterErrorType("io.ErrUnexpectedEOF", io.ErrUnexpectedEOF)
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
	RegisterErrorType("sql.ErrTxDone", sql.ErrTxDone)
}
