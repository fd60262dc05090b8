package skip_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/skip"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type badRecordError struct{ line int }

func (e *badRecordError) Error() string { return fmt.Sprintf("bad record at line %d", e.line) }

type recordingListener struct{ reads, processes, writes int }

func (l *recordingListener) OnSkipReadItem(context.Context, error) error { l.reads++; return nil }
func (l *recordingListener) OnSkipProcessItem(context.Context, any, error) error {
	l.processes++
	return nil
}
func (l *recordingListener) OnSkipWriteItem(context.Context, []any, error) error {
	l.writes++
	return nil
}

func chunk(limit int, include, exclude []string) *jsl.Chunk {
	return &jsl.Chunk{
		SkipLimit:           limit,
		SkippableExceptions: jsl.ExceptionClassFilter{Include: include, Exclude: exclude},
	}
}

func TestSkipLimitBoundary(t *testing.T) {
	l := &recordingListener{}
	h := skip.NewSkipHandler("load", chunk(2, []string{"skip_test.badRecordError"}, nil), []skip.Listener{l})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		skipped, err := h.HandleRead(ctx, &badRecordError{line: i})
		require.NoError(t, err)
		assert.True(t, skipped, "skip %d is within the limit", i)
	}
	skipped, err := h.HandleRead(ctx, &badRecordError{line: 3})
	require.NoError(t, err)
	assert.False(t, skipped, "the third matching failure exceeds the limit")
	assert.Equal(t, 2, h.Count())
	assert.Equal(t, 2, l.reads)
}

func TestZeroLimitSkipsNothing(t *testing.T) {
	h := skip.NewSkipHandler("load", chunk(0, []string{"bad record"}, nil), nil)
	assert.False(t, h.IsSkippable(&badRecordError{}))
}

func TestNegativeLimitIsUnlimited(t *testing.T) {
	h := skip.NewSkipHandler("load", chunk(-1, []string{"bad record"}, nil), nil)
	for i := 0; i < 100; i++ {
		skipped, err := h.HandleProcess(context.Background(), i, &badRecordError{line: i})
		require.NoError(t, err)
		require.True(t, skipped)
	}
}

func TestExcludeWins(t *testing.T) {
	h := skip.NewSkipHandler("load", chunk(5, []string{"bad record"}, []string{"line 7"}), nil)
	assert.True(t, h.IsSkippable(&badRecordError{line: 3}))
	assert.False(t, h.IsSkippable(&badRecordError{line: 7}))
	assert.False(t, h.IsSkippable(errors.New("disk full")))
}

func TestSkippableBatchError(t *testing.T) {
	h := skip.NewSkipHandler("load", chunk(1, nil, nil), nil)
	assert.True(t, h.IsSkippable(exception.NewBatchError("reader", "bad row", nil, true, false)))
	assert.False(t, h.IsSkippable(exception.NewBatchError("reader", "bad row", nil, false, false)))
}

type failingListener struct{ recordingListener }

func (failingListener) OnSkipWriteItem(context.Context, []any, error) error {
	return errors.New("listener broke")
}

func TestListenerFailure(t *testing.T) {
	h := skip.NewSkipHandler("load", chunk(1, []string{"bad record"}, nil), []skip.Listener{&failingListener{}})
	skipped, err := h.HandleWrite(context.Background(), []any{1}, &badRecordError{})
	assert.True(t, skipped)
	assert.Error(t, err)
}
