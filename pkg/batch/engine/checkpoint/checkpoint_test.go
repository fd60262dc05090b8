package checkpoint_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/engine/checkpoint"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type positionReader struct{ pos int }

func (r *positionReader) Open(context.Context, []byte) error { return nil }
func (r *positionReader) ReadItem(context.Context) (any, error) {
	r.pos++
	return r.pos, nil
}
func (r *positionReader) CheckpointInfo(context.Context) ([]byte, error) {
	return []byte(strconv.Itoa(r.pos)), nil
}
func (r *positionReader) Close(context.Context) error { return nil }

type nopWriter struct{}

func (nopWriter) Open(context.Context, []byte) error             { return nil }
func (nopWriter) WriteItems(context.Context, []any) error        { return nil }
func (nopWriter) CheckpointInfo(context.Context) ([]byte, error) { return nil, nil }
func (nopWriter) Close(context.Context) error                    { return nil }

func TestItemAlgorithmCountsItems(t *testing.T) {
	ctx := context.Background()
	a := checkpoint.NewItemAlgorithm(&jsl.Chunk{ItemCount: 3}, nil)
	require.NoError(t, a.BeginCheckpoint(ctx))

	var readies []bool
	for i := 0; i < 3; i++ {
		ready, err := a.IsReadyToCheckpoint(ctx)
		require.NoError(t, err)
		readies = append(readies, ready)
	}
	assert.Equal(t, []bool{false, false, true}, readies)

	timeout, err := a.CheckpointTimeout(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.DefaultTransactionTimeout, timeout)
}

func TestItemAlgorithmTimeLimit(t *testing.T) {
	ctx := context.Background()
	a := checkpoint.NewItemAlgorithm(&jsl.Chunk{ItemCount: 1000, TimeLimit: 1}, map[string]string{
		checkpoint.TransactionTimeoutProperty: "30",
	})
	require.NoError(t, a.BeginCheckpoint(ctx))
	ready, err := a.IsReadyToCheckpoint(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	time.Sleep(1100 * time.Millisecond)
	ready, err = a.IsReadyToCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	timeout, _ := a.CheckpointTimeout(ctx)
	assert.Equal(t, 30, timeout)
}

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	reader := &positionReader{}
	algo := checkpoint.NewItemAlgorithm(&jsl.Chunk{}, nil)
	m := checkpoint.NewManager(repo, reader, nopWriter{}, algo, "ji", "load:0")

	token, err := m.ReaderToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, token, "no checkpoint before the first commit")

	for i := 0; i < 7; i++ {
		_, _ = reader.ReadItem(ctx)
	}
	require.NoError(t, m.Checkpoint(ctx))

	token, err = m.ReaderToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), token)

	require.NoError(t, checkpoint.Delete(ctx, repo, "ji", "load:0"))
	token, err = m.ReaderToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)
}
