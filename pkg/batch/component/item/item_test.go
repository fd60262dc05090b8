package item_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/component/item"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
)

func TestListItemReader_RestartsFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	r := item.NewListItemReaderFromProperties(map[string]string{"items": "a, b ,c"})
	require.NoError(t, r.Open(ctx, nil))

	first, err := r.ReadItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first)
	_, err = r.ReadItem(ctx)
	require.NoError(t, err)
	token, err := r.CheckpointInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close(ctx))

	resumed := item.NewListItemReaderFromProperties(map[string]string{"items": "a,b,c"})
	require.NoError(t, resumed.Open(ctx, token))
	next, err := resumed.ReadItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", next)
	_, err = resumed.ReadItem(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestListItemReader_Empty(t *testing.T) {
	ctx := context.Background()
	r := item.NewListItemReaderFromProperties(nil)
	require.NoError(t, r.Open(ctx, nil))
	_, err := r.ReadItem(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestPassThroughAndNoOpWriter(t *testing.T) {
	ctx := context.Background()
	out, err := item.NewPassThroughItemProcessor().ProcessItem(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	w := item.NewNoOpItemWriter()
	require.NoError(t, w.Open(ctx, nil))
	require.NoError(t, w.WriteItems(ctx, []any{1, 2, 3}))
	token, err := w.CheckpointInfo(ctx)
	require.NoError(t, err)

	restarted := item.NewNoOpItemWriter()
	require.NoError(t, restarted.Open(ctx, token))
	require.NoError(t, restarted.WriteItems(ctx, []any{4}))
	assert.Equal(t, int64(4), restarted.Written())
}
