package item

import (
	"context"
	"strings"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

// ListItemReader reads the items of a fixed list. Its checkpoint is the index of the
// next unread item.
type ListItemReader struct {
	items []any
	index int
}

// NewListItemReader creates a ListItemReader over items.
func NewListItemReader(items []any) *ListItemReader {
	return &ListItemReader{items: items}
}

// NewListItemReaderFromProperties reads the comma-separated "items" property.
func NewListItemReaderFromProperties(properties map[string]string) *ListItemReader {
	var items []any
	if raw := strings.TrimSpace(properties["items"]); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			items = append(items, strings.TrimSpace(s))
		}
	}
	return NewListItemReader(items)
}

// Open implements port.ItemReader.
func (r *ListItemReader) Open(ctx context.Context, checkpoint []byte) error {
	r.index = 0
	if _, err := serialization.UnmarshalToken(checkpoint, &r.index); err != nil {
		return err
	}
	if r.index > len(r.items) {
		r.index = len(r.items)
	}
	logger.Debugf("ListItemReader: opened at index %d of %d.", r.index, len(r.items))
	return nil
}

// ReadItem implements port.ItemReader.
func (r *ListItemReader) ReadItem(ctx context.Context) (any, error) {
	if r.index >= len(r.items) {
		return nil, port.ErrNoMoreItems
	}
	item := r.items[r.index]
	r.index++
	return item, nil
}

// CheckpointInfo implements port.ItemReader.
func (r *ListItemReader) CheckpointInfo(ctx context.Context) ([]byte, error) {
	return serialization.MarshalToken(r.index)
}

// Close implements port.ItemReader.
func (r *ListItemReader) Close(ctx context.Context) error { return nil }

var _ port.ItemReader = (*ListItemReader)(nil)
