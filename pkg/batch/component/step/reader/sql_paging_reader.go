// Package reader provides database item readers.
package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

const defaultPageSize = 100

// SQLPagingReaderConfig holds the JSL properties of SQLPagingReader.
type SQLPagingReaderConfig struct {
	// DBRef names the database connection.
	DBRef string `mapstructure:"dbRef"`
	// Query is a SELECT with a deterministic ORDER BY. LIMIT and OFFSET are appended.
	Query    string `mapstructure:"query"`
	PageSize int    `mapstructure:"pageSize"`
}

// SQLPagingReader reads the rows of a query page by page. Every item is a
// map[string]any of column values. Its checkpoint is the number of rows read, used as
// the OFFSET of the first page after a restart.
type SQLPagingReader struct {
	resolver database.DBConnectionResolver
	cfg      SQLPagingReaderConfig

	offset    int64
	page      []map[string]any
	pos       int
	exhausted bool
}

// NewSQLPagingReader creates a reader from its JSL properties.
func NewSQLPagingReader(resolver database.DBConnectionResolver, properties map[string]string) (*SQLPagingReader, error) {
	var cfg SQLPagingReaderConfig
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	if cfg.DBRef == "" || strings.TrimSpace(cfg.Query) == "" {
		return nil, exception.NewConfigurationError("reader", "SQLPagingReader requires the 'dbRef' and 'query' properties")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.Query = strings.TrimRight(strings.TrimSpace(cfg.Query), ";")
	return &SQLPagingReader{resolver: resolver, cfg: cfg}, nil
}

// Open implements port.ItemReader.
func (r *SQLPagingReader) Open(ctx context.Context, checkpoint []byte) error {
	r.offset, r.page, r.pos, r.exhausted = 0, nil, 0, false
	found, err := serialization.UnmarshalToken(checkpoint, &r.offset)
	if err != nil {
		return err
	}
	if found {
		logger.Infof("SQLPagingReader '%s': Resuming from offset %d.", r.cfg.DBRef, r.offset)
	} else {
		logger.Infof("SQLPagingReader '%s': Starting new read. Query: %s", r.cfg.DBRef, r.cfg.Query)
	}
	return nil
}

// ReadItem implements port.ItemReader.
func (r *SQLPagingReader) ReadItem(ctx context.Context) (any, error) {
	if r.pos >= len(r.page) {
		if r.exhausted {
			return nil, port.ErrNoMoreItems
		}
		if err := r.fetch(ctx); err != nil {
			return nil, err
		}
		if len(r.page) == 0 {
			return nil, port.ErrNoMoreItems
		}
	}
	row := r.page[r.pos]
	r.pos++
	r.offset++
	return row, nil
}

func (r *SQLPagingReader) fetch(ctx context.Context) error {
	db, err := gormadapter.ResolveContextDB(ctx, r.resolver, r.cfg.DBRef)
	if err != nil {
		return err
	}
	var rows []map[string]any
	query := r.cfg.Query + " LIMIT ? OFFSET ?"
	if err := db.Raw(query, r.cfg.PageSize, r.offset).Scan(&rows).Error; err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("SQLPagingReader '%s': failed to read page at offset %d", r.cfg.DBRef, r.offset), err, false, true)
	}
	r.page, r.pos = rows, 0
	r.exhausted = len(rows) < r.cfg.PageSize
	logger.Debugf("SQLPagingReader '%s': fetched %d rows at offset %d.", r.cfg.DBRef, len(rows), r.offset)
	return nil
}

// CheckpointInfo implements port.ItemReader.
func (r *SQLPagingReader) CheckpointInfo(ctx context.Context) ([]byte, error) {
	return serialization.MarshalToken(r.offset)
}

// Close implements port.ItemReader.
func (r *SQLPagingReader) Close(ctx context.Context) error {
	r.page = nil
	logger.Debugf("SQLPagingReader '%s': Closed at offset %d.", r.cfg.DBRef, r.offset)
	return nil
}

var _ port.ItemReader = (*SQLPagingReader)(nil)
