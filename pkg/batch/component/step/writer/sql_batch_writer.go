// Package writer provides item writers persisting to databases and object storage.
package writer

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// SQLBatchWriterConfig holds the JSL properties of SQLBatchWriter.
type SQLBatchWriterConfig struct {
	DBRef string `mapstructure:"dbRef"`
	Table string `mapstructure:"table"`
	// BatchSize is the maximum number of rows per INSERT statement.
	BatchSize int `mapstructure:"batchSize"`
	// ConflictColumns, comma-separated, turns the INSERT into an upsert.
	ConflictColumns string `mapstructure:"conflictColumns"`
	// UpdateColumns, comma-separated, are updated on conflict. Empty means DO NOTHING.
	UpdateColumns string `mapstructure:"updateColumns"`
}

// SQLBatchWriter inserts items into a table. Items are map[string]any rows or GORM
// models. Writes join the chunk transaction of DBRef when the step runs one, so a
// rolled back chunk leaves no rows behind and the writer needs no checkpoint.
type SQLBatchWriter struct {
	resolver database.DBConnectionResolver
	cfg      SQLBatchWriterConfig
	conflict []clause.Expression
}

// NewSQLBatchWriter creates a writer from its JSL properties.
func NewSQLBatchWriter(resolver database.DBConnectionResolver, properties map[string]string) (*SQLBatchWriter, error) {
	var cfg SQLBatchWriterConfig
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	if cfg.DBRef == "" || cfg.Table == "" {
		return nil, exception.NewConfigurationError("writer", "SQLBatchWriter requires the 'dbRef' and 'table' properties")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	w := &SQLBatchWriter{resolver: resolver, cfg: cfg}
	if conflictCols := splitColumns(cfg.ConflictColumns); len(conflictCols) > 0 {
		onConflict := clause.OnConflict{}
		for _, c := range conflictCols {
			onConflict.Columns = append(onConflict.Columns, clause.Column{Name: c})
		}
		if updateCols := splitColumns(cfg.UpdateColumns); len(updateCols) > 0 {
			onConflict.DoUpdates = clause.AssignmentColumns(updateCols)
		} else {
			onConflict.DoNothing = true
		}
		w.conflict = []clause.Expression{onConflict}
	}
	return w, nil
}

func splitColumns(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Open implements port.ItemWriter.
func (w *SQLBatchWriter) Open(ctx context.Context, checkpoint []byte) error {
	logger.Infof("SQLBatchWriter '%s.%s': Opened.", w.cfg.DBRef, w.cfg.Table)
	return nil
}

// WriteItems implements port.ItemWriter.
func (w *SQLBatchWriter) WriteItems(ctx context.Context, items []any) error {
	if len(items) == 0 {
		return nil
	}
	db, err := gormadapter.ResolveContextDB(ctx, w.resolver, w.cfg.DBRef)
	if err != nil {
		return err
	}

	var rows []map[string]any
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			rows = append(rows, v)
		default:
			if err := w.statement(db).Create(v).Error; err != nil {
				return exception.NewBatchError("writer", fmt.Sprintf("SQLBatchWriter '%s': failed to insert item into %s", w.cfg.DBRef, w.cfg.Table), err, false, true)
			}
		}
	}
	for i := 0; i < len(rows); i += w.cfg.BatchSize {
		end := min(i+w.cfg.BatchSize, len(rows))
		if err := w.statement(db).Create(rows[i:end]).Error; err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("SQLBatchWriter '%s': failed to insert rows into %s (batch start index %d)", w.cfg.DBRef, w.cfg.Table, i), err, false, true)
		}
		logger.Debugf("SQLBatchWriter '%s': Wrote %d rows into %s (batch start index %d).", w.cfg.DBRef, end-i, w.cfg.Table, i)
	}
	return nil
}

func (w *SQLBatchWriter) statement(db *gorm.DB) *gorm.DB {
	return db.Table(w.cfg.Table).Clauses(w.conflict...)
}

// CheckpointInfo implements port.ItemWriter.
func (w *SQLBatchWriter) CheckpointInfo(ctx context.Context) ([]byte, error) { return nil, nil }

// Close implements port.ItemWriter.
func (w *SQLBatchWriter) Close(ctx context.Context) error {
	logger.Infof("SQLBatchWriter '%s.%s': Closed.", w.cfg.DBRef, w.cfg.Table)
	return nil
}

var _ port.ItemWriter = (*SQLBatchWriter)(nil)
