package reader_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/jbatch/pkg/batch/component/step/reader"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

func newResolver(t *testing.T) database.DBConnectionResolver {
	cfg := config.NewConfig()
	cfg.JBatch.Database["source"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "source.db"),
		"pool":     map[string]interface{}{"max_open_conns": "1"},
	}
	provider := sqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })
	r := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		Providers: []database.DBProvider{provider},
		Cfg:       cfg,
	})

	db, err := gormadapter.ResolveGormDB(context.Background(), r, "source")
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT)").Error)
	for i := 1; i <= 5; i++ {
		require.NoError(t, db.Exec("INSERT INTO employees (id, name) VALUES (?, ?)", i, fmt.Sprintf("e%d", i)).Error)
	}
	return r
}

func readAll(t *testing.T, r *reader.SQLPagingReader, limit int) []any {
	var items []any
	for len(items) < limit {
		item, err := r.ReadItem(context.Background())
		if err == port.ErrNoMoreItems {
			break
		}
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func TestSQLPagingReader_PagesAndRestarts(t *testing.T) {
	ctx := context.Background()
	resolver := newResolver(t)
	props := map[string]string{"dbRef": "source", "query": "SELECT id, name FROM employees ORDER BY id;", "pageSize": "2"}

	r, err := reader.NewSQLPagingReader(resolver, props)
	require.NoError(t, err)
	require.NoError(t, r.Open(ctx, nil))
	first := readAll(t, r, 3)
	require.Len(t, first, 3)
	assert.Equal(t, "e1", first[0].(map[string]any)["name"])
	token, err := r.CheckpointInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close(ctx))

	resumed, err := reader.NewSQLPagingReader(resolver, props)
	require.NoError(t, err)
	require.NoError(t, resumed.Open(ctx, token))
	rest := readAll(t, resumed, 10)
	require.Len(t, rest, 2)
	assert.Equal(t, "e4", rest[0].(map[string]any)["name"])
	assert.Equal(t, "e5", rest[1].(map[string]any)["name"])
}

func TestSQLPagingReader_RequiresQuery(t *testing.T) {
	_, err := reader.NewSQLPagingReader(nil, map[string]string{"dbRef": "source"})
	assert.True(t, exception.IsConfigurationError(err))
}

func TestSQLPagingReader_ReadsInsideChunkTransaction(t *testing.T) {
	resolver := newResolver(t)
	r, err := reader.NewSQLPagingReader(resolver, map[string]string{"dbRef": "source", "query": "SELECT id, name FROM employees ORDER BY id", "pageSize": "3"})
	require.NoError(t, err)

	m := gormadapter.NewGormTransactionManager(resolver, "source")
	chunk, err := m.Begin(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(chunk.Context(), 2*time.Second)
	defer cancel()

	require.NoError(t, r.Open(ctx, nil))
	item, err := r.ReadItem(ctx)
	require.NoError(t, err, "the page is fetched on the connection the transaction holds")
	assert.Equal(t, "e1", item.(map[string]any)["name"])
	require.NoError(t, m.Commit(chunk))
}
