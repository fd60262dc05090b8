package migration_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/jbatch/pkg/batch/component/batchlet/migration"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

var appFS = fstest.MapFS{
	"sqlite/000001_create_payslips.up.sql":   {Data: []byte("CREATE TABLE payslips (id INTEGER PRIMARY KEY, amount INTEGER);")},
	"sqlite/000001_create_payslips.down.sql": {Data: []byte("DROP TABLE payslips;")},
}

func newResolver(t *testing.T) database.DBConnectionResolver {
	cfg := config.NewConfig()
	cfg.JBatch.Database["app"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "app.db"),
	}
	provider := sqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })
	return gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		Providers: []database.DBProvider{provider},
		Cfg:       cfg,
	})
}

func tableExists(t *testing.T, r database.DBConnectionResolver, name string) bool {
	db, err := gormadapter.ResolveGormDB(context.Background(), r, "app")
	require.NoError(t, err)
	return db.Migrator().HasTable(name)
}

func TestMigrationBatchlet_UpAndDown(t *testing.T) {
	ctx := context.Background()
	resolver := newResolver(t)
	fileSystems := map[string]fs.FS{"app": appFS}

	up, err := migration.NewMigrationBatchlet(resolver, fileSystems, map[string]string{"dbRef": "app", "migrationFSName": "app"})
	require.NoError(t, err)
	exit, err := up.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MIGRATED_UP", exit)
	assert.True(t, tableExists(t, resolver, "payslips"))
	assert.True(t, tableExists(t, resolver, "batch_app_migrations"))

	again, err := up.Process(ctx)
	require.NoError(t, err, "no pending migration is not an error")
	assert.Equal(t, "MIGRATED_UP", again)

	down, err := migration.NewMigrationBatchlet(resolver, fileSystems, map[string]string{"dbRef": "app", "migrationFSName": "app", "command": "down"})
	require.NoError(t, err)
	exit, err = down.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MIGRATED_DOWN", exit)
	assert.False(t, tableExists(t, resolver, "payslips"))
}

func TestMigrationBatchlet_Configuration(t *testing.T) {
	fileSystems := map[string]fs.FS{"app": appFS}
	cases := map[string]map[string]string{
		"missing dbRef": {"migrationFSName": "app"},
		"unknown fs":    {"dbRef": "app", "migrationFSName": "nope"},
		"bad command":   {"dbRef": "app", "migrationFSName": "app", "command": "sideways"},
	}
	for name, props := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := migration.NewMigrationBatchlet(nil, fileSystems, props)
			assert.True(t, exception.IsConfigurationError(err))
		})
	}
}

func TestMigrationBatchlet_StoppedBeforeStart(t *testing.T) {
	b, err := migration.NewMigrationBatchlet(newResolver(t), map[string]fs.FS{"app": appFS}, map[string]string{"dbRef": "app", "migrationFSName": "app"})
	require.NoError(t, err)
	require.NoError(t, b.Stop(context.Background()))
	exit, err := b.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "STOPPED", exit)
}
