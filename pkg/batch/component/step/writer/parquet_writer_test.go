package writer_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/jbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

const payslipSchema = `{
  "Tag": "name=parquet_go_root, repetitiontype=REQUIRED",
  "Fields": [
    {"Tag": "name=id, inname=Id, type=INT64, repetitiontype=REQUIRED"},
    {"Tag": "name=name, inname=Name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}
  ]
}`

func newStorageResolver(t *testing.T) storage.StorageConnectionResolver {
	cfg := config.NewConfig()
	cfg.JBatch.Storage["exports"] = map[string]interface{}{"type": "local", "base_dir": t.TempDir()}
	return storage.NewConnectionResolver(storage.ResolverParams{
		Providers: []storage.StorageProvider{local.NewProvider(cfg)},
		Cfg:       cfg,
	})
}

func listObjects(t *testing.T, r storage.StorageConnectionResolver) []string {
	conn, err := r.ResolveStorageConnection(context.Background(), "exports")
	require.NoError(t, err)
	var names []string
	require.NoError(t, conn.ListObjects(context.Background(), "", "payslips/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	return names
}

func TestParquetItemWriter_FileNamesFollowCheckpoint(t *testing.T) {
	ctx := context.Background()
	resolver := newStorageResolver(t)
	props := map[string]string{"storageRef": "exports", "outputBaseDir": "payslips", "schema": payslipSchema, "compressionType": "NONE"}

	w, err := writer.NewParquetItemWriter(resolver, props)
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx, nil))
	require.NoError(t, w.WriteItems(ctx, []any{map[string]any{"id": 1, "name": "a"}, map[string]any{"id": 2, "name": "b"}}))
	token, err := w.CheckpointInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, w.WriteItems(ctx, []any{map[string]any{"id": 3, "name": "c"}}))
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, []string{"payslips/part-00000.parquet", "payslips/part-00001.parquet"}, listObjects(t, resolver))

	// A restart from the first checkpoint rewrites the second file instead of adding one.
	restarted, err := writer.NewParquetItemWriter(resolver, props)
	require.NoError(t, err)
	require.NoError(t, restarted.Open(ctx, token))
	require.NoError(t, restarted.WriteItems(ctx, []any{map[string]any{"id": 3, "name": "c"}}))
	assert.Equal(t, []string{"payslips/part-00000.parquet", "payslips/part-00001.parquet"}, listObjects(t, resolver))

	conn, err := resolver.ResolveStorageConnection(ctx, "exports")
	require.NoError(t, err)
	rc, err := conn.Download(ctx, "", "payslips/part-00000.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
	assert.True(t, bytes.HasSuffix(data, []byte("PAR1")))
}

func TestParquetItemWriter_Validation(t *testing.T) {
	resolver := newStorageResolver(t)
	_, err := writer.NewParquetItemWriter(resolver, map[string]string{"storageRef": "exports"})
	assert.True(t, exception.IsConfigurationError(err))

	_, err = writer.NewParquetItemWriter(resolver, map[string]string{
		"storageRef": "exports", "outputBaseDir": "x", "schema": payslipSchema, "compressionType": "LZMA",
	})
	assert.True(t, exception.IsConfigurationError(err))
}
