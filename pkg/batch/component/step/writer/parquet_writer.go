package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/serialization"
)

// ParquetItemWriterConfig holds the JSL properties of ParquetItemWriter.
type ParquetItemWriterConfig struct {
	// StorageRef names the storage connection (jbatch.storage.<name>).
	StorageRef string `mapstructure:"storageRef"`
	// OutputBaseDir is the object prefix of the produced files.
	OutputBaseDir string `mapstructure:"outputBaseDir"`
	// Schema is the parquet-go JSON schema of the rows.
	Schema string `mapstructure:"schema"`
	// CompressionType is SNAPPY (default), GZIP or NONE.
	CompressionType string `mapstructure:"compressionType"`
	// FilePrefix prefixes every file name. Defaults to "part".
	FilePrefix string `mapstructure:"filePrefix"`
}

// ParquetItemWriter writes every chunk as one Parquet file uploaded to a storage
// connection. Items are encoded to JSON and matched against Schema by field name.
//
// File names are derived from the number of files already flushed, which is also the
// checkpoint: a chunk rolled back after its upload is rewritten under the same name.
type ParquetItemWriter struct {
	resolver storage.StorageConnectionResolver
	cfg      ParquetItemWriterConfig
	codec    parquet.CompressionCodec

	conn    storage.StorageConnection
	flushed int
	prefix  string
}

// NewParquetItemWriter creates a writer from its JSL properties.
func NewParquetItemWriter(resolver storage.StorageConnectionResolver, properties map[string]string) (*ParquetItemWriter, error) {
	var cfg ParquetItemWriterConfig
	if err := support.DecodeProperties(properties, &cfg); err != nil {
		return nil, err
	}
	if cfg.StorageRef == "" || cfg.OutputBaseDir == "" || cfg.Schema == "" {
		return nil, exception.NewConfigurationError("writer", "ParquetItemWriter requires the 'storageRef', 'outputBaseDir' and 'schema' properties")
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "SNAPPY"
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "part"
	}
	codec, err := compressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewConfigurationError("writer", "ParquetItemWriter: %v", err)
	}
	return &ParquetItemWriter{resolver: resolver, cfg: cfg, codec: codec}, nil
}

// Open implements port.ItemWriter.
func (w *ParquetItemWriter) Open(ctx context.Context, checkpoint []byte) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.cfg.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("Failed to resolve storage connection '%s' for ParquetItemWriter", w.cfg.StorageRef), err, false, false)
	}
	w.conn = conn
	w.flushed = 0
	if _, err := serialization.UnmarshalToken(checkpoint, &w.flushed); err != nil {
		return err
	}
	w.prefix = w.cfg.FilePrefix
	if sc, ok := port.StepContextFrom(ctx); ok && sc.PartitionIndex() != model.TopLevelPartition {
		w.prefix = fmt.Sprintf("%s-p%d", w.cfg.FilePrefix, sc.PartitionIndex())
	}
	logger.Infof("ParquetItemWriter: opened on '%s' under %s, %d files already flushed.", w.cfg.StorageRef, w.cfg.OutputBaseDir, w.flushed)
	return nil
}

// WriteItems implements port.ItemWriter.
func (w *ParquetItemWriter) WriteItems(ctx context.Context, items []any) error {
	if len(items) == 0 {
		return nil
	}
	data, err := w.encode(items)
	if err != nil {
		return err
	}
	objectName := path.Join(w.cfg.OutputBaseDir, fmt.Sprintf("%s-%05d.parquet", w.prefix, w.flushed))
	if err := w.conn.Upload(ctx, "", objectName, bytes.NewReader(data), "application/octet-stream"); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("Failed to upload Parquet file '%s'", objectName), err, false, true)
	}
	w.flushed++
	logger.Debugf("ParquetItemWriter: uploaded %d rows (%d bytes) to %s.", len(items), len(data), objectName)
	return nil
}

func (w *ParquetItemWriter) encode(items []any) (data []byte, err error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewJSONWriterFromWriter(w.cfg.Schema, buf, 1)
	if err != nil {
		return nil, exception.NewConfigurationError("writer", "ParquetItemWriter: invalid schema: %v", err)
	}
	pw.CompressionType = w.codec
	for i, item := range items {
		row, err := json.Marshal(item)
		if err != nil {
			return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to encode item %d as JSON", i), err, true, false)
		}
		if err := pw.Write(string(row)); err != nil {
			return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to write item %d to Parquet", i), err, true, false)
		}
	}
	// parquet-go panics on some schema mismatches during the final flush.
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, exception.NewBatchErrorf("writer", "Parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, exception.NewBatchError("writer", "Failed to finish Parquet file", err, false, false)
	}
	return buf.Bytes(), nil
}

// CheckpointInfo implements port.ItemWriter.
func (w *ParquetItemWriter) CheckpointInfo(ctx context.Context) ([]byte, error) {
	return serialization.MarshalToken(w.flushed)
}

// Close implements port.ItemWriter.
func (w *ParquetItemWriter) Close(ctx context.Context) error {
	logger.Infof("ParquetItemWriter: closed after %d files on '%s'.", w.flushed, w.cfg.StorageRef)
	return nil
}

// compressionCodec returns the Parquet compression codec named by compressionType.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
}

var _ port.ItemWriter = (*ParquetItemWriter)(nil)
