package storage

import (
	"fmt"
	"sync"

	storageConfig "github.com/tigerroll/jbatch/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// LookupConfig decodes the storage configuration stored under jbatch.storage.<name>.
func LookupConfig(cfg *config.Config, name string) (storageConfig.StorageConfig, error) {
	var sc storageConfig.StorageConfig
	raw, ok := cfg.JBatch.Storage[name]
	if !ok {
		return sc, fmt.Errorf("storage '%s': %w", name, coreAdapter.ErrConnectionNotConfigured)
	}
	if err := configbinder.Decode(raw, &sc); err != nil {
		return sc, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}

// ConnectFunc opens a connection for a decoded configuration.
type ConnectFunc func(cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

// BaseProvider opens connections of one storage type with connect and caches them by name.
type BaseProvider struct {
	cfg         *config.Config
	storageType string
	connect     ConnectFunc
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewBaseProvider creates a provider for storageType.
func NewBaseProvider(cfg *config.Config, storageType string, connect ConnectFunc) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		storageType: storageType,
		connect:     connect,
		connections: make(map[string]StorageConnection),
	}
}

// Type implements StorageProvider.
func (p *BaseProvider) Type() string {
	return p.storageType
}

// GetConnection implements StorageProvider.
func (p *BaseProvider) GetConnection(name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	sc, err := LookupConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if sc.Type != p.storageType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, p.storageType, sc.Type)
	}
	conn, err := p.connect(sc, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage '%s': %w", p.storageType, name, err)
	}
	p.connections[name] = conn
	logger.Infof("Established new storage connection: %s (%s)", name, p.storageType)
	return conn, nil
}

// CloseAll implements StorageProvider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lastErr error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close storage connection '%s': %v", name, err)
			lastErr = err
		}
		delete(p.connections, name)
	}
	return lastErr
}
