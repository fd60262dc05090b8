package gorm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/jbatch/pkg/batch/core/adapter"
	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

type reconnecter interface {
	ForceReconnect(name string) (database.DBConnection, error)
}

// GormDBConnectionResolver implements database.DBConnectionResolver: it reads the type of
// the named configuration and asks the provider of that type for the connection.
type GormDBConnectionResolver struct {
	providers map[string]database.DBProvider
	cfg       *config.Config
	// verified holds the connections that passed their first ping.
	verified sync.Map
}

// ResolverParams are the dependencies of NewGormDBConnectionResolver.
type ResolverParams struct {
	fx.In
	Providers []database.DBProvider `group:"db_providers"`
	Cfg       *config.Config
}

// NewGormDBConnectionResolver creates a resolver over the registered providers.
func NewGormDBConnectionResolver(p ResolverParams) *GormDBConnectionResolver {
	providers := make(map[string]database.DBProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &GormDBConnectionResolver{providers: providers, cfg: p.Cfg}
}

// ResolveDBConnection implements database.DBConnectionResolver. A connection is pinged the
// first time it is handed out and reopened once when that ping fails. Later resolves do
// not touch the pool, so they cannot wait on a connection held by an open transaction.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	dbConfig, err := database.LookupConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("DBProvider for type '%s' not found for connection '%s'", dbConfig.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, err
	}
	if _, ok := r.verified.Load(conn); ok {
		return conn, nil
	}
	if pingErr := conn.Ping(ctx); pingErr != nil {
		rc, ok := provider.(reconnecter)
		if !ok {
			return nil, fmt.Errorf("connection '%s' is invalid: %w", name, pingErr)
		}
		logger.Warnf("Connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		if conn, err = rc.ForceReconnect(name); err != nil {
			return nil, err
		}
	}
	r.verified.Store(conn, struct{}{})
	return conn, nil
}

// ResolveConnection implements coreAdapter.ResourceConnectionResolver.
func (r *GormDBConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveDBConnection(ctx, name)
}

// ResolveGormDB resolves name and returns its *gorm.DB.
func ResolveGormDB(ctx context.Context, r database.DBConnectionResolver, name string) (*gorm.DB, error) {
	conn, err := r.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	return GormDBOf(conn)
}

// ResolveContextDB returns the open transaction of connection name carried by ctx, or the
// resolved connection bound to ctx when there is none. The transaction is checked first so
// a chunk holding the only pooled connection never waits on itself.
func ResolveContextDB(ctx context.Context, r database.DBConnectionResolver, name string) (*gorm.DB, error) {
	if gtx, ok := TxFromContext(ctx, name); ok {
		return gtx.WithContext(ctx), nil
	}
	db, err := ResolveGormDB(ctx, r, name)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// CloseProviders closes the connections of every provider.
func CloseProviders(providers []database.DBProvider) error {
	var lastErr error
	for _, p := range providers {
		if err := p.CloseAll(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
