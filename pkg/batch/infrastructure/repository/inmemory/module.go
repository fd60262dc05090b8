package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
)

// Module provides InMemoryJobRepository as the repository.JobRepository, with in-process
// transactions. Other repository modules replace both with fx.Decorate.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryJobRepository,
			fx.As(new(repository.JobRepository)),
		),
		func() tx.TransactionManagerFactory { return tx.LocalTransactionManagerFactory{} },
	),
)
