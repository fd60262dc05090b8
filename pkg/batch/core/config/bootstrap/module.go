// Package bootstrap assembles the jbatch application with fx.
package bootstrap

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/jbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/jbatch/pkg/batch/component/batchlet/generic"
	"github.com/tigerroll/jbatch/pkg/batch/component/batchlet/migration"
	"github.com/tigerroll/jbatch/pkg/batch/component/flow"
	"github.com/tigerroll/jbatch/pkg/batch/component/item"
	"github.com/tigerroll/jbatch/pkg/batch/component/partitioner"
	"github.com/tigerroll/jbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/jbatch/pkg/batch/component/step/writer"
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/core/job/runner"
	coremetrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	"github.com/tigerroll/jbatch/pkg/batch/engine/runtime"
	"github.com/tigerroll/jbatch/pkg/batch/engine/step/factory"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/httpapi"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/jbatch/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/jbatch/pkg/batch/listener"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// RuntimeParams defines the dependencies of NewRuntimeContext.
type RuntimeParams struct {
	fx.In
	Cfg        *config.Config
	Repository repository.JobRepository
	Artifacts  port.ArtifactFactory
	TxFactory  tx.TransactionManagerFactory
	Recorder   coremetrics.MetricRecorder
	Tracer     coremetrics.Tracer
}

// NewRuntimeContext gathers the collaborators shared by every controller. The kernel
// installs itself as the Submitter.
func NewRuntimeContext(p RuntimeParams) *runtime.RuntimeContext {
	return &runtime.RuntimeContext{
		Repository:          p.Repository,
		Artifacts:           p.Artifacts,
		TxFactory:           p.TxFactory,
		Recorder:            p.Recorder,
		Tracer:              p.Tracer,
		MaskedParameterKeys: p.Cfg.JBatch.Security.MaskedParameterKeys,
	}
}

// NewKernelOptions maps jbatch.batch onto kernel.Options.
func NewKernelOptions(cfg *config.Config) kernel.Options {
	return kernel.Options{PoolSize: cfg.JBatch.Batch.PoolSize}
}

// InfrastructureModule provides the database and storage connections, the job repository
// and the telemetry backends.
var InfrastructureModule = fx.Options(
	gorm.Module,
	sqlite.Module,
	mysql.Module,
	postgres.Module,
	storage.Module,
	local.Module,
	gcs.Module,
	inmemory.Module,
	sqlrepo.Module,
	coremetrics.Module,
	metrics.Module,
)

// ArtifactsModule contributes every built-in artifact to the registry.
var ArtifactsModule = fx.Options(
	item.Module,
	reader.Module,
	writer.Module,
	partitioner.Module,
	flow.Module,
	generic.Module,
	migration.Module,
	listener.Module,
)

// EngineModule provides the kernel, the operator and the explorer.
var EngineModule = fx.Options(
	support.Module,
	factory.Module,
	runner.Module,
	kernel.Module,
	usecase.Module,
	fx.Provide(
		NewJSLRegistry,
		NewRuntimeContext,
		NewKernelOptions,
	),
)

// Module assembles the whole application. The application supplies its configuration
// (config.EmbeddedConfig and an optional `name:"envFilePath"` string) and its job
// definitions (JobDefinition).
var Module = fx.Options(
	fx.WithLogger(logger.NewFxLoggerAdapter),
	config.Module,
	InfrastructureModule,
	ArtifactsModule,
	EngineModule,
	httpapi.Module,
)
