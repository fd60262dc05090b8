package bootstrap

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/config"
	jsl "github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// JSLDefinitionGroup is the value group of embedded job definitions.
const JSLDefinitionGroup = "jsl_definitions"

// JobDefinition contributes an embedded JSL document to the registry.
func JobDefinition(data []byte) fx.Option {
	return fx.Supply(fx.Annotated{Group: JSLDefinitionGroup, Target: jsl.JSLDefinitionBytes(data)})
}

// JSLParams defines the dependencies of NewJSLRegistry.
type JSLParams struct {
	fx.In
	Cfg         *config.Config
	Definitions []jsl.JSLDefinitionBytes `group:"jsl_definitions"`
}

// NewJSLRegistry loads the embedded job definitions, then the files of
// jbatch.batch.jobs_dir. Chunks without an item count get jbatch.batch.item_count.
func NewJSLRegistry(p JSLParams) (*jsl.Registry, error) {
	r := jsl.NewRegistry()
	for _, data := range p.Definitions {
		if _, err := r.Load(data); err != nil {
			return nil, err
		}
	}
	if dir := p.Cfg.JBatch.Batch.JobsDir; dir != "" {
		logger.Infof("Loading JSL definitions from '%s'.", dir)
		if err := r.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	// The registry hands out clones; defaults are set on the stored definitions.
	for _, name := range r.Names() {
		if job, ok := r.Definition(name); ok {
			job.SetDefaultItemCount(p.Cfg.JBatch.Batch.ItemCount)
		}
	}
	logger.Infof("Loaded %d JSL definitions: %v", len(r.Names()), r.Names())
	return r, nil
}
