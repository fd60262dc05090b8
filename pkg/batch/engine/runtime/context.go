// Package runtime holds the state shared by the controllers of one running job: the
// RuntimeContext assembled once at startup, the per-execution JobContext and StepContext,
// the stoppable slot used for cooperative stop, and the sub-job submission contract used
// by partitioned steps and splits.
package runtime

import (
	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	repository "github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/jbatch/pkg/batch/core/metrics"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
)

// RuntimeContext carries the collaborators every controller needs. It is built once and
// passed explicitly to each controller constructor.
type RuntimeContext struct {
	Repository repository.JobRepository
	Artifacts  port.ArtifactFactory
	TxFactory  tx.TransactionManagerFactory
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
	// Submitter runs partition and split-flow sub-jobs. The kernel installs itself here.
	Submitter Submitter
	// MaskedParameterKeys are hidden when job parameters are logged.
	MaskedParameterKeys []string
}

// Validate reports a missing mandatory collaborator.
func (rc *RuntimeContext) Validate() error {
	switch {
	case rc.Repository == nil:
		return exception.NewConfigurationError("runtime", "RuntimeContext has no JobRepository")
	case rc.Artifacts == nil:
		return exception.NewConfigurationError("runtime", "RuntimeContext has no ArtifactFactory")
	case rc.Submitter == nil:
		return exception.NewConfigurationError("runtime", "RuntimeContext has no Submitter")
	}
	if rc.TxFactory == nil {
		rc.TxFactory = tx.LocalTransactionManagerFactory{}
	}
	if rc.Recorder == nil {
		rc.Recorder = metrics.NewNoOpMetricRecorder()
	}
	if rc.Tracer == nil {
		rc.Tracer = metrics.NewNoOpTracer()
	}
	return nil
}
