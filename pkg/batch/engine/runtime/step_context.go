package runtime

import (
	"context"
	"sync"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/jbatch/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/tx"
)

// StepContext is the in-memory state of one running StepExecution.
//
// The StepExecution is owned by the executing goroutine. Other goroutines read it only
// through Snapshot and change only its batch status through RequestStop.
type StepContext struct {
	jc     *JobContext
	step   *jsl.Step
	status *model.StepStatus
	txm    tx.TransactionManager

	restartAfterCompletion bool

	mu        sync.RWMutex
	se        *model.StepExecution
	err       error
	transient any
}

var _ port.StepContext = (*StepContext)(nil)

// NewStepContext wraps se, which was just created for step.
func NewStepContext(jc *JobContext, step *jsl.Step, se *model.StepExecution, status *model.StepStatus) *StepContext {
	return &StepContext{
		jc:     jc,
		step:   step,
		se:     se,
		status: status,
		txm:    jc.rt.TxFactory.NewTransactionManager(step.ID),
	}
}

func (sc *StepContext) StepName() string              { return sc.step.ID }
func (sc *StepContext) StepExecutionID() string       { return sc.se.ID }
func (sc *StepContext) PartitionIndex() int           { return sc.se.PartitionIndex }
func (sc *StepContext) Properties() map[string]string { return sc.step.Properties }

// Job returns the owning job context.
func (sc *StepContext) Job() *JobContext { return sc.jc }

// Step returns the step definition.
func (sc *StepContext) Step() *jsl.Step { return sc.step }

// StepStatus returns the StepStatus row of the step, owned by the executing goroutine.
func (sc *StepContext) StepStatus() *model.StepStatus { return sc.status }

// RestartAfterCompletion reports whether a COMPLETED step runs again because it allows
// start if complete.
func (sc *StepContext) RestartAfterCompletion() bool { return sc.restartAfterCompletion }

// SetRestartAfterCompletion is called by the step lifecycle before the step starts.
func (sc *StepContext) SetRestartAfterCompletion(v bool) { sc.restartAfterCompletion = v }

// TransactionManager returns the transaction manager of the step.
func (sc *StepContext) TransactionManager() tx.TransactionManager { return sc.txm }

// Execution returns the live StepExecution. Only the executing goroutine may use it,
// and never to hand it to a repository: use Persist.
func (sc *StepContext) Execution() *model.StepExecution { return sc.se }

// Persist passes a snapshot of the StepExecution to store and copies back the fields
// the repository assigns: version, last update time and (aggregated) metrics. A stop
// requested meanwhile is kept.
func (sc *StepContext) Persist(ctx context.Context, store func(context.Context, *model.StepExecution) error) error {
	snapshot := sc.Snapshot()
	if err := store(ctx, snapshot); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.se.Version = snapshot.Version
	sc.se.LastUpdated = snapshot.LastUpdated
	sc.se.Metrics = snapshot.Metrics
	return nil
}

// MarkEnded sets the end time of the StepExecution.
func (sc *StepContext) MarkEnded() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.se.MarkEnded()
}

// Snapshot returns a copy of the StepExecution safe to hand to other goroutines.
func (sc *StepContext) Snapshot() *model.StepExecution {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.se.Clone()
}

func (sc *StepContext) BatchStatus() model.BatchStatus {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.se.Status
}

// TransitionTo moves the StepExecution to next, validating the transition.
func (sc *StepContext) TransitionTo(next model.BatchStatus) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.se.Status == next {
		return nil
	}
	return sc.se.TransitionTo(next)
}

// RequestStop moves a running step to STOPPING. It reports whether the step was running.
func (sc *StepContext) RequestStop() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	switch sc.se.Status {
	case model.BatchStatusStarting, model.BatchStatusStarted:
		sc.se.Status = model.BatchStatusStopping
		return true
	case model.BatchStatusStopping:
		return true
	}
	return false
}

// IsStopping reports whether the step or its job was asked to stop.
func (sc *StepContext) IsStopping() bool {
	return sc.BatchStatus() == model.BatchStatusStopping || sc.jc.IsStopping()
}

func (sc *StepContext) ExitStatus() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.se.ExitStatus
}

func (sc *StepContext) SetExitStatus(exitStatus string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.se.ExitStatus = exitStatus
}

func (sc *StepContext) TransientUserData() any {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.transient
}

func (sc *StepContext) SetTransientUserData(data any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.transient = data
}

func (sc *StepContext) PersistentUserData() []byte {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.se.PersistentUserData
}

func (sc *StepContext) SetPersistentUserData(data []byte) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.se.PersistentUserData = data
	sc.status.PersistentUserData = data
}

func (sc *StepContext) Metrics() model.StepMetrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.se.Metrics
}

// AddMetrics adds delta to the step metrics.
func (sc *StepContext) AddMetrics(delta model.StepMetrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.se.Metrics = sc.se.Metrics.Add(delta)
}

func (sc *StepContext) Exception() error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.err
}

// Fail records err as the step failure and moves the step to FAILED.
func (sc *StepContext) Fail(err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.err == nil {
		sc.err = err
	}
	sc.se.AddFailure(err)
	sc.se.Status = model.BatchStatusFailed
}

// WithContext returns ctx carrying the job and step contexts for artifacts.
func (sc *StepContext) WithContext(ctx context.Context) context.Context {
	return port.WithStepContext(sc.jc.WithContext(ctx), sc)
}
