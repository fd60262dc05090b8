// Package logging provides listeners that write batch lifecycle events to the application log.
package logging

import (
	"context"
	"strconv"

	port "github.com/tigerroll/jbatch/pkg/batch/core/application/port"
	logger "github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// stepName returns the step name carried by ctx, with the partition index when there is one.
func stepName(ctx context.Context) string {
	sc, ok := port.StepContextFrom(ctx)
	if !ok {
		return "?"
	}
	if sc.PartitionIndex() >= 0 {
		return sc.StepName() + "#" + strconv.Itoa(sc.PartitionIndex())
	}
	return sc.StepName()
}

// --- Job Listener ---

// LoggingJobListener logs the start and end of a job. Parameters named in maskedKeys are masked.
type LoggingJobListener struct {
	maskedKeys []string
}

func NewLoggingJobListener(maskedKeys []string) *LoggingJobListener {
	return &LoggingJobListener{maskedKeys: maskedKeys}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context) error {
	if jc, ok := port.JobContextFrom(ctx); ok {
		logger.Infof("JobListener: BeforeJob - JobName: %s, ID: %s, Params: %+v", jc.JobName(), jc.ExecutionID(), jc.Parameters().Masked(l.maskedKeys))
	}
	return nil
}

func (l *LoggingJobListener) AfterJob(ctx context.Context) error {
	if jc, ok := port.JobContextFrom(ctx); ok {
		logger.Infof("JobListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jc.JobName(), jc.BatchStatus(), jc.ExitStatus())
	}
	return nil
}

var _ port.JobListener = (*LoggingJobListener)(nil)

// --- Step Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener { return &LoggingStepListener{} }

func (l *LoggingStepListener) BeforeStep(ctx context.Context) error {
	logger.Infof("StepListener: BeforeStep - StepName: %s", stepName(ctx))
	return nil
}

func (l *LoggingStepListener) AfterStep(ctx context.Context) error {
	if sc, ok := port.StepContextFrom(ctx); ok {
		m := sc.Metrics()
		logger.Infof("StepListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Skip: %d",
			stepName(ctx), sc.BatchStatus(), sc.ExitStatus(), m.ReadCount, m.WriteCount, m.ReadSkipCount+m.ProcessSkipCount+m.WriteSkipCount)
	}
	return nil
}

var _ port.StepListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener { return &LoggingChunkListener{} }

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context) error {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepName(ctx))
	return nil
}

func (l *LoggingChunkListener) OnError(ctx context.Context, err error) error {
	logger.Errorf("ChunkListener: OnError - StepName: %s, Error: %v", stepName(ctx), err)
	return nil
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context) error {
	if sc, ok := port.StepContextFrom(ctx); ok {
		m := sc.Metrics()
		logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d, Commits: %d", stepName(ctx), m.ReadCount, m.WriteCount, m.CommitCount)
	}
	return nil
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Item Read Listener ---

type LoggingItemReadListener struct{}

func NewLoggingItemReadListener() *LoggingItemReadListener { return &LoggingItemReadListener{} }

func (l *LoggingItemReadListener) BeforeRead(context.Context) error { return nil }

func (l *LoggingItemReadListener) AfterRead(ctx context.Context, item any) error {
	logger.Debugf("ItemReadListener: AfterRead - StepName: %s, Item: %+v", stepName(ctx), item)
	return nil
}

func (l *LoggingItemReadListener) OnReadError(ctx context.Context, err error) error {
	logger.Errorf("ItemReadListener: OnReadError - StepName: %s, Error: %v", stepName(ctx), err)
	return nil
}

var _ port.ItemReadListener = (*LoggingItemReadListener)(nil)

// --- Item Process Listener ---

type LoggingItemProcessListener struct{}

func NewLoggingItemProcessListener() *LoggingItemProcessListener {
	return &LoggingItemProcessListener{}
}

func (l *LoggingItemProcessListener) BeforeProcess(context.Context, any) error { return nil }

func (l *LoggingItemProcessListener) AfterProcess(ctx context.Context, item, result any) error {
	if result == nil {
		logger.Debugf("ItemProcessListener: AfterProcess - StepName: %s, Item filtered: %+v", stepName(ctx), item)
	}
	return nil
}

func (l *LoggingItemProcessListener) OnProcessError(ctx context.Context, item any, err error) error {
	logger.Errorf("ItemProcessListener: OnProcessError - StepName: %s, Item: %+v, Error: %v", stepName(ctx), item, err)
	return nil
}

var _ port.ItemProcessListener = (*LoggingItemProcessListener)(nil)

// --- Item Write Listener ---

type LoggingItemWriteListener struct{}

func NewLoggingItemWriteListener() *LoggingItemWriteListener { return &LoggingItemWriteListener{} }

func (l *LoggingItemWriteListener) BeforeWrite(context.Context, []any) error { return nil }

func (l *LoggingItemWriteListener) AfterWrite(ctx context.Context, items []any) error {
	logger.Debugf("ItemWriteListener: AfterWrite - StepName: %s, Items count: %d", stepName(ctx), len(items))
	return nil
}

func (l *LoggingItemWriteListener) OnWriteError(ctx context.Context, items []any, err error) error {
	logger.Errorf("ItemWriteListener: OnWriteError - StepName: %s, Items count: %d, Error: %v", stepName(ctx), len(items), err)
	return nil
}

var _ port.ItemWriteListener = (*LoggingItemWriteListener)(nil)

// --- Skip Listener ---

type LoggingSkipListener struct{}

func NewLoggingSkipListener() *LoggingSkipListener { return &LoggingSkipListener{} }

func (l *LoggingSkipListener) OnSkipReadItem(ctx context.Context, err error) error {
	logger.Warnf("SkipListener: OnSkipReadItem - StepName: %s, Skipping item due to error: %v", stepName(ctx), err)
	return nil
}

func (l *LoggingSkipListener) OnSkipProcessItem(ctx context.Context, item any, err error) error {
	logger.Warnf("SkipListener: OnSkipProcessItem - StepName: %s, Skipping item: %+v, Error: %v", stepName(ctx), item, err)
	return nil
}

func (l *LoggingSkipListener) OnSkipWriteItem(ctx context.Context, items []any, err error) error {
	logger.Warnf("SkipListener: OnSkipWriteItem - StepName: %s, Skipping %d items, Error: %v", stepName(ctx), len(items), err)
	return nil
}

var _ port.SkipListener = (*LoggingSkipListener)(nil)

// --- Retry Listener ---

type LoggingRetryListener struct{}

func NewLoggingRetryListener() *LoggingRetryListener { return &LoggingRetryListener{} }

func (l *LoggingRetryListener) OnRetryReadException(ctx context.Context, err error) error {
	logger.Warnf("RetryListener: OnRetryReadException - StepName: %s, Retrying read operation due to error: %v", stepName(ctx), err)
	return nil
}

func (l *LoggingRetryListener) OnRetryProcessException(ctx context.Context, item any, err error) error {
	logger.Warnf("RetryListener: OnRetryProcessException - StepName: %s, Retrying process operation for item: %+v, Error: %v", stepName(ctx), item, err)
	return nil
}

func (l *LoggingRetryListener) OnRetryWriteException(ctx context.Context, items []any, err error) error {
	logger.Warnf("RetryListener: OnRetryWriteException - StepName: %s, Retrying write operation for %d items, Error: %v", stepName(ctx), len(items), err)
	return nil
}

var _ port.RetryListener = (*LoggingRetryListener)(nil)
