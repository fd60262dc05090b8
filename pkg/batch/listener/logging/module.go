package logging

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// Reference names of the logging listeners.
const (
	LoggingJobListenerRef         = "loggingJobListener"
	LoggingStepListenerRef        = "loggingStepListener"
	LoggingChunkListenerRef       = "loggingChunkListener"
	LoggingItemReadListenerRef    = "loggingItemReadListener"
	LoggingItemProcessListenerRef = "loggingItemProcessListener"
	LoggingItemWriteListenerRef   = "loggingItemWriteListener"
	LoggingSkipListenerRef        = "loggingSkipListener"
	LoggingRetryListenerRef       = "loggingRetryListener"
)

func artifact(name string, build func() any) func() support.NamedArtifact {
	return func() support.NamedArtifact {
		return support.NamedArtifact{Name: name, Builder: func(context.Context, map[string]string) (any, error) {
			return build(), nil
		}}
	}
}

func jobListenerArtifact(cfg *config.Config) support.NamedArtifact {
	return support.NamedArtifact{Name: LoggingJobListenerRef, Builder: func(context.Context, map[string]string) (any, error) {
		return NewLoggingJobListener(cfg.JBatch.Security.MaskedParameterKeys), nil
	}}
}

// Module contributes the logging listeners to the "artifacts" group.
var Module = fx.Options(
	fx.Provide(
		support.AsArtifact(jobListenerArtifact),
		support.AsArtifact(artifact(LoggingStepListenerRef, func() any { return NewLoggingStepListener() })),
		support.AsArtifact(artifact(LoggingChunkListenerRef, func() any { return NewLoggingChunkListener() })),
		support.AsArtifact(artifact(LoggingItemReadListenerRef, func() any { return NewLoggingItemReadListener() })),
		support.AsArtifact(artifact(LoggingItemProcessListenerRef, func() any { return NewLoggingItemProcessListener() })),
		support.AsArtifact(artifact(LoggingItemWriteListenerRef, func() any { return NewLoggingItemWriteListener() })),
		support.AsArtifact(artifact(LoggingSkipListenerRef, func() any { return NewLoggingSkipListener() })),
		support.AsArtifact(artifact(LoggingRetryListenerRef, func() any { return NewLoggingRetryListener() })),
	),
)
