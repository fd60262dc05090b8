package notification

import (
	"context"

	"go.uber.org/fx"

	support "github.com/tigerroll/jbatch/pkg/batch/core/config/support"
)

// NotificationJobListenerRef is the reference name of NotificationJobListener.
const NotificationJobListenerRef = "notificationJobListener"

func notificationJobListenerArtifact(notifier Notifier) support.NamedArtifact {
	return support.NamedArtifact{Name: NotificationJobListenerRef, Builder: func(context.Context, map[string]string) (any, error) {
		return NewNotificationJobListener(notifier), nil
	}}
}

// Module provides the LogNotifier as the Notifier, and the listener as an artifact.
// Replace the Notifier with fx.Decorate to send notifications elsewhere.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLogNotifier, fx.As(new(Notifier)))),
	fx.Provide(support.AsArtifact(notificationJobListenerArtifact)),
)
