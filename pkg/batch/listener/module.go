// Package listener aggregates the built-in listener artifacts.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/jbatch/pkg/batch/listener/notification"
)

// Module contributes every built-in listener to the "artifacts" group.
var Module = fx.Options(
	logging.Module,
	notification.Module,
)
