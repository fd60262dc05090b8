package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/jbatch/pkg/batch/core/config"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// Module serves the operator API on jbatch.http.address. An empty address disables it.
var Module = fx.Options(
	fx.Provide(newHandler),
	fx.Invoke(registerServer),
)

// HandlerParams defines the dependencies of the operator API.
type HandlerParams struct {
	fx.In
	Operator usecase.JobOperator
	Explorer usecase.JobExplorer
	Registry *prometheus.Registry `optional:"true"`
	Cfg      *config.Config
}

func newHandler(p HandlerParams) *Handler {
	var gatherer prometheus.Gatherer
	if p.Registry != nil && p.Cfg.JBatch.Telemetry.MetricsExporter == config.ExporterPrometheus {
		gatherer = p.Registry
	}
	return NewHandler(p.Operator, p.Explorer, gatherer, p.Cfg.JBatch.Security.MaskedParameterKeys)
}

// NewServer creates the HTTP server of the operator API.
func NewServer(address string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func registerServer(lc fx.Lifecycle, cfg *config.Config, h *Handler) {
	address := cfg.JBatch.HTTP.Address
	if address == "" {
		logger.Debugf("Operator API disabled: jbatch.http.address is empty.")
		return
	}
	server := NewServer(address, h)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", address)
			if err != nil {
				return err
			}
			logger.Infof("Operator API listening on %s.", ln.Addr())
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Operator API server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			timeout := time.Duration(cfg.JBatch.HTTP.ShutdownTimeoutSeconds) * time.Second
			shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			server.SetKeepAlivesEnabled(false)
			logger.Infof("Operator API shutting down.")
			return server.Shutdown(shutdownCtx)
		},
	})
}
