// Package httpapi exposes the JobOperator and JobExplorer over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/jbatch/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/jbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/jbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/jbatch/pkg/batch/engine/kernel"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

// maxBodyBytes bounds the size of a start or restart request body.
const maxBodyBytes = 1 << 20

// Handler serves the operator API.
type Handler struct {
	operator   usecase.JobOperator
	explorer   usecase.JobExplorer
	gatherer   prometheus.Gatherer
	maskedKeys []string
}

// NewHandler creates a Handler. gatherer may be nil, in which case /metrics is not served.
func NewHandler(operator usecase.JobOperator, explorer usecase.JobExplorer, gatherer prometheus.Gatherer, maskedKeys []string) *Handler {
	return &Handler{operator: operator, explorer: explorer, gatherer: gatherer, maskedKeys: maskedKeys}
}

// Router returns the routes of the API.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/jobs/{name}/start", h.startJob).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/restart", h.restartExecution).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/stop", h.stopExecution).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/abandon", h.abandonExecution).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}", h.getExecution).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/steps", h.getStepExecutions).Methods(http.MethodGet)
	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	router.Use(logging)
	return router
}

func (h *Handler) startJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	req, err := decodeStartRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	je, err := h.operator.Start(r.Context(), name, model.JobParameters(req.Parameters))
	if err != nil {
		writeOperatorError(w, err)
		return
	}
	w.Header().Set("Location", "/executions/"+je.ID)
	writeJSON(w, http.StatusAccepted, toJobExecutionResponse(je, h.maskedKeys))
}

func (h *Handler) restartExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, err := decodeStartRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	je, err := h.operator.Restart(r.Context(), id, model.JobParameters(req.Parameters))
	if err != nil {
		writeOperatorError(w, err)
		return
	}
	w.Header().Set("Location", "/executions/"+je.ID)
	writeJSON(w, http.StatusAccepted, toJobExecutionResponse(je, h.maskedKeys))
}

func (h *Handler) stopExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.operator.Stop(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeOperatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) abandonExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.operator.Abandon(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeOperatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getExecution(w http.ResponseWriter, r *http.Request) {
	je, err := h.explorer.GetJobExecution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeOperatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobExecutionResponse(je, h.maskedKeys))
}

func (h *Handler) getStepExecutions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	// The execution lookup turns an unknown id into a 404 instead of an empty list.
	if _, err := h.explorer.GetJobExecution(r.Context(), id); err != nil {
		writeOperatorError(w, err)
		return
	}
	steps, err := h.explorer.GetStepExecutions(r.Context(), id)
	if err != nil {
		writeOperatorError(w, err)
		return
	}
	out := make([]stepExecutionResponse, 0, len(steps))
	for _, se := range steps {
		out = append(out, toStepExecutionResponse(se))
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeStartRequest(r *http.Request) (startRequest, error) {
	var req startRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	if len(body) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	return req, nil
}

// statusOf maps operator, explorer and kernel errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrNoSuchJob),
		errors.Is(err, repository.ErrJobExecutionNotFound),
		errors.Is(err, repository.ErrJobInstanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrJobExecutionAlreadyComplete),
		errors.Is(err, usecase.ErrJobExecutionAbandoned),
		errors.Is(err, usecase.ErrJobExecutionNotMostRecent),
		errors.Is(err, usecase.ErrJobExecutionIsRunning),
		errors.Is(err, usecase.ErrJobNotRestartable),
		errors.Is(err, kernel.ErrInstanceAlreadyRunning),
		errors.Is(err, kernel.ErrExecutionAlreadyRegistered),
		errors.Is(err, kernel.ErrJobNotRunning),
		exception.IsOptimisticLockingFailure(err):
		return http.StatusConflict
	case errors.Is(err, kernel.ErrKernelShutdown):
		return http.StatusServiceUnavailable
	case exception.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeOperatorError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("Operator API request failed: %v", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: exception.ExtractErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
