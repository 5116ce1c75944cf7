package analysis

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Handler exposes the analysis API: triggering runs, reading results,
// and on-demand ACF diagnostics.
type Handler struct {
	pipeline *Pipeline
	store    *Store
	source   SeriesSource
	cfg      Config
	logger   *zap.Logger
}

// NewHandler creates the analysis API handler.
func NewHandler(pipeline *Pipeline, store *Store, source SeriesSource, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		store:    store,
		source:   source,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes mounts the analysis routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/runs", h.handleTriggerRun)
	mux.HandleFunc("GET /api/v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/results", h.handleRunResults)
	mux.HandleFunc("GET /api/v1/runs/{id}/anomalies", h.handleRunAnomalies)
	mux.HandleFunc("GET /api/v1/processes/{id}/acf", h.handleProcessACF)
}

// handleTriggerRun starts a synchronous scoring run and returns it.
func (h *Handler) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.pipeline.Run(r.Context())
	if err != nil {
		if errors.Is(err, ErrEmptyDataset) {
			writeError(w, http.StatusUnprocessableEntity, "no classifiable series in dataset")
			return
		}
		h.logger.Error("trigger run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis run failed")
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// handleListRuns returns run headers, newest first.
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one run header. The ID "latest" resolves to the
// most recent run.
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunResults returns a run's full results table in input order.
func (h *Handler) handleRunResults(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	results, err := h.store.Results(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("run results", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if results == nil {
		results = []Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

// handleRunAnomalies returns a run's flagged rows, highest score first.
func (h *Handler) handleRunAnomalies(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	anomalies, err := h.store.Anomalies(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("run anomalies", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []Result{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

// handleProcessACF computes the diagnostic ACF profile for one process
// from the current dataset. ?max_lag overrides the configured
// diagnostic lag range.
func (h *Handler) handleProcessACF(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		writeError(w, http.StatusBadRequest, "process id is required")
		return
	}

	maxLag := h.cfg.DiagnosticMaxLag
	if raw := r.URL.Query().Get("max_lag"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "max_lag must be a positive integer")
			return
		}
		maxLag = n
	}

	series, err := h.source.Load(r.Context())
	if err != nil {
		h.logger.Error("load series for acf", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load series")
		return
	}
	for _, s := range series {
		if s.ProcessID == processID {
			writeJSON(w, http.StatusOK, ComputeProfile(processID, s.Values, maxLag))
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown process id")
}

// lookupRun resolves the {id} path value (including "latest") to a run,
// writing the error response itself on failure.
func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (*Run, bool) {
	id := r.PathValue("id")

	var run *Run
	var err error
	if id == "latest" {
		run, err = h.store.LatestRun(r.Context())
	} else {
		run, err = h.store.GetRun(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return nil, false
		}
		h.logger.Error("get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
