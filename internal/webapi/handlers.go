// Package webapi exposes the evaluation engine over HTTP: starting runs,
// comparing models, watching progress, and browsing stored experiments.
package webapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/zetareason/reasonbench/internal/orchestration"
	"github.com/zetareason/reasonbench/internal/progress"
	"github.com/zetareason/reasonbench/internal/runners"
	"github.com/zetareason/reasonbench/internal/storage"
)

// Version is reported by the health endpoint. Overridable at build time.
var Version = "0.3.0"

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	tracker        *progress.Tracker
	store          *storage.Store
	logger         *slog.Logger
	allowedOrigins map[string]bool
}

// NewHandlers creates a new Handlers. allowedOrigins lists the cross-origin
// hosts permitted to open websocket connections; same-origin and non-browser
// clients are always allowed.
func NewHandlers(tracker *progress.Tracker, store *storage.Store, logger *slog.Logger, allowedOrigins ...string) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handlers{tracker: tracker, store: store, logger: logger, allowedOrigins: allowed}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleEvaluate runs an evaluation synchronously and returns the full
// results. Progress is mirrored into the tracker so other clients can watch
// the run while this request is in flight.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCompare runs an evaluation over several models and adds a ranking by
// accuracy, best first.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.evaluate(w, r)
	if !ok {
		return
	}

	ranking := make([]ModelRank, 0, len(resp.Results))
	for _, result := range resp.Results {
		ranking = append(ranking, ModelRank{
			Provider: result.ModelConfiguration.Provider,
			ModelID:  result.ModelConfiguration.ModelID,
			Accuracy: result.Metrics.Accuracy,
		})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Accuracy > ranking[j].Accuracy
	})

	writeJSON(w, http.StatusOK, CompareResponse{
		EvaluateResponse: resp,
		Ranking:          ranking,
	})
}

func (h *Handlers) evaluate(w http.ResponseWriter, r *http.Request) (EvaluateResponse, bool) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return EvaluateResponse{}, false
	}

	runID := h.tracker.Create(len(req.Tasks)*len(req.Models), req.RunID)

	opts := []orchestration.RunnerOption{
		orchestration.WithTracker(h.tracker, runID),
		orchestration.WithLogger(h.logger),
	}
	if req.Workers > 0 {
		opts = append(opts, orchestration.WithWorkers(req.Workers))
	}

	runner := orchestration.NewRunner(opts...)
	results, err := runner.Run(r.Context(), req.Tasks, req.Models)
	if err != nil {
		var orchErr *orchestration.ConfigurationError
		var runnerErr *runners.ConfigurationError
		switch {
		case errors.As(err, &orchErr), errors.As(err, &runnerErr):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return EvaluateResponse{}, false
	}

	resp := EvaluateResponse{RunID: runID, Results: results}
	if req.SaveAs != "" && h.store != nil {
		experimentID, err := h.store.Save(storage.Experiment{
			Name:    req.SaveAs,
			Dataset: req.Dataset,
			Results: results,
		})
		if err != nil {
			h.logger.Error("saving experiment failed", "name", req.SaveAs, "error", err)
		} else {
			resp.ExperimentID = experimentID
		}
	}
	return resp, true
}

// HandleProgress returns the current state of a run for polling clients.
func (h *Handlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	state, ok := h.tracker.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleExperimentCreate stores an experiment supplied by the client, for
// example results produced by the CLI and uploaded later. The assigned ID is
// returned.
func (h *Handlers) HandleExperimentCreate(w http.ResponseWriter, r *http.Request) {
	var exp storage.Experiment
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if exp.Name == "" {
		writeError(w, http.StatusBadRequest, "experiment name is required")
		return
	}

	id, err := h.store.Save(exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	exp.ID = id
	writeJSON(w, http.StatusCreated, exp)
}

// HandleExperiments returns the stored experiment index, newest first.
func (h *Handlers) HandleExperiments(w http.ResponseWriter, _ *http.Request) {
	list, err := h.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleExperimentDetail returns one full experiment payload.
func (h *Handlers) HandleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "experiment id is required")
		return
	}

	exp, err := h.store.Load(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "experiment not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// HandleExperimentDelete removes an experiment.
func (h *Handlers) HandleExperimentDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "experiment id is required")
		return
	}

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "experiment not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExperimentStats reports how many experiments exist and their
// on-disk size.
func (h *Handlers) HandleExperimentStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RegisterRoutes registers all web API routes on the given mux. The origin
// allowlist applies to websocket upgrades; wrap the mux in CORSMiddleware
// with the same list for the REST routes.
func RegisterRoutes(mux *http.ServeMux, tracker *progress.Tracker, store *storage.Store, logger *slog.Logger, allowedOrigins ...string) {
	h := NewHandlers(tracker, store, logger, allowedOrigins...)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/evaluate", h.HandleEvaluate)
	mux.HandleFunc("POST /api/compare", h.HandleCompare)
	mux.HandleFunc("GET /api/progress/{id}", h.HandleProgress)
	mux.HandleFunc("GET /api/progress/{id}/ws", h.HandleProgressWS)
	mux.HandleFunc("GET /api/experiments", h.HandleExperiments)
	mux.HandleFunc("POST /api/experiments", h.HandleExperimentCreate)
	mux.HandleFunc("GET /api/experiments/stats", h.HandleExperimentStats)
	mux.HandleFunc("GET /api/experiments/{id}", h.HandleExperimentDetail)
	mux.HandleFunc("DELETE /api/experiments/{id}", h.HandleExperimentDelete)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
