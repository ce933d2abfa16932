package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetareason/reasonbench/internal/models"
	"github.com/zetareason/reasonbench/internal/progress"
	"github.com/zetareason/reasonbench/internal/storage"
)

func newTestMux(t *testing.T) (*http.ServeMux, *progress.Tracker, *storage.Store) {
	t.Helper()
	tracker := progress.NewTracker()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	mux := http.NewServeMux()
	RegisterRoutes(mux, tracker, store, nil)
	return mux, tracker, store
}

func scriptedRequest(saveAs string) EvaluateRequest {
	return EvaluateRequest{
		Tasks: []models.Task{
			{ID: "q1", Input: "What is 2 + 2?", Target: "4"},
			{ID: "q2", Input: "What is 3 + 5?", Target: "8"},
		},
		Models: []models.ModelConfig{{
			Provider: "scripted",
			ModelID:  "demo",
			UseCoT:   true,
			Options:  map[string]any{"accuracy": 1.0},
		}},
		SaveAs:  saveAs,
		Dataset: "inline",
	}
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestHandleEvaluate_Success(t *testing.T) {
	mux, tracker, _ := newTestMux(t)

	rec := postJSON(t, mux, "/api/evaluate", scriptedRequest(""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1.0, resp.Results[0].Metrics.Accuracy)
	assert.Len(t, resp.Results[0].TaskResults, 2)
	assert.Empty(t, resp.ExperimentID)

	state, ok := tracker.Snapshot(resp.RunID)
	require.True(t, ok)
	assert.Equal(t, progress.StatusDone, state.Status)
	assert.Equal(t, 2, state.CompletedTasks)
}

func TestHandleEvaluate_SavesExperiment(t *testing.T) {
	mux, _, store := newTestMux(t)

	rec := postJSON(t, mux, "/api/evaluate", scriptedRequest("api run"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ExperimentID)

	exp, err := store.Load(resp.ExperimentID)
	require.NoError(t, err)
	assert.Equal(t, "api run", exp.Name)
	assert.Equal(t, "inline", exp.Dataset)
}

func TestHandleEvaluate_BadBody(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluate_EmptyTasksRejected(t *testing.T) {
	mux, _, _ := newTestMux(t)

	body := scriptedRequest("")
	body.Tasks = nil
	rec := postJSON(t, mux, "/api/evaluate", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "no tasks")
}

func TestHandleEvaluate_UnknownProviderRejected(t *testing.T) {
	mux, _, _ := newTestMux(t)

	body := scriptedRequest("")
	body.Models = []models.ModelConfig{{Provider: "mystery", ModelID: "x"}}
	rec := postJSON(t, mux, "/api/evaluate", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompare_RankingSorted(t *testing.T) {
	mux, _, _ := newTestMux(t)

	body := scriptedRequest("")
	body.Models = []models.ModelConfig{
		{Provider: "scripted", ModelID: "weak", Options: map[string]any{"accuracy": 0.0}},
		{Provider: "scripted", ModelID: "strong", Options: map[string]any{"accuracy": 1.0}},
	}
	rec := postJSON(t, mux, "/api/compare", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Ranking, 2)
	assert.Equal(t, "strong", resp.Ranking[0].ModelID)
	assert.Equal(t, 1.0, resp.Ranking[0].Accuracy)
	assert.GreaterOrEqual(t, resp.Ranking[0].Accuracy, resp.Ranking[1].Accuracy)
}

func TestHandleProgress_PollLifecycle(t *testing.T) {
	mux, tracker, _ := newTestMux(t)

	id := tracker.Create(10, "")
	tracker.Update(id, 4)

	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+id, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var state progress.RunState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 4, state.CompletedTasks)
	assert.Equal(t, progress.StatusRunning, state.Status)
	assert.InDelta(t, 40.0, state.Percentage, 1e-9)
}

func TestHandleProgress_UnknownRun(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/progress/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExperiments_CRUD(t *testing.T) {
	mux, _, store := newTestMux(t)

	id, err := store.Save(storage.Experiment{Name: "kept", Dataset: "d.csv"})
	require.NoError(t, err)

	// List
	req := httptest.NewRequest(http.MethodGet, "/api/experiments", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []storage.ExperimentMeta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Name)

	// Detail
	req = httptest.NewRequest(http.MethodGet, "/api/experiments/"+id, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var exp storage.Experiment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	assert.Equal(t, id, exp.ID)

	// Stats
	req = httptest.NewRequest(http.MethodGet, "/api/experiments/stats", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats storage.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.ExperimentCount)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/api/experiments/"+id, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Detail after delete
	req = httptest.NewRequest(http.MethodGet, "/api/experiments/"+id, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExperimentCreate(t *testing.T) {
	mux, _, store := newTestMux(t)

	rec := postJSON(t, mux, "/api/experiments", storage.Experiment{
		Name:    "uploaded",
		Dataset: "arith.csv",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created storage.Experiment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	loaded, err := store.Load(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", loaded.Name)
}

func TestHandleExperimentCreate_RequiresName(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec := postJSON(t, mux, "/api/experiments", storage.Experiment{Dataset: "d.csv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExperimentDelete_Unknown(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/experiments/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin gets headers", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin gets none", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		handler := CORSMiddleware(inner, "http://localhost:5173")
		req := httptest.NewRequest(http.MethodOptions, "/api/evaluate", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestWriteError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "nope")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "nope", resp.Error)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
