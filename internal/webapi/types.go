package webapi

import (
	"github.com/zetareason/reasonbench/internal/models"
)

// EvaluateRequest asks for an evaluation of inline tasks against one or more
// model configurations. RunID is optional; when set, progress for the run is
// observable at /api/progress/{id} while the request is in flight.
type EvaluateRequest struct {
	Tasks  []models.Task        `json:"tasks"`
	Models []models.ModelConfig `json:"models"`

	Workers int    `json:"workers,omitempty"`
	RunID   string `json:"run_id,omitempty"`

	// SaveAs persists the results as a named experiment when non-empty.
	SaveAs  string `json:"save_as,omitempty"`
	Dataset string `json:"dataset,omitempty"`
}

// EvaluateResponse carries the full results of a completed evaluation.
type EvaluateResponse struct {
	RunID        string                    `json:"run_id"`
	Results      []models.EvaluationResult `json:"results"`
	ExperimentID string                    `json:"experiment_id,omitempty"`
}

// CompareResponse is the evaluate response plus a ranking of the evaluated
// models by accuracy, best first.
type CompareResponse struct {
	EvaluateResponse
	Ranking []ModelRank `json:"ranking"`
}

// ModelRank is one entry in a comparison ranking.
type ModelRank struct {
	Provider string  `json:"provider"`
	ModelID  string  `json:"model_id"`
	Accuracy float64 `json:"accuracy"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
