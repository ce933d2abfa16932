// Package orchestration coordinates evaluation runs: it fans tasks out to a
// model runner with bounded parallelism, derives per-task results, and rolls
// them up into the final metrics summary for each model configuration.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zetareason/reasonbench/internal/metrics"
	"github.com/zetareason/reasonbench/internal/models"
	"github.com/zetareason/reasonbench/internal/progress"
	"github.com/zetareason/reasonbench/internal/runners"
)

// DefaultWorkers is the parallel task limit when none is configured.
const DefaultWorkers = 4

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventEvaluationStart    EventType = "evaluation_start"
	EventEvaluationComplete EventType = "evaluation_complete"
	EventModelStart         EventType = "model_start"
	EventModelComplete      EventType = "model_complete"
	EventTaskComplete       EventType = "task_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType      EventType
	Provider       string
	ModelID        string
	TaskID         string
	CompletedTasks int
	TotalTasks     int
	ModelNum       int
	TotalModels    int
	Correct        bool
	Failed         bool
	Accuracy       float64
	DurationMs     int64
}

// ConfigurationError reports a request that cannot produce a meaningful
// evaluation, such as an empty dataset or no model configurations.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Runner executes evaluation runs.
type Runner struct {
	workers    int
	sequential bool
	tracker    *progress.Tracker
	runID      string
	logger     *slog.Logger

	newRunner func(models.ModelConfig) (runners.ModelRunner, error)

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers caps how many tasks run concurrently per model.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSequential disables task parallelism entirely.
func WithSequential() RunnerOption {
	return func(r *Runner) {
		r.sequential = true
	}
}

// WithTracker mirrors run progress into a progress tracker under runID.
func WithTracker(t *progress.Tracker, runID string) RunnerOption {
	return func(r *Runner) {
		r.tracker = t
		r.runID = runID
	}
}

// WithLogger sets the structured logger for the run.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// withRunnerFactory substitutes runner construction, for tests.
func withRunnerFactory(f func(models.ModelConfig) (runners.ModelRunner, error)) RunnerOption {
	return func(r *Runner) {
		r.newRunner = f
	}
}

// NewRunner creates an evaluation runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		workers:   DefaultWorkers,
		logger:    slog.Default(),
		newRunner: runners.New,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run evaluates every model configuration against every task. Models run
// sequentially so their latency numbers do not contend with each other;
// tasks within a model fan out up to the worker limit. Results keep the
// dataset's task order regardless of completion order.
func (r *Runner) Run(ctx context.Context, tasks []models.Task, configs []models.ModelConfig) ([]models.EvaluationResult, error) {
	if len(tasks) == 0 {
		return nil, &ConfigurationError{Message: "no tasks to evaluate"}
	}
	if len(configs) == 0 {
		return nil, &ConfigurationError{Message: "no model configurations"}
	}

	// Build every runner before any task executes so a bad configuration
	// fails the whole run up front instead of midway.
	modelRunners := make([]runners.ModelRunner, len(configs))
	for i, cfg := range configs {
		mr, err := r.newRunner(cfg)
		if err != nil {
			r.failTracker(fmt.Sprintf("configuring %s/%s: %v", cfg.Provider, cfg.ModelID, err))
			return nil, fmt.Errorf("configuring %s/%s: %w", cfg.Provider, cfg.ModelID, err)
		}
		modelRunners[i] = mr
	}

	totalTasks := len(tasks) * len(configs)
	startTime := time.Now()

	r.notifyProgress(ProgressEvent{
		EventType:   EventEvaluationStart,
		TotalTasks:  totalTasks,
		TotalModels: len(configs),
	})

	completed := 0
	results := make([]models.EvaluationResult, 0, len(configs))
	for i, cfg := range configs {
		r.logger.Info("evaluating model",
			slog.String("provider", cfg.Provider),
			slog.String("model", cfg.ModelID),
			slog.Int("tasks", len(tasks)))

		r.notifyProgress(ProgressEvent{
			EventType:   EventModelStart,
			Provider:    cfg.Provider,
			ModelID:     cfg.ModelID,
			ModelNum:    i + 1,
			TotalModels: len(configs),
			TotalTasks:  len(tasks),
		})

		modelStart := time.Now()
		taskResults, err := r.runModel(ctx, modelRunners[i], cfg, tasks, totalTasks, &completed)
		if err != nil {
			r.failTracker(err.Error())
			return nil, err
		}

		summary := metrics.Summarize(taskResults)
		results = append(results, models.EvaluationResult{
			ModelConfiguration: cfg,
			Metrics:            summary,
			TaskResults:        taskResults,
			TotalTasks:         len(tasks),
		})

		r.notifyProgress(ProgressEvent{
			EventType:   EventModelComplete,
			Provider:    cfg.Provider,
			ModelID:     cfg.ModelID,
			ModelNum:    i + 1,
			TotalModels: len(configs),
			TotalTasks:  len(tasks),
			Accuracy:    summary.Accuracy,
			DurationMs:  time.Since(modelStart).Milliseconds(),
		})
	}

	r.notifyProgress(ProgressEvent{
		EventType:      EventEvaluationComplete,
		CompletedTasks: completed,
		TotalTasks:     totalTasks,
		TotalModels:    len(configs),
		DurationMs:     time.Since(startTime).Milliseconds(),
	})
	if r.tracker != nil {
		r.tracker.Complete(r.runID, fmt.Sprintf("evaluated %d model(s) over %d task(s)", len(configs), len(tasks)))
	}
	return results, nil
}

// runModel fans the task list out to one model. The result slice is
// pre-sized and addressed by task index, which preserves dataset order no
// matter which tasks finish first.
func (r *Runner) runModel(ctx context.Context, mr runners.ModelRunner, cfg models.ModelConfig, tasks []models.Task, totalTasks int, completed *int) ([]models.TaskResult, error) {
	taskResults := make([]models.TaskResult, len(tasks))

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	limit := r.workers
	if r.sequential {
		limit = 1
	}
	group.SetLimit(limit)

	for i, task := range tasks {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			start := time.Now()
			output, err := mr.Run(groupCtx, task.Input)
			elapsedMs := float64(time.Since(start)) / float64(time.Millisecond)

			var result models.TaskResult
			switch {
			case err != nil:
				// A provider failure scores the task, it does not abort
				// the run.
				r.logger.Warn("task failed",
					slog.String("task", task.ID),
					slog.String("model", cfg.ModelID),
					slog.String("error", err.Error()))
				result = metrics.DeriveFailure(task, err.Error())
			case output == nil:
				// A runner that returns neither output nor error still
				// scores the task as failed.
				result = metrics.DeriveFailure(task, "runner returned no output")
			default:
				result = metrics.Derive(task, *output, elapsedMs)
			}

			mu.Lock()
			taskResults[i] = result
			*completed++
			done := *completed
			mu.Unlock()

			if r.tracker != nil {
				r.tracker.Update(r.runID, done)
			}
			r.notifyProgress(ProgressEvent{
				EventType:      EventTaskComplete,
				Provider:       cfg.Provider,
				ModelID:        cfg.ModelID,
				TaskID:         task.ID,
				CompletedTasks: done,
				TotalTasks:     totalTasks,
				Correct:        result.Correct,
				Failed:         result.Failed(),
				DurationMs:     int64(elapsedMs),
			})
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}
	return taskResults, nil
}

func (r *Runner) failTracker(message string) {
	if r.tracker != nil {
		r.tracker.Fail(r.runID, message)
	}
}
