package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zetareason/reasonbench/internal/config"
	"github.com/zetareason/reasonbench/internal/dataset"
	"github.com/zetareason/reasonbench/internal/models"
	"github.com/zetareason/reasonbench/internal/orchestration"
	"github.com/zetareason/reasonbench/internal/reporting"
	"github.com/zetareason/reasonbench/internal/storage"
)

var (
	modelFlags     []string
	parallel       bool
	workers        int
	noCoT          bool
	temperature    float64
	maxTokens      int
	taskRange      string
	outputPath     string
	saveExperiment string
	verbose        bool
	failUnder      float64
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <dataset>",
		Short: "Run an evaluation over a dataset",
		Long: `Run an evaluation over a dataset file (.csv or .json).

Each task is sent to every configured model; answers are scored against the
dataset targets and rolled up into accuracy, calibration, consistency, and
chain-of-thought metrics. Repeat --model to compare several models in one run.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringArrayVarP(&modelFlags, "model", "m", nil, "Model as provider/model-id (can be repeated)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run tasks concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default: 4, requires --parallel)")
	cmd.Flags().BoolVar(&noCoT, "no-cot", false, "Disable chain-of-thought prompting")
	cmd.Flags().Float64Var(&temperature, "temperature", -1, "Sampling temperature (default from config)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Completion token limit (default from config)")
	cmd.Flags().StringVar(&taskRange, "range", "", `Task range: "n" for the first n, "a-b" inclusive`)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for results")
	cmd.Flags().StringVar(&saveExperiment, "save-experiment", "", "Persist results as a named experiment")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-task progress")
	cmd.Flags().Float64Var(&failUnder, "fail-under", 0, "Exit non-zero when any model's accuracy is below this value")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	datasetPath := args[0]

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	tasks, err := dataset.Load(datasetPath)
	if err != nil {
		return err
	}
	tasks, err = dataset.SelectRange(tasks, taskRange)
	if err != nil {
		return err
	}

	configs, err := buildModelConfigs(cfg)
	if err != nil {
		return err
	}

	opts := []orchestration.RunnerOption{}
	if parallel || boolOr(cfg.Defaults.Parallel, false) {
		w := workers
		if w == 0 {
			w = cfg.Defaults.Workers
		}
		opts = append(opts, orchestration.WithWorkers(w))
	} else {
		opts = append(opts, orchestration.WithSequential())
	}

	runner := orchestration.NewRunner(opts...)
	if verbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		stopReporter := attachSpinnerReporter(runner, cmd.OutOrStdout())
		defer stopReporter()
	}

	start := time.Now()
	results, err := runner.Run(cmd.Context(), tasks, configs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(cmd.OutOrStdout(), "\nEvaluated %d model(s) over %d task(s) in %v\n\n",
		len(configs), len(tasks), elapsed.Round(time.Millisecond))
	reporting.WriteComparisonTable(cmd.OutOrStdout(), results)

	if outputPath != "" {
		if err := writeResultsJSON(outputPath, results); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nResults written to %s\n", outputPath)
	}

	if saveExperiment != "" {
		store, err := storage.NewStore(cfg.Paths.Experiments)
		if err != nil {
			return err
		}
		id, err := store.Save(storage.Experiment{
			Name:    saveExperiment,
			Dataset: datasetPath,
			Results: results,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved experiment %s (%s)\n", saveExperiment, id)
	}

	return checkOutcome(results)
}

// buildModelConfigs turns --model flags (or the project defaults) into model
// configurations.
func buildModelConfigs(cfg *config.ProjectConfig) ([]models.ModelConfig, error) {
	temp := temperature
	if temp < 0 {
		temp = *cfg.Defaults.Temperature
	}
	tokens := maxTokens
	if tokens == 0 {
		tokens = cfg.Defaults.MaxTokens
	}
	useCoT := boolOr(cfg.Defaults.CoT, true) && !noCoT

	specs := modelFlags
	if len(specs) == 0 {
		specs = []string{cfg.Defaults.Provider + "/" + cfg.Defaults.Model}
	}

	configs := make([]models.ModelConfig, 0, len(specs))
	for _, spec := range specs {
		provider, modelID, found := strings.Cut(spec, "/")
		if !found || provider == "" || modelID == "" {
			return nil, fmt.Errorf("invalid --model %q, want provider/model-id", spec)
		}
		configs = append(configs, models.ModelConfig{
			Provider:    provider,
			ModelID:     modelID,
			Temperature: temp,
			MaxTokens:   tokens,
			UseCoT:      useCoT,
			Shots:       1,
		})
	}
	return configs, nil
}

func writeResultsJSON(path string, results []models.EvaluationResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// checkOutcome maps run results to the process exit contract: failed tasks
// or accuracy under --fail-under exit with code 1.
func checkOutcome(results []models.EvaluationResult) error {
	failedTasks := 0
	for _, result := range results {
		for _, tr := range result.TaskResults {
			if tr.Failed() {
				failedTasks++
			}
		}
	}
	if failedTasks > 0 {
		return &EvalFailureError{Message: fmt.Sprintf("%d task(s) failed to evaluate", failedTasks)}
	}

	if failUnder > 0 {
		for _, result := range results {
			if result.Metrics.Accuracy < failUnder {
				return &EvalFailureError{Message: fmt.Sprintf(
					"%s/%s accuracy %.3f is below threshold %.3f",
					result.ModelConfiguration.Provider,
					result.ModelConfiguration.ModelID,
					result.Metrics.Accuracy,
					failUnder,
				)}
			}
		}
	}
	return nil
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}
