package models

// Task is a single evaluation item: an input prompt and its expected answer.
// Tasks are created at dataset load time and read-only afterwards.
type Task struct {
	ID     string `json:"id" yaml:"id"`
	Input  string `json:"input" yaml:"input"`
	Target string `json:"target" yaml:"target"`
}

// ModelConfig describes one model under evaluation. It is immutable for the
// duration of a run.
type ModelConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	ModelID     string  `json:"model_id" yaml:"model_id"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	UseCoT      bool    `json:"use_cot" yaml:"use_cot"`
	// Shots is the number of samples per task. Fixed at 1 for now; kept in
	// the schema so stored results stay forward-compatible.
	Shots int `json:"shots" yaml:"shots"`
	// Options carries provider-specific settings (base_url, api_key_env, ...)
	// decoded by the runner factory.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// ModelOutput is what a single model inference produced. Optional fields use
// pointers: nil means the provider did not report the value, which is distinct
// from a reported zero.
type ModelOutput struct {
	Answer           string   `json:"answer"`
	CoTText          *string  `json:"cot_text,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	RawResponse      string   `json:"raw_response,omitempty"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	LatencyMs        *float64 `json:"latency_ms,omitempty"`
}

// TaskResult wraps a ModelOutput with the fields derived from it. Derived
// fields are computed exactly once by the metrics engine and never mutated.
type TaskResult struct {
	TaskID      string      `json:"task_id"`
	Input       string      `json:"input"`
	Target      string      `json:"target"`
	ModelOutput ModelOutput `json:"model_output"`
	Correct     bool        `json:"correct"`

	// CoT shape fields, nil when the output carried no chain-of-thought.
	CoTTokens      *int     `json:"cot_tokens,omitempty"`
	CoTChars       *int     `json:"cot_chars,omitempty"`
	StepCount      *int     `json:"step_count,omitempty"`
	RARatio        *float64 `json:"ra_ratio,omitempty"`
	SelfCorrecting *bool    `json:"self_correcting,omitempty"`

	// Efficiency fields, nil when the provider reported no usage.
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	LatencyMs        *float64 `json:"latency_ms,omitempty"`

	// ErrorMsg annotates a task whose model call failed. Such tasks are
	// recorded as incorrect with every derived numeric field nil.
	ErrorMsg string `json:"error,omitempty"`
}

// Failed reports whether this task's model call failed.
func (r *TaskResult) Failed() bool {
	return r.ErrorMsg != ""
}

// MetricsSummary aggregates the derived per-task fields across one model's
// run. A nil pointer is the "no data" marker: the metric had no eligible
// inputs. It is never conflated with a legitimate zero.
type MetricsSummary struct {
	// Answer-level metrics.
	Accuracy float64  `json:"accuracy"`
	Brier    *float64 `json:"brier,omitempty"`
	ECE      *float64 `json:"ece,omitempty"`
	SCE      *float64 `json:"sce,omitempty"`
	USR      *float64 `json:"usr,omitempty"`

	// CoT shape metrics, over tasks that produced a chain-of-thought.
	CoTTokensMean      *float64 `json:"cot_tokens_mean,omitempty"`
	CoTCharsMean       *float64 `json:"cot_chars_mean,omitempty"`
	StepCountMean      *float64 `json:"step_count_mean,omitempty"`
	RARatioMean        *float64 `json:"ra_ratio_mean,omitempty"`
	SelfCorrectionRate *float64 `json:"self_correction_rate,omitempty"`

	// Efficiency metrics.
	PromptTokensMean     *float64 `json:"prompt_tokens_mean,omitempty"`
	CompletionTokensMean *float64 `json:"completion_tokens_mean,omitempty"`
	TotalTokensMean      *float64 `json:"total_tokens_mean,omitempty"`
	LatencyMeanMs        *float64 `json:"latency_mean_ms,omitempty"`
	LatencyP95Ms         *float64 `json:"latency_p95_ms,omitempty"`
}

// EvaluationResult is the complete result for a single model: its
// configuration, the metrics summary, and per-task results ordered by task
// position in the originally submitted list.
type EvaluationResult struct {
	ModelConfiguration ModelConfig    `json:"model_configuration"`
	Metrics            MetricsSummary `json:"metrics"`
	TaskResults        []TaskResult   `json:"task_results"`
	TotalTasks         int            `json:"total_tasks"`
}
