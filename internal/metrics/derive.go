package metrics

import (
	"regexp"
	"strings"

	"github.com/zetareason/reasonbench/internal/models"
)

// stepMarker matches lines that look like enumerated or bulleted reasoning
// steps ("1. ...", "- ...", "* ...").
var stepMarker = regexp.MustCompile(`^\s*(\d+\.|-|\*)\s+`)

// correctionKeywords signal a retraction inside a chain-of-thought. The set
// is fixed: changing it silently changes benchmark semantics.
var correctionKeywords = []string{
	"actually",
	"sorry",
	"correction",
	"let me fix",
	"i made a mistake",
}

// Derive computes the per-task derived fields from a model output. It is the
// only place those fields are computed; callers must not mutate them
// afterwards.
//
// measuredLatencyMs is the latency observed around the model call. A latency
// reported by the provider itself takes precedence.
func Derive(task models.Task, output models.ModelOutput, measuredLatencyMs float64) models.TaskResult {
	result := models.TaskResult{
		TaskID:      task.ID,
		Input:       task.Input,
		Target:      task.Target,
		ModelOutput: output,
		Correct:     AnswersMatch(output.Answer, task.Target),

		PromptTokens:     output.PromptTokens,
		CompletionTokens: output.CompletionTokens,
		TotalTokens:      output.TotalTokens,
	}

	if output.LatencyMs != nil {
		result.LatencyMs = output.LatencyMs
	} else {
		result.LatencyMs = models.Ptr(measuredLatencyMs)
	}

	if output.CoTText != nil && strings.TrimSpace(*output.CoTText) != "" {
		cot := *output.CoTText

		tokens := len(strings.Fields(cot))
		result.CoTTokens = models.Ptr(tokens)
		result.CoTChars = models.Ptr(len(cot))

		steps := 0
		for _, line := range strings.Split(cot, "\n") {
			if stepMarker.MatchString(line) {
				steps++
			}
		}
		result.StepCount = models.Ptr(steps)

		answerTokens := len(strings.Fields(output.Answer))
		if answerTokens < 1 {
			answerTokens = 1
		}
		result.RARatio = models.Ptr(float64(tokens) / float64(answerTokens))

		cotLower := strings.ToLower(cot)
		selfCorrecting := false
		for _, kw := range correctionKeywords {
			if strings.Contains(cotLower, kw) {
				selfCorrecting = true
				break
			}
		}
		result.SelfCorrecting = models.Ptr(selfCorrecting)
	}

	return result
}

// DeriveFailure records a task whose model call failed: empty answer, marked
// incorrect, every derived numeric field left as "no data".
func DeriveFailure(task models.Task, errMsg string) models.TaskResult {
	return models.TaskResult{
		TaskID:      task.ID,
		Input:       task.Input,
		Target:      task.Target,
		ModelOutput: models.ModelOutput{Answer: ""},
		Correct:     false,
		ErrorMsg:    errMsg,
	}
}
