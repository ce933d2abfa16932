// Package runners contains the model adapters that turn a task input into a
// ModelOutput. Every supported provider speaks an OpenAI-compatible chat API;
// the scripted runner exists for offline and deterministic use.
package runners

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zetareason/reasonbench/internal/models"
)

// ModelRunner executes a single task input against one configured model.
type ModelRunner interface {
	Run(ctx context.Context, input string) (*models.ModelOutput, error)
}

// ProviderError is returned when a provider call fails. StatusCode is the
// HTTP status when the transport produced one, zero otherwise.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ConfigurationError reports an invalid model configuration, for example an
// unknown provider name or a missing API key.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

const directPrompt = `Answer the following question. Respond with only the final answer on a line starting with "Answer:".

Question: %s`

const cotPrompt = `Answer the following question. Think step by step, then give your final answer on a line starting with "Answer:" and your confidence between 0 and 1 on a line starting with "Confidence:".

Question: %s`

// BuildPrompt renders the chat prompt for a task input.
func BuildPrompt(input string, useCoT bool) string {
	if useCoT {
		return fmt.Sprintf(cotPrompt, input)
	}
	return fmt.Sprintf(directPrompt, input)
}

var (
	answerLine     = regexp.MustCompile(`(?im)^\s*answer\s*:\s*(.+?)\s*$`)
	confidenceLine = regexp.MustCompile(`(?im)^\s*confidence\s*:\s*([0-9]*\.?[0-9]+)\s*$`)
)

// ParseResponse splits a raw completion into the final answer, the reasoning
// text preceding it, and the self-reported confidence. When no "Answer:"
// marker is present the whole response is taken as the answer and no
// reasoning is recorded.
func ParseResponse(raw string, useCoT bool) (answer string, cotText *string, confidence *float64) {
	answer = strings.TrimSpace(raw)

	loc := answerLine.FindStringSubmatchIndex(raw)
	if loc != nil {
		answer = strings.TrimSpace(raw[loc[2]:loc[3]])
		if useCoT {
			if reasoning := strings.TrimSpace(raw[:loc[0]]); reasoning != "" {
				cotText = models.Ptr(reasoning)
			}
		}
	}

	if m := confidenceLine.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 1 {
			confidence = models.Ptr(v)
		}
	}
	return answer, cotText, confidence
}
