package runners

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zetareason/reasonbench/internal/models"
)

// scriptedRunner produces deterministic answers without any network access.
// Simple arithmetic inputs are actually solved; everything else gets a
// stable hash-derived answer, so repeated runs over the same dataset yield
// identical metrics.
type scriptedRunner struct {
	modelID string
	useCoT  bool
	// accuracy in [0,1] biases how often arithmetic answers are deliberately
	// perturbed; 1.0 answers everything it can correctly.
	accuracy float64
}

const defaultScriptedAccuracy = 0.8

func newScriptedRunner(cfg models.ModelConfig, opts runnerOptions) *scriptedRunner {
	accuracy := defaultScriptedAccuracy
	if opts.Accuracy != nil {
		accuracy = *opts.Accuracy
	}
	return &scriptedRunner{
		modelID:  cfg.ModelID,
		useCoT:   cfg.UseCoT,
		accuracy: accuracy,
	}
}

var arithmeticExpr = regexp.MustCompile(`(-?\d+)\s*([+\-*])\s*(-?\d+)`)

func (r *scriptedRunner) Run(ctx context.Context, input string) (*models.ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: "scripted", Message: err.Error()}
	}

	h := fnv.New64a()
	h.Write([]byte(r.modelID))
	h.Write([]byte(input))
	seed := h.Sum64()

	answer, solved := r.solve(input, seed)
	confidence := 0.5 + float64(seed%50)/100.0
	if solved {
		confidence = 0.7 + float64(seed%30)/100.0
	}

	out := &models.ModelOutput{
		Answer:      answer,
		Confidence:  models.Ptr(confidence),
		RawResponse: answer,
		LatencyMs:   models.Ptr(float64(5 + seed%45)),
	}
	if r.useCoT {
		out.CoTText = models.Ptr(fmt.Sprintf("1. Read the question: %s\n2. Work out the result.\n3. The result is %s.", strings.TrimSpace(input), answer))
	}
	// Brief deterministic delay so parallel runs actually interleave.
	select {
	case <-ctx.Done():
		return nil, &ProviderError{Provider: "scripted", Message: ctx.Err().Error()}
	case <-time.After(time.Duration(seed%3) * time.Millisecond):
	}
	return out, nil
}

func (r *scriptedRunner) solve(input string, seed uint64) (string, bool) {
	m := arithmeticExpr.FindStringSubmatch(input)
	if m == nil {
		return fmt.Sprintf("response-%d", seed%1000), false
	}

	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[3])
	var result int
	switch m[2] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	}

	// Perturb a stable fraction of answers to simulate an imperfect model.
	if float64(seed%100)/100.0 >= r.accuracy {
		result++
	}
	return strconv.Itoa(result), true
}
