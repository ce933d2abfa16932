package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetareason/reasonbench/internal/models"
)

func sampleResults() []models.EvaluationResult {
	return []models.EvaluationResult{
		{
			ModelConfiguration: models.ModelConfig{Provider: "scripted", ModelID: "demo"},
			Metrics: models.MetricsSummary{
				Accuracy:     0.75,
				Brier:        models.Ptr(0.12),
				USR:          models.Ptr(0.25),
				LatencyP95Ms: models.Ptr(340.0),
			},
			TaskResults: []models.TaskResult{
				{TaskID: "q1", Correct: true},
				{TaskID: "q2", Correct: false, ErrorMsg: "stub: boom"},
			},
			TotalTasks: 2,
		},
		{
			ModelConfiguration: models.ModelConfig{Provider: "openai", ModelID: "gpt-4o"},
			Metrics:            models.MetricsSummary{Accuracy: 1.0},
			TotalTasks:         2,
		},
	}
}

func TestWriteComparisonTable(t *testing.T) {
	var buf strings.Builder
	WriteComparisonTable(&buf, sampleResults())

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4, "header, rule, two rows")

	assert.Contains(t, lines[0], "MODEL")
	assert.Contains(t, lines[0], "BRIER")
	assert.Contains(t, lines[2], "scripted/demo")
	assert.Contains(t, lines[2], "0.750")
	assert.Contains(t, lines[2], "0.1200")
	assert.Contains(t, lines[2], "340ms")
	assert.Contains(t, lines[3], "openai/gpt-4o")

	// Metrics without data render as "-", never as zero.
	assert.Contains(t, lines[3], "-")
	assert.NotContains(t, lines[3], "0.0000")
}

func TestWriteComparisonTable_TruncatesLongNames(t *testing.T) {
	results := sampleResults()
	results[0].ModelConfiguration.ModelID = "a-very-long-model-identifier-that-will-not-fit"

	var buf strings.Builder
	WriteComparisonTable(&buf, results)

	assert.Contains(t, buf.String(), "…")
}

func TestMarkdown(t *testing.T) {
	md := Markdown("nightly run", "arith.csv", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), sampleResults())

	assert.True(t, strings.HasPrefix(md, "# nightly run\n"))
	assert.Contains(t, md, "`arith.csv`")
	assert.Contains(t, md, "| scripted/demo | 0.750 | 0.1200 |")
	assert.Contains(t, md, "## openai/gpt-4o")
	assert.Contains(t, md, "### Failed tasks")
	assert.Contains(t, md, "`q2`: stub: boom")

	// Absent metrics appear as "-", not 0.
	assert.Contains(t, md, "| openai/gpt-4o | 1.000 | - | - | - | - | - |")
}

func TestHTML(t *testing.T) {
	md := Markdown("run", "", time.Time{}, sampleResults())
	html, err := HTML(md)
	require.NoError(t, err)

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, "<h1>run</h1>")
	assert.Contains(t, html, "<table>", "GFM tables must render as HTML tables")
	assert.Contains(t, html, "scripted/demo")
}
