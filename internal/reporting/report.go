// Package reporting renders evaluation results for humans: a terminal
// comparison table and a markdown report with optional HTML output.
package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/zetareason/reasonbench/internal/models"
)

// fmtMetric renders an optional metric, "-" when there was no data.
func fmtMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func fmtLatency(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fms", *v)
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateName shortens a name to maxLen runes, replacing the last rune with
// "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

const modelColWidth = 24

// WriteComparisonTable prints a per-model metrics table aligned by terminal
// display width.
func WriteComparisonTable(w io.Writer, results []models.EvaluationResult) {
	headers := []string{"MODEL", "ACC", "BRIER", "ECE", "SCE", "USR", "P95"}
	widths := []int{modelColWidth, 7, 8, 8, 8, 7, 9}

	var line strings.Builder
	for i, h := range headers {
		line.WriteString(padRight(h, widths[i]))
	}
	fmt.Fprintln(w, line.String()) //nolint:errcheck
	fmt.Fprintln(w, strings.Repeat("-", sum(widths))) //nolint:errcheck

	for _, result := range results {
		name := truncateName(result.ModelConfiguration.Provider+"/"+result.ModelConfiguration.ModelID, modelColWidth-2)
		m := result.Metrics
		cols := []string{
			name,
			fmt.Sprintf("%.3f", m.Accuracy),
			fmtMetric(m.Brier),
			fmtMetric(m.ECE),
			fmtMetric(m.SCE),
			fmtMetric(m.USR),
			fmtLatency(m.LatencyP95Ms),
		}
		line.Reset()
		for i, col := range cols {
			line.WriteString(padRight(col, widths[i]))
		}
		fmt.Fprintln(w, line.String()) //nolint:errcheck
	}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

// Markdown renders a full evaluation report. The output is GFM: headings,
// a metrics table per the comparison view, and a per-model breakdown.
func Markdown(title, dataset string, createdAt time.Time, results []models.EvaluationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	if dataset != "" {
		fmt.Fprintf(&b, "Dataset: `%s`  \n", dataset)
	}
	if !createdAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", createdAt.Format(time.RFC3339))
	}
	b.WriteString("\n## Metrics\n\n")

	b.WriteString("| Model | Accuracy | Brier | ECE | SCE | USR | Latency p95 |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, result := range results {
		m := result.Metrics
		fmt.Fprintf(&b, "| %s/%s | %.3f | %s | %s | %s | %s | %s |\n",
			result.ModelConfiguration.Provider,
			result.ModelConfiguration.ModelID,
			m.Accuracy,
			fmtMetric(m.Brier),
			fmtMetric(m.ECE),
			fmtMetric(m.SCE),
			fmtMetric(m.USR),
			fmtLatency(m.LatencyP95Ms),
		)
	}

	for _, result := range results {
		fmt.Fprintf(&b, "\n## %s/%s\n\n", result.ModelConfiguration.Provider, result.ModelConfiguration.ModelID)
		m := result.Metrics

		correct, failed := 0, 0
		for _, tr := range result.TaskResults {
			if tr.Correct {
				correct++
			}
			if tr.Failed() {
				failed++
			}
		}
		fmt.Fprintf(&b, "- Tasks: %d (%d correct, %d failed)\n", result.TotalTasks, correct, failed)
		fmt.Fprintf(&b, "- Accuracy: %.3f\n", m.Accuracy)
		if m.CoTTokensMean != nil {
			fmt.Fprintf(&b, "- Mean reasoning tokens: %.1f\n", *m.CoTTokensMean)
		}
		if m.StepCountMean != nil {
			fmt.Fprintf(&b, "- Mean step count: %.1f\n", *m.StepCountMean)
		}
		if m.SelfCorrectionRate != nil {
			fmt.Fprintf(&b, "- Self-correction rate: %.3f\n", *m.SelfCorrectionRate)
		}
		if m.TotalTokensMean != nil {
			fmt.Fprintf(&b, "- Mean total tokens: %.1f\n", *m.TotalTokensMean)
		}
		if m.LatencyMeanMs != nil {
			fmt.Fprintf(&b, "- Mean latency: %.0fms\n", *m.LatencyMeanMs)
		}

		if failed > 0 {
			b.WriteString("\n### Failed tasks\n\n")
			for _, tr := range result.TaskResults {
				if tr.Failed() {
					fmt.Fprintf(&b, "- `%s`: %s\n", tr.TaskID, tr.ErrorMsg)
				}
			}
		}
	}

	return b.String()
}

var htmlRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts a markdown report to a standalone HTML document.
func HTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := htmlRenderer.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}

	var doc strings.Builder
	doc.WriteString("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	doc.WriteString("<style>body{font-family:sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:0.3rem 0.6rem}</style>\n")
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}
