// Package metrics is the deterministic, judge-free statistics layer. Every
// function is pure: the same task results always produce the same summary.
package metrics

import (
	"math"
	"sort"

	"github.com/zetareason/reasonbench/internal/models"
)

// eceBins is the number of equal-width confidence bins used for ECE.
const eceBins = 10

// Summarize aggregates the derived per-task fields of one model's run into a
// MetricsSummary. Aggregations with no eligible inputs yield nil ("no data");
// aggregations with eligible inputs yield a real number even when it is zero.
//
// Each optional aggregate is guarded: an unexpected panic inside one metric
// degrades that metric to nil instead of failing the whole run.
func Summarize(results []models.TaskResult) models.MetricsSummary {
	return models.MetricsSummary{
		Accuracy: Accuracy(results),
		Brier:    guarded(func() *float64 { return BrierScore(results) }),
		ECE:      guarded(func() *float64 { return ExpectedCalibrationError(results) }),
		SCE:      guarded(func() *float64 { return SelfConsistencyEntropy(results) }),
		USR:      guarded(func() *float64 { return UnsupportedStepRate(results) }),

		CoTTokensMean:      guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.CoTTokens }) }),
		CoTCharsMean:       guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.CoTChars }) }),
		StepCountMean:      guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.StepCount }) }),
		RARatioMean:        guarded(func() *float64 { return meanFloat(results, func(r models.TaskResult) *float64 { return r.RARatio }) }),
		SelfCorrectionRate: guarded(func() *float64 { return SelfCorrectionRate(results) }),

		PromptTokensMean:     guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.PromptTokens }) }),
		CompletionTokensMean: guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.CompletionTokens }) }),
		TotalTokensMean:      guarded(func() *float64 { return meanInt(results, func(r models.TaskResult) *int { return r.TotalTokens }) }),
		LatencyMeanMs:        guarded(func() *float64 { return meanFloat(results, func(r models.TaskResult) *float64 { return r.LatencyMs }) }),
		LatencyP95Ms:         guarded(func() *float64 { return LatencyP95(results) }),
	}
}

// Accuracy is the fraction of tasks whose normalized answer matched the
// normalized target. By convention the empty task set has accuracy 0.0; this
// is a defined value, not "no data".
func Accuracy(results []models.TaskResult) float64 {
	if len(results) == 0 {
		return 0.0
	}
	correct := 0
	for _, r := range results {
		if r.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(results))
}

// UnsupportedStepRate is the fraction of tasks whose final answer is wrong.
// This is deliberately the coarse answer-level proxy: no gold reasoning trace
// exists to grade individual steps, and a stronger definition would change
// benchmark semantics silently.
func UnsupportedStepRate(results []models.TaskResult) *float64 {
	if len(results) == 0 {
		return nil
	}
	return models.Ptr(1.0 - Accuracy(results))
}

// BrierScore is the mean of (confidence - correctness)^2 over tasks that
// reported a confidence. Nil when none did.
func BrierScore(results []models.TaskResult) *float64 {
	sum := 0.0
	n := 0
	for _, r := range results {
		if r.ModelOutput.Confidence == nil {
			continue
		}
		outcome := 0.0
		if r.Correct {
			outcome = 1.0
		}
		d := *r.ModelOutput.Confidence - outcome
		sum += d * d
		n++
	}
	if n == 0 {
		return nil
	}
	return models.Ptr(sum / float64(n))
}

// ExpectedCalibrationError partitions [0,1] into ten equal-width confidence
// bins and returns the population-weighted sum of |accuracy - confidence|
// over non-empty bins. Nil when no task reported a confidence.
func ExpectedCalibrationError(results []models.TaskResult) *float64 {
	var binConf, binAcc [eceBins]float64
	var binN [eceBins]int
	total := 0

	for _, r := range results {
		if r.ModelOutput.Confidence == nil {
			continue
		}
		conf := math.Max(0.0, math.Min(1.0, *r.ModelOutput.Confidence))
		idx := int(conf * eceBins)
		if idx >= eceBins {
			idx = eceBins - 1
		}
		binConf[idx] += conf
		if r.Correct {
			binAcc[idx]++
		}
		binN[idx]++
		total++
	}
	if total == 0 {
		return nil
	}

	ece := 0.0
	for i := 0; i < eceBins; i++ {
		if binN[i] == 0 {
			continue
		}
		avgConf := binConf[i] / float64(binN[i])
		avgAcc := binAcc[i] / float64(binN[i])
		weight := float64(binN[i]) / float64(total)
		ece += weight * math.Abs(avgConf-avgAcc)
	}
	return models.Ptr(ece)
}

// SelfConsistencyEntropy is the Shannon entropy, in nats, of the empirical
// distribution of normalized answers across the whole run. This is the
// single-pass answer-diversity form: a run where every answer is identical
// scores 0, a uniform spread over k answers scores ln(k).
func SelfConsistencyEntropy(results []models.TaskResult) *float64 {
	if len(results) == 0 {
		return nil
	}
	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[Normalize(r.ModelOutput.Answer)]++
	}
	total := float64(len(results))
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log(p)
	}
	return models.Ptr(entropy)
}

// SelfCorrectionRate is the fraction of chain-of-thought texts that contained
// a retraction marker, over tasks that produced a chain-of-thought.
func SelfCorrectionRate(results []models.TaskResult) *float64 {
	n := 0
	corrections := 0
	for _, r := range results {
		if r.SelfCorrecting == nil {
			continue
		}
		n++
		if *r.SelfCorrecting {
			corrections++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Ptr(float64(corrections) / float64(n))
}

// LatencyP95 is the 95th-percentile latency via the nearest-rank method over
// ascending-sorted latencies. Nil when no task recorded a latency.
func LatencyP95(results []models.TaskResult) *float64 {
	var latencies []float64
	for _, r := range results {
		if r.LatencyMs != nil {
			latencies = append(latencies, *r.LatencyMs)
		}
	}
	if len(latencies) == 0 {
		return nil
	}
	sort.Float64s(latencies)
	n := len(latencies)
	idx := int(math.Ceil(0.95*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return models.Ptr(latencies[idx])
}

func meanInt(results []models.TaskResult, field func(models.TaskResult) *int) *float64 {
	sum := 0.0
	n := 0
	for _, r := range results {
		if v := field(r); v != nil {
			sum += float64(*v)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Ptr(sum / float64(n))
}

func meanFloat(results []models.TaskResult, field func(models.TaskResult) *float64) *float64 {
	sum := 0.0
	n := 0
	for _, r := range results {
		if v := field(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Ptr(sum / float64(n))
}

// guarded degrades a single metric to "no data" if its computation panics,
// so one bad aggregation never fails the whole run.
func guarded(f func() *float64) (v *float64) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return f()
}
