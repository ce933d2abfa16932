package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zetareason/reasonbench/internal/orchestration"
	"github.com/zetareason/reasonbench/internal/spinner"
)

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventEvaluationStart:
		fmt.Printf("Starting evaluation: %d task(s) across %d model(s)...\n\n",
			event.TotalTasks, event.TotalModels)
	case orchestration.EventModelStart:
		fmt.Printf("[%d/%d] Evaluating %s/%s (%d tasks)\n",
			event.ModelNum, event.TotalModels, event.Provider, event.ModelID, event.TotalTasks)
	case orchestration.EventTaskComplete:
		icon := "✓"
		if event.Failed {
			icon = "!"
		} else if !event.Correct {
			icon = "✗"
		}
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  %s %s (%v)\n", icon, event.TaskID, duration)
	case orchestration.EventModelComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  %s/%s: accuracy %.3f (%v)\n\n",
			event.Provider, event.ModelID, event.Accuracy, duration)
	case orchestration.EventEvaluationComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Evaluation completed in %v\n", duration)
	}
}

// attachSpinnerReporter shows a single-line spinner that tracks completed
// tasks. The returned stop function clears it.
func attachSpinnerReporter(runner *orchestration.Runner, w io.Writer) func() {
	var mu sync.Mutex
	var sp *spinner.Spinner

	runner.OnProgress(func(event orchestration.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch event.EventType {
		case orchestration.EventEvaluationStart:
			sp = spinner.Start(w, fmt.Sprintf("0/%d tasks", event.TotalTasks))
		case orchestration.EventTaskComplete:
			if sp != nil {
				sp.Update(fmt.Sprintf("%d/%d tasks (%s/%s)",
					event.CompletedTasks, event.TotalTasks, event.Provider, event.ModelID))
			}
		case orchestration.EventEvaluationComplete:
			if sp != nil {
				sp.Stop()
				sp = nil
			}
		}
	})

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if sp != nil {
			sp.Stop()
			sp = nil
		}
	}
}
