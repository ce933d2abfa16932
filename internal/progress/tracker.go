// Package progress tracks the live state of evaluation runs. The tracker is
// a keyed store with an explicit lifecycle: an entry is created when a run
// starts, updated on each task completion, moved to a terminal state exactly
// once, and reclaimed after a bounded retention window.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run. The only legal transitions are
// Running → Done and Running → Error; both are terminal.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// DefaultRetention is how long a terminal run stays readable for late
// polling clients before its entry is reclaimed.
const DefaultRetention = 10 * time.Minute

// RunState is a point-in-time snapshot of one run's progress.
type RunState struct {
	RunID          string    `json:"run_id"`
	CompletedTasks int       `json:"completed_tasks"`
	TotalTasks     int       `json:"total_tasks"`
	Percentage     float64   `json:"percentage"`
	Status         Status    `json:"status"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Terminal reports whether the run has reached Done or Error.
func (s RunState) Terminal() bool {
	return s.Status == StatusDone || s.Status == StatusError
}

type runEntry struct {
	state       RunState
	subscribers []chan RunState
}

// Tracker is the process-wide run registry. All methods are safe for
// concurrent use; broadcast never blocks a writer.
type Tracker struct {
	mu        sync.RWMutex
	runs      map[string]*runEntry
	retention time.Duration
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRetention sets how long terminal runs stay readable before reclaim.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		t.retention = d
	}
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		runs:      make(map[string]*runEntry),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Create registers a new run and returns its ID. An empty runID generates
// one; a colliding client-supplied ID is replaced rather than clobbering the
// existing run.
func (t *Tracker) Create(totalTasks int, runID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if runID == "" {
		runID = uuid.NewString()
	}
	if _, exists := t.runs[runID]; exists {
		runID = uuid.NewString()
	}

	t.runs[runID] = &runEntry{
		state: RunState{
			RunID:      runID,
			TotalTasks: totalTasks,
			Status:     StatusRunning,
			Timestamp:  t.now(),
		},
	}
	return runID
}

// Update records task completions for a running run. Completed counts are
// monotonic: a stale lower count is ignored. Updates to terminal or
// reclaimed runs are no-ops.
func (t *Tracker) Update(runID string, completedTasks int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[runID]
	if !ok || entry.state.Terminal() {
		return
	}
	if completedTasks < entry.state.CompletedTasks {
		return
	}

	entry.state.CompletedTasks = completedTasks
	entry.state.Percentage = percentage(completedTasks, entry.state.TotalTasks)
	entry.state.Timestamp = t.now()
	t.broadcastLocked(entry)
}

// Complete transitions a run to Done. The transition happens at most once;
// further writes are ignored.
func (t *Tracker) Complete(runID string, message string) {
	t.finish(runID, StatusDone, message)
}

// Fail transitions a run to Error with a descriptive message.
func (t *Tracker) Fail(runID string, message string) {
	t.finish(runID, StatusError, message)
}

func (t *Tracker) finish(runID string, status Status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[runID]
	if !ok || entry.state.Terminal() {
		return
	}

	if status == StatusDone {
		entry.state.CompletedTasks = entry.state.TotalTasks
		entry.state.Percentage = percentage(entry.state.TotalTasks, entry.state.TotalTasks)
	}
	entry.state.Status = status
	entry.state.Message = message
	entry.state.Timestamp = t.now()
	t.broadcastLocked(entry)

	// Close push channels so transports see the terminal state and stop.
	for _, ch := range entry.subscribers {
		close(ch)
	}
	entry.subscribers = nil

	time.AfterFunc(t.retention, func() { t.reclaim(runID) })
}

// Snapshot returns the current state of a run for polling clients.
func (t *Tracker) Snapshot(runID string) (RunState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.runs[runID]
	if !ok {
		return RunState{}, false
	}
	return entry.state, true
}

// Subscribe registers a push channel for a run. The current state is
// delivered immediately, then every subsequent update; the channel closes
// when the run reaches a terminal state. Sends never block: when a slow
// consumer's buffer is full, intermediate updates are dropped and the
// consumer catches up on the next write.
//
// The returned cancel function detaches the subscription early.
func (t *Tracker) Subscribe(runID string) (<-chan RunState, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[runID]
	if !ok {
		return nil, nil, false
	}

	ch := make(chan RunState, 16)
	ch <- entry.state
	if entry.state.Terminal() {
		close(ch)
		return ch, func() {}, true
	}

	entry.subscribers = append(entry.subscribers, ch)
	cancel := func() { t.unsubscribe(runID, ch) }
	return ch, cancel, true
}

func (t *Tracker) unsubscribe(runID string, ch chan RunState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[runID]
	if !ok {
		return
	}
	for i, sub := range entry.subscribers {
		if sub == ch {
			entry.subscribers = append(entry.subscribers[:i], entry.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (t *Tracker) broadcastLocked(entry *runEntry) {
	for _, ch := range entry.subscribers {
		select {
		case ch <- entry.state:
		default:
			// Slow consumer: drop this update, Snapshot still serves the
			// latest value.
		}
	}
}

// reclaim removes a run's entry. Only terminal runs are reclaimed; any
// lingering subscriber channels were already closed at transition time.
func (t *Tracker) reclaim(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[runID]
	if !ok || !entry.state.Terminal() {
		return
	}
	delete(t.runs, runID)
}

// Len reports how many runs are currently tracked.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

func percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100.0
}
