package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()

	id := tr.Create(4, "")
	require.NotEmpty(t, id)

	state, ok := tr.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, state.Status)
	assert.Equal(t, 0, state.CompletedTasks)
	assert.Equal(t, 4, state.TotalTasks)
	assert.Equal(t, 0.0, state.Percentage)

	tr.Update(id, 1)
	state, _ = tr.Snapshot(id)
	assert.Equal(t, 1, state.CompletedTasks)
	assert.InDelta(t, 25.0, state.Percentage, 1e-9)

	tr.Complete(id, "all tasks finished")
	state, _ = tr.Snapshot(id)
	assert.Equal(t, StatusDone, state.Status)
	assert.Equal(t, 4, state.CompletedTasks)
	assert.InDelta(t, 100.0, state.Percentage, 1e-9)
	assert.True(t, state.Terminal())
}

func TestTracker_CompletedIsMonotonic(t *testing.T) {
	tr := NewTracker()
	id := tr.Create(10, "")

	tr.Update(id, 7)
	tr.Update(id, 3) // stale, must be ignored

	state, _ := tr.Snapshot(id)
	assert.Equal(t, 7, state.CompletedTasks)
}

func TestTracker_TerminalTransitionHappensOnce(t *testing.T) {
	tr := NewTracker()
	id := tr.Create(2, "")

	tr.Fail(id, "provider unreachable")
	tr.Complete(id, "late completion must not win")
	tr.Update(id, 2)

	state, _ := tr.Snapshot(id)
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "provider unreachable", state.Message)
}

func TestTracker_ClientSuppliedIDCollision(t *testing.T) {
	tr := NewTracker()

	first := tr.Create(1, "run-a")
	second := tr.Create(1, "run-a")

	assert.Equal(t, "run-a", first)
	assert.NotEqual(t, first, second)

	_, ok := tr.Snapshot(first)
	assert.True(t, ok)
	_, ok = tr.Snapshot(second)
	assert.True(t, ok)
}

func TestTracker_SnapshotUnknownRun(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Snapshot("nope")
	assert.False(t, ok)
}

func TestTracker_SubscribeReceivesUpdatesAndClose(t *testing.T) {
	tr := NewTracker()
	id := tr.Create(2, "")

	ch, cancel, ok := tr.Subscribe(id)
	require.True(t, ok)
	defer cancel()

	// Initial state is delivered immediately.
	state := <-ch
	assert.Equal(t, 0, state.CompletedTasks)

	tr.Update(id, 1)
	state = <-ch
	assert.Equal(t, 1, state.CompletedTasks)

	tr.Complete(id, "")
	state = <-ch
	assert.Equal(t, StatusDone, state.Status)

	_, open := <-ch
	assert.False(t, open, "channel closes after the terminal state")
}

func TestTracker_SubscribeToTerminalRun(t *testing.T) {
	tr := NewTracker()
	id := tr.Create(1, "")
	tr.Complete(id, "done")

	ch, cancel, ok := tr.Subscribe(id)
	require.True(t, ok)
	defer cancel()

	state := <-ch
	assert.Equal(t, StatusDone, state.Status)
	_, open := <-ch
	assert.False(t, open)
}

func TestTracker_SlowSubscriberNeverBlocksWriter(t *testing.T) {
	tr := NewTracker()
	id := tr.Create(100, "")

	_, cancel, ok := tr.Subscribe(id)
	require.True(t, ok)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 100; i++ {
			tr.Update(id, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked on a slow subscriber")
	}

	// Dropped intermediates are fine, Snapshot always has the latest.
	state, _ := tr.Snapshot(id)
	assert.Equal(t, 100, state.CompletedTasks)
}

func TestTracker_ReclaimAfterRetention(t *testing.T) {
	tr := NewTracker(WithRetention(20 * time.Millisecond))
	id := tr.Create(1, "")
	tr.Complete(id, "")

	require.Eventually(t, func() bool {
		_, ok := tr.Snapshot(id)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_RunningRunIsNotReclaimed(t *testing.T) {
	tr := NewTracker(WithRetention(10 * time.Millisecond))
	id := tr.Create(1, "")

	time.Sleep(50 * time.Millisecond)
	_, ok := tr.Snapshot(id)
	assert.True(t, ok, "only terminal runs are reclaimed")
}
