package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetareason/reasonbench/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleExperiment(name string) Experiment {
	return Experiment{
		Name:    name,
		Dataset: "arith.csv",
		Results: []models.EvaluationResult{{
			ModelConfiguration: models.ModelConfig{Provider: "scripted", ModelID: "demo"},
			Metrics:            models.MetricsSummary{Accuracy: 0.75},
			TaskResults: []models.TaskResult{
				{TaskID: "q1", ModelOutput: models.ModelOutput{Answer: "4"}, Correct: true},
				{TaskID: "q2", ModelOutput: models.ModelOutput{Answer: "7"}, Correct: false},
			},
			TotalTasks: 2,
		}},
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(sampleExperiment("baseline"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "baseline", loaded.Name)
	assert.Equal(t, "arith.csv", loaded.Dataset)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, 0.75, loaded.Results[0].Metrics.Accuracy)
	assert.Len(t, loaded.Results[0].TaskResults, 2)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestStore_PayloadIsGzipCompressed(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(sampleExperiment("compressed"))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(store.Dir(), id+".json.gz"))
	require.NoError(t, err)
	require.Greater(t, len(raw), 2)
	assert.Equal(t, byte(0x1f), raw[0], "gzip magic byte")
	assert.Equal(t, byte(0x8b), raw[1], "gzip magic byte")
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := sampleExperiment("older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	_, err := store.Save(older)
	require.NoError(t, err)

	newer := sampleExperiment("newer")
	newer.CreatedAt = time.Now()
	_, err = store.Save(newer)
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Name)
	assert.Equal(t, "older", list[1].Name)
	assert.Equal(t, 1, list[0].ModelCount)
	assert.Equal(t, 2, list[0].TaskCount)
	assert.Equal(t, []string{"scripted/demo"}, list[0].ModelIDs)
	require.NotNil(t, list[0].AccuracyMin)
	require.NotNil(t, list[0].AccuracyMax)
	assert.Equal(t, 0.75, *list[0].AccuracyMin)
	assert.Equal(t, 0.75, *list[0].AccuracyMax)
}

func TestStore_SaveSameIDReplacesIndexEntry(t *testing.T) {
	store := newTestStore(t)

	exp := sampleExperiment("first")
	id, err := store.Save(exp)
	require.NoError(t, err)

	exp.ID = id
	exp.Name = "second"
	_, err = store.Save(exp)
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Name)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(sampleExperiment("doomed"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))

	_, err = store.Load(id)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_DeleteUnknown(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.Delete("nope"), ErrNotFound)
}

func TestStore_LoadUnknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Stats(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ExperimentCount)

	_, err = store.Save(sampleExperiment("a"))
	require.NoError(t, err)
	_, err = store.Save(sampleExperiment("b"))
	require.NoError(t, err)

	stats, err = store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ExperimentCount)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))
}

func TestStore_ConcurrentSavesKeepEveryIndexEntry(t *testing.T) {
	store := newTestStore(t)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Save(sampleExperiment(fmt.Sprintf("run-%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "save %d", i)
	}

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestStore_EmptyStoreListIsEmpty(t *testing.T) {
	store := newTestStore(t)
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
