// Package storage persists completed evaluation runs as experiments. Each
// experiment is a gzip-compressed JSON payload on disk, indexed by a single
// metadata.json that is rewritten atomically on every mutation.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/zetareason/reasonbench/internal/models"
)

const (
	metadataFile  = "metadata.json"
	payloadSuffix = ".json.gz"
)

// ErrNotFound is returned when no experiment exists with the requested ID.
var ErrNotFound = fmt.Errorf("experiment not found")

// Experiment is a persisted evaluation run.
type Experiment struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Dataset     string                    `json:"dataset"`
	CreatedAt   time.Time                 `json:"created_at"`
	Results     []models.EvaluationResult `json:"results"`
	Description string                    `json:"description,omitempty"`
}

// ExperimentMeta is the index entry kept in metadata.json. It carries enough
// for listings without decompressing any payload.
type ExperimentMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Dataset     string    `json:"dataset"`
	CreatedAt   time.Time `json:"created_at"`
	ModelCount  int       `json:"model_count"`
	TaskCount   int       `json:"task_count"`
	ModelIDs    []string  `json:"model_ids,omitempty"`
	AccuracyMin *float64  `json:"accuracy_min,omitempty"`
	AccuracyMax *float64  `json:"accuracy_max,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Stats summarizes the store's contents.
type Stats struct {
	ExperimentCount int   `json:"experiment_count"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
}

// Store reads and writes experiments under a single directory. The mutex
// serializes every read-modify-write of the index so concurrent saves cannot
// drop each other's entries.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore opens (creating if needed) an experiment store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating experiment directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists an experiment and returns its ID. A blank ID is assigned;
// CreatedAt is stamped when unset. Safe for concurrent use.
func (s *Store) Save(exp Experiment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}

	if err := s.writePayload(exp); err != nil {
		return "", err
	}

	index, err := s.readIndex()
	if err != nil {
		return "", err
	}

	meta := buildMeta(exp)

	replaced := false
	for i, existing := range index {
		if existing.ID == exp.ID {
			index[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, meta)
	}

	if err := s.writeIndex(index); err != nil {
		return "", err
	}
	return exp.ID, nil
}

// List returns index entries, newest first.
func (s *Store) List() ([]ExperimentMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(index, func(i, j int) bool {
		return index[i].CreatedAt.After(index[j].CreatedAt)
	})
	return index, nil
}

// Load reads a full experiment payload.
func (s *Store) Load(id string) (*Experiment, error) {
	f, err := os.Open(s.payloadPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("opening experiment %s: %w", id, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing experiment %s: %w", id, err)
	}
	defer gz.Close()

	var exp Experiment
	if err := json.NewDecoder(gz).Decode(&exp); err != nil {
		return nil, fmt.Errorf("decoding experiment %s: %w", id, err)
	}
	return &exp, nil
}

// Delete removes an experiment's payload and its index entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return err
	}

	found := false
	kept := index[:0]
	for _, meta := range index {
		if meta.ID == id {
			found = true
			continue
		}
		kept = append(kept, meta)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(s.payloadPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing experiment %s: %w", id, err)
	}
	return s.writeIndex(kept)
}

// Stats reports how many experiments exist and their on-disk size.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ExperimentCount: len(index)}
	for _, meta := range index {
		info, err := os.Stat(s.payloadPath(meta.ID))
		if err != nil {
			continue
		}
		stats.TotalSizeBytes += info.Size()
	}
	return stats, nil
}

// buildMeta summarizes an experiment for the index: per-model identifiers and
// the accuracy range across models, so listings can show them without reading
// any payload.
func buildMeta(exp Experiment) ExperimentMeta {
	meta := ExperimentMeta{
		ID:          exp.ID,
		Name:        exp.Name,
		Dataset:     exp.Dataset,
		CreatedAt:   exp.CreatedAt,
		ModelCount:  len(exp.Results),
		Description: exp.Description,
	}
	if len(exp.Results) == 0 {
		return meta
	}

	meta.TaskCount = exp.Results[0].TotalTasks
	lo, hi := exp.Results[0].Metrics.Accuracy, exp.Results[0].Metrics.Accuracy
	for _, result := range exp.Results {
		meta.ModelIDs = append(meta.ModelIDs,
			result.ModelConfiguration.Provider+"/"+result.ModelConfiguration.ModelID)
		acc := result.Metrics.Accuracy
		if acc < lo {
			lo = acc
		}
		if acc > hi {
			hi = acc
		}
	}
	meta.AccuracyMin = &lo
	meta.AccuracyMax = &hi
	return meta
}

func (s *Store) payloadPath(id string) string {
	return filepath.Join(s.dir, id+payloadSuffix)
}

func (s *Store) writePayload(exp Experiment) error {
	f, err := os.CreateTemp(s.dir, "exp-*.tmp")
	if err != nil {
		return fmt.Errorf("creating experiment file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exp); err != nil {
		f.Close()
		return fmt.Errorf("encoding experiment: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("compressing experiment: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing experiment: %w", err)
	}
	return os.Rename(tmpName, s.payloadPath(exp.ID))
}

func (s *Store) readIndex() ([]ExperimentMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading experiment index: %w", err)
	}

	var index []ExperimentMeta
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing experiment index: %w", err)
	}
	return index, nil
}

// writeIndex replaces metadata.json via a temp file rename so a crash never
// leaves a truncated index.
func (s *Store) writeIndex(index []ExperimentMeta) error {
	if index == nil {
		index = []ExperimentMeta{}
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding experiment index: %w", err)
	}

	f, err := os.CreateTemp(s.dir, "metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing experiment index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing experiment index: %w", err)
	}
	return os.Rename(tmpName, filepath.Join(s.dir, metadataFile))
}
