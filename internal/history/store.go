// Package history persists suite results so past runs can be listed and
// inspected with `keyrunner history`.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"keyrunner/internal/config"
	"keyrunner/internal/runner"
	"keyrunner/pkg/logging"
)

const entityType = "history"

// Summary is the listing view of a stored run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Cases    int           `json:"cases"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
}

// OK reports whether every case of the run passed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// Store keeps one JSON document per run under <config>/history.
type Store struct {
	storage *config.Storage
	mu      sync.RWMutex
	cache   map[string]Summary
}

// ErrNoConfigPath is returned by NewStore for an empty configuration directory.
var ErrNoConfigPath = errors.New("history store needs a configuration directory")

// NewStore creates a store rooted at configPath.
func NewStore(configPath string) (*Store, error) {
	if configPath == "" {
		return nil, ErrNoConfigPath
	}
	return &Store{
		storage: config.NewStorageWithPath(configPath, ".json"),
		cache:   make(map[string]Summary),
	}, nil
}

// Save persists result under its run ID.
func (s *Store) Save(result runner.SuiteResult) error {
	if result.RunID == "" {
		return fmt.Errorf("cannot store a suite result without run ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", result.RunID, err)
	}
	if err := s.storage.Save(entityType, result.RunID, data); err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}
	s.cache[result.RunID] = summarize(result)

	logging.Debug("History", "Stored run %s (%d cases)", result.RunID, len(result.Cases))
	return nil
}

// Get loads a stored run. A unique prefix of the run ID is accepted.
func (s *Store) Get(runID string) (*runner.SuiteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveID(runID)
	if err != nil {
		return nil, err
	}

	data, err := s.storage.Load(entityType, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result runner.SuiteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

// List returns stored runs, newest first. A limit of zero or less returns all.
func (s *Store) List(limit int) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshCache(); err != nil {
		return nil, fmt.Errorf("failed to refresh history cache: %w", err)
	}

	summaries := make([]Summary, 0, len(s.cache))
	for _, summary := range s.cache {
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Started.After(summaries[j].Started)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Delete removes a stored run.
func (s *Store) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(entityType, runID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("run %s not found", runID)
		}
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	delete(s.cache, runID)
	return nil
}

// resolveID expands a run ID prefix. The caller holds s.mu.
func (s *Store) resolveID(prefix string) (string, error) {
	if err := s.refreshCache(); err != nil {
		return "", err
	}
	if _, ok := s.cache[prefix]; ok {
		return prefix, nil
	}

	var matches []string
	for id := range s.cache {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run %s not found", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %s is ambiguous (%d matches)", prefix, len(matches))
	}
}

// refreshCache loads summaries for files not yet cached and forgets files
// that disappeared. The caller holds s.mu.
func (s *Store) refreshCache() error {
	names, err := s.storage.List(entityType)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(names))
	for _, id := range names {
		existing[id] = true
		if _, ok := s.cache[id]; ok {
			continue
		}

		data, err := s.storage.Load(entityType, id)
		if err != nil {
			logging.Warn("History", "Failed to load run %s for caching: %v", id, err)
			continue
		}
		var result runner.SuiteResult
		if err := json.Unmarshal(data, &result); err != nil {
			logging.Warn("History", "Failed to unmarshal run %s for caching: %v", id, err)
			continue
		}
		s.cache[id] = summarize(result)
	}

	for id := range s.cache {
		if !existing[id] {
			delete(s.cache, id)
		}
	}
	return nil
}

func summarize(result runner.SuiteResult) Summary {
	return Summary{
		RunID:    result.RunID,
		Started:  result.Started,
		Duration: result.Duration,
		Cases:    len(result.Cases),
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
	}
}
