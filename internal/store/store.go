// Package store archives audit run NDJSON files under a directory so a run
// can be diffed later by its identifier instead of a file path.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"auditdiff/internal/ndjson"
)

// ErrRunNotFound is returned when an archived run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Store manages archived audit runs.
type Store struct {
	Dir string // Base directory for archived runs
}

// NewStore creates a store with the given directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// DefaultDir returns the default archive directory (~/.auditdiff/runs).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".auditdiff/runs"
	}
	return filepath.Join(home, ".auditdiff", "runs")
}

// ResolveDir returns the archive directory from env var or default.
func ResolveDir(environ []string) string {
	for _, env := range environ {
		if strings.HasPrefix(env, "AUDITDIFF_RUNS_DIR=") {
			return strings.TrimPrefix(env, "AUDITDIFF_RUNS_DIR=")
		}
	}
	return DefaultDir()
}

// Save archives the rows of one audit run under the given identifier.
func (s *Store) Save(runID string, rows []ndjson.Row) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}

	data, err := ndjson.Marshal(rows)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path(runID), data, 0644)
}

// Load retrieves an archived run by identifier.
func (s *Store) Load(runID string) ([]ndjson.Row, error) {
	rows, err := ndjson.ReadFile(s.path(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return rows, nil
}

// RunSummary is a lightweight view for listing archived runs.
type RunSummary struct {
	RunID    string
	Size     int64
	Modified time.Time
}

// List returns all archived runs, most recent first.
func (s *Store) List() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunSummary{}, nil
		}
		return nil, err
	}

	var summaries []RunSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ndjson") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Skip unreadable files
		}
		summaries = append(summaries, RunSummary{
			RunID:    strings.TrimSuffix(entry.Name(), ".ndjson"),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Modified.Equal(summaries[j].Modified) {
			return summaries[i].Modified.After(summaries[j].Modified)
		}
		return summaries[i].RunID < summaries[j].RunID
	})
	return summaries, nil
}

// Latest returns the identifier of the most recently archived run.
func (s *Store) Latest() (string, error) {
	summaries, err := s.List()
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", ErrRunNotFound
	}
	return summaries[0].RunID, nil
}

// Delete removes an archived run by identifier.
func (s *Store) Delete(runID string) error {
	err := os.Remove(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrRunNotFound
		}
		return err
	}
	return nil
}

// Exists checks if a run is archived.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.path(runID))
	return err == nil
}

// path returns the file path for a run identifier.
func (s *Store) path(runID string) string {
	// Sanitize identifier for filesystem
	safe := strings.ReplaceAll(runID, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	return filepath.Join(s.Dir, safe+".ndjson")
}
