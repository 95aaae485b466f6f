// Package fs keeps closed-week snapshots as JSON files on local disk.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/infrastructure/archive"
)

// Store is a filesystem-based week archive.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a new filesystem archive rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) path(userID string, week int) (string, error) {
	name, err := archive.ObjectName(userID, week)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(name)), nil
}

// ArchiveWeek writes the snapshot, replacing an earlier one for the same week.
// The file is written to a temporary name first and renamed into place.
func (s *Store) ArchiveWeek(_ context.Context, snapshot domain.WeekSnapshot) error {
	path, err := s.path(snapshot.UserID, snapshot.WeekNumber)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// LoadWeek reads one snapshot. Returns domain.ErrSnapshotNotFound if it was never archived.
func (s *Store) LoadWeek(_ context.Context, userID string, week int) (domain.WeekSnapshot, error) {
	path, err := s.path(userID, week)
	if err != nil {
		return domain.WeekSnapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.WeekSnapshot{}, fmt.Errorf("%w: user %s week %d", domain.ErrSnapshotNotFound, userID, week)
		}
		return domain.WeekSnapshot{}, fmt.Errorf("failed to read file: %w", err)
	}

	var snapshot domain.WeekSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.WeekSnapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}

// ListWeeks returns the archived week numbers of userID in ascending order.
func (s *Store) ListWeeks(_ context.Context, userID string) ([]int, error) {
	prefix, err := archive.UserPrefix(userID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.baseDir, filepath.FromSlash(prefix)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var weeks []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if week, ok := archive.ParseWeek(entry.Name()); ok {
			weeks = append(weeks, week)
		}
	}
	slices.Sort(weeks)
	return weeks, nil
}
