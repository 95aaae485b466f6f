// Package gcs keeps closed-week snapshots as JSON objects in a Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rezkam/weekplan/internal/domain"
	"github.com/rezkam/weekplan/internal/infrastructure/archive"
)

// Store is a GCS-based week archive.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a new GCS archive.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewStoreWithClient(client, bucketName), nil
}

// NewStoreWithClient creates a GCS archive on an existing client.
func NewStoreWithClient(client *storage.Client, bucketName string) *Store {
	return &Store{
		client: client,
		bucket: bucketName,
	}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ArchiveWeek uploads the snapshot, replacing an earlier one for the same week.
func (s *Store) ArchiveWeek(ctx context.Context, snapshot domain.WeekSnapshot) error {
	name, err := archive.ObjectName(snapshot.UserID, snapshot.WeekNumber)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// LoadWeek downloads one snapshot. Returns domain.ErrSnapshotNotFound if it was never archived.
func (s *Store) LoadWeek(ctx context.Context, userID string, week int) (domain.WeekSnapshot, error) {
	name, err := archive.ObjectName(userID, week)
	if err != nil {
		return domain.WeekSnapshot{}, err
	}

	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.WeekSnapshot{}, fmt.Errorf("%w: user %s week %d", domain.ErrSnapshotNotFound, userID, week)
		}
		return domain.WeekSnapshot{}, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	var snapshot domain.WeekSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return domain.WeekSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// ListWeeks returns the archived week numbers of userID in ascending order.
func (s *Store) ListWeeks(ctx context.Context, userID string) ([]int, error) {
	prefix, err := archive.UserPrefix(userID)
	if err != nil {
		return nil, err
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var weeks []int
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		if week, ok := archive.ParseWeek(path.Base(attrs.Name)); ok {
			weeks = append(weeks, week)
		}
	}
	slices.Sort(weeks)
	return weeks, nil
}
