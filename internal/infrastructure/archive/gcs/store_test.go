package gcs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/rezkam/weekplan/internal/infrastructure/archive/compliance"
)

func TestGCSStore_Compliance(t *testing.T) {
	bucket := os.Getenv("WEEKPLAN_TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("WEEKPLAN_TEST_GCS_BUCKET not set, skipping GCS tests")
	}

	compliance.RunArchiveComplianceTest(t, func() (compliance.Archive, func()) {
		// Assumes Application Default Credentials with access to the bucket.
		store, err := NewStore(context.Background(), bucket)
		require.NoError(t, err)

		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			it := store.client.Bucket(bucket).Objects(ctx, nil)
			for {
				attrs, err := it.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					t.Logf("Warning: failed to list objects during cleanup: %v", err)
					break
				}
				if err := store.client.Bucket(bucket).Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
					t.Logf("Warning: failed to delete object %s: %v", attrs.Name, err)
				}
			}
			_ = store.Close()
		}

		return store, cleanup
	})
}
