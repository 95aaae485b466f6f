package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/weekplan/internal/config"
	"github.com/rezkam/weekplan/internal/infrastructure/persistence/compliance"
)

// setupTestStore connects to the database named by WEEKPLAN_TEST_DB_DSN and
// applies migrations. The test is skipped when no database is configured.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	cfg, err := config.LoadTestConfig()
	if err != nil {
		t.Skipf("Skipping PostgreSQL tests: %v", err)
	}

	ctx := context.Background()
	store, err := NewStoreWithConfig(ctx, DBConfig{DSN: cfg.DSN, AutoMigrate: true})
	require.NoError(t, err)

	cleanup := func() {
		_, err := store.Pool().Exec(ctx, `TRUNCATE TABLE activities, weekly_completions, task_dependencies,
			attachments, subtasks, tasks, recurring_templates, week_pointers CASCADE`)
		if err != nil {
			t.Logf("failed to truncate tables: %v", err)
		}
		store.Close()
	}
	return store, cleanup
}

func TestStore_Compliance(t *testing.T) {
	compliance.RunRepositoryComplianceTest(t, func() (compliance.Store, func()) {
		return setupTestStore(t)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	cfg, err := config.LoadTestConfig()
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), cfg.DSN))

	var tables int
	err = store.Pool().QueryRow(context.Background(), `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN ('tasks', 'subtasks', 'attachments',
		'task_dependencies', 'weekly_completions', 'recurring_templates', 'week_pointers', 'activities')`).Scan(&tables)
	require.NoError(t, err)
	require.Equal(t, 8, tables)
}
