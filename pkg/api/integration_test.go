//go:build integration

package api

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/sims/pkg/importer"
	"github.com/platinummonkey/sims/pkg/records"
)

// setupPostgres starts a disposable Postgres and returns a connection to it
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("sims_test"),
		postgres.WithUsername("sims"),
		postgres.WithPassword("sims_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	t.Cleanup(func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})
	return db
}

func TestIntegration_ScopedListOnPostgres(t *testing.T) {
	env := newTestEnv(t, setupPostgres(t))

	ids, total := listIDs(t, env.do(t, http.MethodGet, "/api/v1/records", "plant@example.com", nil))
	assert.ElementsMatch(t, []string{"injury_1", "observation_4"}, ids)
	assert.Equal(t, int64(2), total)

	ids, _ = listIDs(t, env.do(t, http.MethodGet, "/api/v1/records", "division@example.com", nil))
	assert.ElementsMatch(t, []string{"injury_1", "injury_2", "observation_4"}, ids)

	w := env.do(t, http.MethodPost, "/api/v1/records/injury_2/approve", "division@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := env.records.Get(context.Background(), "injury_2")
	require.NoError(t, err)
	assert.Equal(t, records.StatusCompleted, got.Status)
}

func TestIntegration_StagingUpsertOnPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	_, err := db.Exec(importer.StagingSchema(importer.DefaultStagingTable))
	require.NoError(t, err)
	staging := importer.NewPostgresStagingStore(db, "")

	row := &importer.StagedRow{
		ID:        importer.StagingKey("1001", 7),
		SheetType: "injury",
		SheetID:   "1001",
		RowID:     7,
		Values:    map[string]string{"Auto Number": "42"},
	}
	require.NoError(t, staging.Upsert(ctx, row))
	row.Values["Auto Number"] = "43"
	require.NoError(t, staging.Upsert(ctx, row))

	n, err := staging.Count(ctx, "injury")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := staging.List(ctx, "injury")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "43", rows[0].Values["Auto Number"])
}
