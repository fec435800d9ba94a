//go:build integration

// internal/store/store_integration_test.go
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

func setupTestStore(ctx context.Context, t *testing.T) *Store {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgContainer)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := New(ctx, connStr, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate())
	// A second run is a no-op.
	require.NoError(t, s.Migrate())
	return s
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := setupTestStore(ctx, t)

	t.Run("replaces rather than appends", func(t *testing.T) {
		_, err := s.ReplaceTable(ctx, model.Repositories{{ID: 99, Name: "stale", OwnerID: 10}})
		require.NoError(t, err)

		n, err := s.ReplaceTable(ctx, model.Repositories{
			{ID: 1, Name: "r1", Visibility: "public", StargazersCount: 3, OwnerID: 10},
			{ID: 2, Name: "r2", Visibility: "private", StargazersCount: 0, OwnerID: 11},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.ReplaceTable(ctx, model.Owners{{ID: 10, Login: "alice"}, {ID: 11, Login: "bob", GravatarID: "g"}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		report, err := s.QueryJoinedReport(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.ReportRow{
			{RepoID: 1, RepoName: "r1", Status: "public", StarsCount: 3, OwnerID: 10, OwnerName: "alice"},
			{RepoID: 2, RepoName: "r2", Status: "private", StarsCount: 0, OwnerID: 11, OwnerName: "bob", OwnerEmail: "g"},
		}, report)
	})

	t.Run("exports the report as CSV with a header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "result.csv")

		n, err := s.ExportCSV(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t,
			"RepoID,RepoName,Status,starsCount,ownerId,ownerName,ownerEmail\n"+
				"1,r1,public,3,10,alice,\n"+
				"2,r2,private,0,11,bob,g\n",
			string(data))
	})

	t.Run("rejects unknown tables", func(t *testing.T) {
		_, err := s.ReplaceTable(ctx, unknownRelation{})

		var writeErr *apperrors.WriteError
		assert.ErrorAs(t, err, &writeErr)
	})
}

type unknownRelation struct{}

func (unknownRelation) TableName() string { return "users; DROP TABLE repos" }
func (unknownRelation) Columns() []string { return []string{"id"} }
func (unknownRelation) Rows() [][]any     { return nil }
