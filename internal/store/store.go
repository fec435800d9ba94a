// internal/store/store.go
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const reportFrom = `
  FROM repos r
  JOIN owners o ON r.owner_id = o.id
 ORDER BY r.id`

const reportQuery = `SELECT r.id AS "RepoID", r.name AS "RepoName", r.visibility AS "Status",
       r.stargazers_count AS "starsCount", o.id AS "ownerId", o.login AS "ownerName",
       o.gravatar_id AS "ownerEmail"` + reportFrom

// COPY ... CSV quotes empty strings; NULLIF keeps empty fields bare.
const copyReportSQL = `COPY (SELECT r.id AS "RepoID", NULLIF(r.name, '') AS "RepoName",
       NULLIF(r.visibility, '') AS "Status", r.stargazers_count AS "starsCount",
       o.id AS "ownerId", NULLIF(o.login, '') AS "ownerName",
       NULLIF(o.gravatar_id, '') AS "ownerEmail"` + reportFrom + `) TO STDOUT WITH CSV DELIMITER ',' HEADER`

var knownTables = map[string]bool{
	model.ReposTable:  true,
	model.OwnersTable: true,
}

// Store persists the normalized relations in Postgres and renders the joined report.
type Store struct {
	pool   *pgxpool.Pool
	dbURL  string
	logger *slog.Logger
}

// New connects to dbURL and verifies the connection.
func New(ctx context.Context, dbURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, &apperrors.ConnectionError{Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &apperrors.ConnectionError{Err: err}
	}
	logger.Info("Database connection established")
	return &Store{pool: pool, dbURL: dbURL, logger: logger}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.dbURL)
	if err != nil {
		return &apperrors.ConnectionError{Err: err}
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	s.logger.Info("Database migrations applied successfully")
	return nil
}

// ReplaceTable swaps the contents of rel's table for rel's rows in a single
// transaction. It returns the number of rows written.
func (s *Store) ReplaceTable(ctx context.Context, rel model.Relation) (int64, error) {
	table := rel.TableName()
	if !knownTables[table] {
		return 0, &apperrors.WriteError{Table: table, Err: errors.New("unknown table")}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &apperrors.ConnectionError{Err: err}
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	ident := pgx.Identifier{table}
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+ident.Sanitize()); err != nil {
		return 0, &apperrors.WriteError{Table: table, Err: err}
	}

	n, err := tx.CopyFrom(ctx, ident, rel.Columns(), pgx.CopyFromRows(rel.Rows()))
	if err != nil {
		return 0, &apperrors.WriteError{Table: table, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &apperrors.WriteError{Table: table, Err: err}
	}
	s.logger.Info("Data loaded to postgres DB successfully", "table", table, "rows", n)
	return n, nil
}

// ExportCSV streams the joined report, with a header row, into the file at path.
// It returns the number of data rows written.
func (s *Store) ExportCSV(ctx context.Context, path string) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, &apperrors.ConnectionError{Err: err}
	}
	defer conn.Release()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	tag, err := conn.Conn().PgConn().CopyTo(ctx, f, copyReportSQL)
	if cerr := f.Close(); err == nil && cerr != nil {
		return 0, fmt.Errorf("writing %s: %w", path, cerr)
	}
	if err != nil {
		return 0, &apperrors.QueryError{Err: err}
	}

	s.logger.Info("Data loaded from DB to CSV successfully", "path", path, "rows", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// QueryJoinedReport returns the repos/owners join ordered by repository id.
func (s *Store) QueryJoinedReport(ctx context.Context) ([]model.ReportRow, error) {
	rows, err := s.pool.Query(ctx, reportQuery)
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}
	report, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ReportRow])
	if err != nil {
		return nil, &apperrors.QueryError{Err: err}
	}
	return report, nil
}
