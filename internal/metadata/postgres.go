package metadata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the recorder needs; tests substitute a
// pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id UUID PRIMARY KEY,
	task TEXT NOT NULL,
	succeeded INT NOT NULL,
	failed INT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

const insertRun = `
INSERT INTO harvest_runs (id, task, succeeded, failed, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresRecorder writes one harvest_runs row per run.
type PostgresRecorder struct {
	db DB
}

// NewPostgres connects a pgx pool and ensures the runs table exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	recorder := &PostgresRecorder{db: pool}
	if err := recorder.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return recorder, nil
}

// NewPostgresWithDB wires an existing connection; used by tests.
func NewPostgresWithDB(db DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// EnsureSchema creates the harvest_runs table when missing.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("ensure harvest_runs table: %w", err)
	}
	return nil
}

// RecordRun implements Recorder.
func (r *PostgresRecorder) RecordRun(ctx context.Context, run Run) error {
	_, err := r.db.Exec(ctx, insertRun,
		run.ID, run.Task, run.Succeeded, run.Failed, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Close implements Recorder.
func (r *PostgresRecorder) Close() {
	r.db.Close()
}
