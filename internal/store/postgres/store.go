// Package postgres implements the relational run-bookkeeping side-store:
// a run ledger (one row per documentation run, independent of the graph
// store's own per-node processing_status columns) and a dead-letter queue
// for nodes that repeatedly fail to document.
package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver sqlx dials through
	"github.com/jmoiron/sqlx"

	"github.com/graphforge/codegraph/internal/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS doc_runs (
	run_id       TEXT PRIMARY KEY,
	repo_id      TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	component    TEXT NOT NULL, -- "docengine" or "batchdoc"
	status       TEXT NOT NULL, -- "running", "completed", "failed"
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id            SERIAL PRIMARY KEY,
	repo_id       TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	error_message TEXT NOT NULL,
	retry_count   INT NOT NULL DEFAULT 0,
	metadata      JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (repo_id, entity_id, node_id)
);
`

// Run is one row of the doc_runs ledger.
type Run struct {
	RunID       string     `db:"run_id"`
	RepoID      string     `db:"repo_id"`
	EntityID    string     `db:"entity_id"`
	Component   string     `db:"component"`
	Status      string     `db:"status"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// DeadLetter is one row of the dead_letter_queue table.
type DeadLetter struct {
	ID           int64     `db:"id"`
	RepoID       string    `db:"repo_id"`
	EntityID     string    `db:"entity_id"`
	NodeID       string    `db:"node_id"`
	ErrorMessage string    `db:"error_message"`
	RetryCount   int       `db:"retry_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Store wraps a Postgres connection pool for run-ledger and DLQ bookkeeping.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore opens a Postgres connection and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, errs.DatabaseError(err, "postgres: connect")
	}
	s := &Store{db: db, logger: slog.Default().With("component", "store.postgres")}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errs.DatabaseError(err, "postgres: ensure schema")
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartRun records a new run-ledger row in "running" state.
func (s *Store) StartRun(ctx context.Context, runID, repoID, entityID, component string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO doc_runs (run_id, repo_id, entity_id, component, status, started_at)
		VALUES ($1, $2, $3, $4, 'running', NOW())
	`, runID, repoID, entityID, component)
	if err != nil {
		return errs.DatabaseError(err, "postgres: start run")
	}
	return nil
}

// CompleteRun marks a run-ledger row as completed or failed.
func (s *Store) CompleteRun(ctx context.Context, runID string, failed bool) error {
	status := "completed"
	if failed {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE doc_runs SET status = $2, completed_at = NOW() WHERE run_id = $1
	`, runID, status)
	if err != nil {
		return errs.DatabaseError(err, "postgres: complete run")
	}
	return nil
}

// LastCompletedRun returns the most recent completed run for (repoID,
// entityID, component), used to decide whether a fresh run is needed at all
// so a fresh run can be skipped when one already succeeded.
func (s *Store) LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error) {
	var r Run
	err := s.db.GetContext(ctx, &r, `
		SELECT run_id, repo_id, entity_id, component, status, started_at, completed_at
		FROM doc_runs
		WHERE repo_id = $1 AND entity_id = $2 AND component = $3 AND status = 'completed'
		ORDER BY completed_at DESC LIMIT 1
	`, repoID, entityID, component)
	if err != nil {
		return nil, nil //nolint:nilerr // no prior run is not an error condition for callers
	}
	return &r, nil
}

// EnqueueFailure records (or bumps the retry count for) a node that failed
// to document. Repeated failures for the same node bump its retry count.
func (s *Store) EnqueueFailure(ctx context.Context, repoID, entityID, nodeID string, cause error, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return errs.InternalErrorf("postgres: marshal dlq metadata: %v", err)
	}

	_, dbErr := s.db.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (repo_id, entity_id, node_id, error_message, retry_count, metadata)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (repo_id, entity_id, node_id) DO UPDATE
		SET retry_count = dead_letter_queue.retry_count + 1,
		    error_message = $4,
		    metadata = $5,
		    updated_at = NOW()
	`, repoID, entityID, nodeID, cause.Error(), metaJSON)
	if dbErr != nil {
		return errs.DatabaseError(dbErr, "postgres: enqueue dlq entry")
	}
	s.logger.Warn("node enqueued to dlq", "repo_id", repoID, "node_id", nodeID, "error", cause)
	return nil
}

// PendingRetries returns dead-letter entries under maxRetries, oldest first.
func (s *Store) PendingRetries(ctx context.Context, repoID string, maxRetries int) ([]DeadLetter, error) {
	var entries []DeadLetter
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, repo_id, entity_id, node_id, error_message, retry_count, created_at, updated_at
		FROM dead_letter_queue
		WHERE repo_id = $1 AND retry_count < $2
		ORDER BY created_at ASC
	`, repoID, maxRetries)
	if err != nil {
		return nil, errs.DatabaseError(err, "postgres: list pending retries")
	}
	return entries, nil
}
