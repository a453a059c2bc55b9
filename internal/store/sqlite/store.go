// Package sqlite mirrors internal/store/postgres's run-ledger and DLQ
// schema for local/offline deployments.
package sqlite

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/jmoiron/sqlx"

	"github.com/graphforge/codegraph/internal/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS doc_runs (
	run_id       TEXT PRIMARY KEY,
	repo_id      TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	component    TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id       TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	error_message TEXT NOT NULL,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	metadata      TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (repo_id, entity_id, node_id)
);
`

type Run struct {
	RunID       string     `db:"run_id"`
	RepoID      string     `db:"repo_id"`
	EntityID    string     `db:"entity_id"`
	Component   string     `db:"component"`
	Status      string     `db:"status"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

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

// Store wraps a local SQLite database for run-ledger and DLQ bookkeeping.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore opens (creating if needed) a SQLite database at path and ensures
// the schema exists.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, errs.DatabaseError(err, "sqlite: connect")
	}
	s := &Store{db: db, logger: slog.Default().With("component", "store.sqlite")}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errs.DatabaseError(err, "sqlite: ensure schema")
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) StartRun(ctx context.Context, runID, repoID, entityID, component string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO doc_runs (run_id, repo_id, entity_id, component, status, started_at)
		VALUES (?, ?, ?, ?, 'running', CURRENT_TIMESTAMP)
	`, runID, repoID, entityID, component)
	if err != nil {
		return errs.DatabaseError(err, "sqlite: start run")
	}
	return nil
}

func (s *Store) CompleteRun(ctx context.Context, runID string, failed bool) error {
	status := "completed"
	if failed {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE doc_runs SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE run_id = ?
	`, status, runID)
	if err != nil {
		return errs.DatabaseError(err, "sqlite: complete run")
	}
	return nil
}

func (s *Store) LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error) {
	var r Run
	err := s.db.GetContext(ctx, &r, `
		SELECT run_id, repo_id, entity_id, component, status, started_at, completed_at
		FROM doc_runs
		WHERE repo_id = ? AND entity_id = ? AND component = ? AND status = 'completed'
		ORDER BY completed_at DESC LIMIT 1
	`, repoID, entityID, component)
	if err != nil {
		return nil, nil //nolint:nilerr // no prior run is not an error condition for callers
	}
	return &r, nil
}

func (s *Store) EnqueueFailure(ctx context.Context, repoID, entityID, nodeID string, cause error, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return errs.InternalErrorf("sqlite: marshal dlq metadata: %v", err)
	}

	_, dbErr := s.db.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (repo_id, entity_id, node_id, error_message, retry_count, metadata)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (repo_id, entity_id, node_id) DO UPDATE SET
			retry_count = dead_letter_queue.retry_count + 1,
			error_message = excluded.error_message,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, repoID, entityID, nodeID, cause.Error(), string(metaJSON))
	if dbErr != nil {
		return errs.DatabaseError(dbErr, "sqlite: enqueue dlq entry")
	}
	s.logger.Warn("node enqueued to dlq", "repo_id", repoID, "node_id", nodeID, "error", cause)
	return nil
}

func (s *Store) PendingRetries(ctx context.Context, repoID string, maxRetries int) ([]DeadLetter, error) {
	var entries []DeadLetter
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, repo_id, entity_id, node_id, error_message, retry_count, created_at, updated_at
		FROM dead_letter_queue
		WHERE repo_id = ? AND retry_count < ?
		ORDER BY created_at ASC
	`, repoID, maxRetries)
	if err != nil {
		return nil, errs.DatabaseError(err, "sqlite: list pending retries")
	}
	return entries, nil
}
