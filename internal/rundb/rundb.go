// Package rundb selects and wraps whichever relational or local run-ledger
// backend is configured (config.StoreConfig.StatusBackend), giving callers
// one contract regardless of whether Postgres, SQLite, or the dependency-free
// bbolt fallback is in play.
package rundb

import (
	"context"
	"time"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/store/localstate"
	"github.com/graphforge/codegraph/internal/store/postgres"
	"github.com/graphforge/codegraph/internal/store/sqlite"
)

// Run is the backend-neutral view of a doc_runs row / bbolt RunRecord.
type Run struct {
	RunID       string
	RepoID      string
	EntityID    string
	Component   string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// DeadLetter is the backend-neutral view of a dead_letter_queue row.
type DeadLetter struct {
	ID           int64
	RepoID       string
	EntityID     string
	NodeID       string
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunLedger is what the batch scheduler's resumability hook needs: start
// and complete a run, and look up the last completed one so a fresh run
// can be skipped.
// All three backends (postgres, sqlite, bolt) satisfy it.
type RunLedger interface {
	StartRun(ctx context.Context, runID, repoID, entityID, component string) error
	// CompleteRun takes the full (repoID, entityID, component) key, not just
	// runID, since the bolt backend addresses records by that triple rather
	// than by a secondary run-id index.
	CompleteRun(ctx context.Context, runID, repoID, entityID, component string, failed bool) error
	LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error)
	Close() error
}

// DeadLetterStore is the DLQ half, only available on the relational
// backends -- the bolt fallback carries no DLQ table, so Open returns a nil
// DeadLetterStore when StatusBackend is "bolt".
type DeadLetterStore interface {
	EnqueueFailure(ctx context.Context, repoID, entityID, nodeID string, cause error, metadata map[string]interface{}) error
	PendingRetries(ctx context.Context, repoID string, maxRetries int) ([]DeadLetter, error)
}

// Open constructs the RunLedger (and, where available, DeadLetterStore)
// named by cfg.StatusBackend ("postgres", "sqlite", or "bolt"/"" for the
// bbolt fallback).
func Open(ctx context.Context, cfg config.StoreConfig) (RunLedger, DeadLetterStore, error) {
	switch cfg.StatusBackend {
	case "postgres":
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		w := &postgresLedger{s}
		return w, w, nil
	case "sqlite":
		s, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		w := &sqliteLedger{s}
		return w, w, nil
	case "bolt", "":
		l, err := localstate.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return &boltLedger{l}, nil, nil
	default:
		return nil, nil, errs.ConfigErrorf("rundb: unknown status backend %q", cfg.StatusBackend)
	}
}

type postgresLedger struct{ s *postgres.Store }

func (w *postgresLedger) StartRun(ctx context.Context, runID, repoID, entityID, component string) error {
	return w.s.StartRun(ctx, runID, repoID, entityID, component)
}
func (w *postgresLedger) CompleteRun(ctx context.Context, runID, repoID, entityID, component string, failed bool) error {
	return w.s.CompleteRun(ctx, runID, failed)
}
func (w *postgresLedger) LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error) {
	r, err := w.s.LastCompletedRun(ctx, repoID, entityID, component)
	if err != nil || r == nil {
		return nil, err
	}
	return &Run{RunID: r.RunID, RepoID: r.RepoID, EntityID: r.EntityID, Component: r.Component, Status: r.Status, StartedAt: r.StartedAt, CompletedAt: r.CompletedAt}, nil
}
func (w *postgresLedger) Close() error { return w.s.Close() }
func (w *postgresLedger) EnqueueFailure(ctx context.Context, repoID, entityID, nodeID string, cause error, metadata map[string]interface{}) error {
	return w.s.EnqueueFailure(ctx, repoID, entityID, nodeID, cause, metadata)
}
func (w *postgresLedger) PendingRetries(ctx context.Context, repoID string, maxRetries int) ([]DeadLetter, error) {
	entries, err := w.s.PendingRetries(ctx, repoID, maxRetries)
	if err != nil {
		return nil, err
	}
	return convertPostgresEntries(entries), nil
}

func convertPostgresEntries(entries []postgres.DeadLetter) []DeadLetter {
	out := make([]DeadLetter, 0, len(entries))
	for _, e := range entries {
		out = append(out, DeadLetter{
			ID: e.ID, RepoID: e.RepoID, EntityID: e.EntityID, NodeID: e.NodeID,
			ErrorMessage: e.ErrorMessage, RetryCount: e.RetryCount,
			CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
		})
	}
	return out
}

type sqliteLedger struct{ s *sqlite.Store }

func (w *sqliteLedger) StartRun(ctx context.Context, runID, repoID, entityID, component string) error {
	return w.s.StartRun(ctx, runID, repoID, entityID, component)
}
func (w *sqliteLedger) CompleteRun(ctx context.Context, runID, repoID, entityID, component string, failed bool) error {
	return w.s.CompleteRun(ctx, runID, failed)
}
func (w *sqliteLedger) LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error) {
	r, err := w.s.LastCompletedRun(ctx, repoID, entityID, component)
	if err != nil || r == nil {
		return nil, err
	}
	return &Run{RunID: r.RunID, RepoID: r.RepoID, EntityID: r.EntityID, Component: r.Component, Status: r.Status, StartedAt: r.StartedAt, CompletedAt: r.CompletedAt}, nil
}
func (w *sqliteLedger) Close() error { return w.s.Close() }
func (w *sqliteLedger) EnqueueFailure(ctx context.Context, repoID, entityID, nodeID string, cause error, metadata map[string]interface{}) error {
	return w.s.EnqueueFailure(ctx, repoID, entityID, nodeID, cause, metadata)
}
func (w *sqliteLedger) PendingRetries(ctx context.Context, repoID string, maxRetries int) ([]DeadLetter, error) {
	entries, err := w.s.PendingRetries(ctx, repoID, maxRetries)
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(entries))
	for _, e := range entries {
		out = append(out, DeadLetter{
			ID: e.ID, RepoID: e.RepoID, EntityID: e.EntityID, NodeID: e.NodeID,
			ErrorMessage: e.ErrorMessage, RetryCount: e.RetryCount,
			CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
		})
	}
	return out, nil
}

// boltLedger adapts localstate.Ledger's simpler Put/Get-record API to
// RunLedger, synthesizing StartRun/CompleteRun/LastCompletedRun from it.
// It implements no DeadLetterStore -- the bolt fallback has no DLQ table.
type boltLedger struct{ l *localstate.Ledger }

func (w *boltLedger) StartRun(ctx context.Context, runID, repoID, entityID, component string) error {
	return w.l.PutRun(repoID, entityID, component, localstate.RunRecord{
		RunID: runID, RepoID: repoID, EntityID: entityID, Component: component,
		Status: "running", StartedAt: time.Now(),
	})
}

func (w *boltLedger) CompleteRun(ctx context.Context, runID, repoID, entityID, component string, failed bool) error {
	rec, err := w.l.GetRun(repoID, entityID, component)
	if err != nil {
		return err
	}
	if rec == nil || rec.RunID != runID {
		return errs.InternalErrorf("rundb: no bolt record found for run %s under %s/%s/%s", runID, repoID, entityID, component)
	}
	status := "completed"
	if failed {
		status = "failed"
	}
	now := time.Now()
	rec.Status = status
	rec.CompletedAt = &now
	return w.l.PutRun(repoID, entityID, component, *rec)
}

func (w *boltLedger) LastCompletedRun(ctx context.Context, repoID, entityID, component string) (*Run, error) {
	rec, err := w.l.GetRun(repoID, entityID, component)
	if err != nil || rec == nil || rec.Status != "completed" {
		return nil, err
	}
	return &Run{RunID: rec.RunID, RepoID: rec.RepoID, EntityID: rec.EntityID, Component: rec.Component, Status: rec.Status, StartedAt: rec.StartedAt, CompletedAt: rec.CompletedAt}, nil
}

func (w *boltLedger) Close() error { return w.l.Close() }
