// Package localstate provides a durable local run ledger over bbolt for
// deployments with no Postgres/SQLite configured, giving the batch
// scheduler's resumability hook somewhere to persist the last completed
// run id even when internal/store/postgres and internal/store/sqlite are
// both unconfigured.
package localstate

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/graphforge/codegraph/internal/errs"
)

var runsBucket = []byte("runs")

// RunRecord is one run's bookkeeping entry, keyed by "repoID/entityID/component".
type RunRecord struct {
	RunID       string     `json:"run_id"`
	RepoID      string     `json:"repo_id"`
	EntityID    string     `json:"entity_id"`
	Component   string     `json:"component"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Ledger wraps a bbolt database file holding the run records.
type Ledger struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the bbolt file at path and ensures the
// runs bucket exists.
func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errs.DatabaseError(err, "localstate: open bbolt file")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.DatabaseError(err, "localstate: ensure runs bucket")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func key(repoID, entityID, component string) []byte {
	return []byte(repoID + "/" + entityID + "/" + component)
}

// PutRun writes or overwrites the run record for (repoID, entityID, component).
func (l *Ledger) PutRun(repoID, entityID, component string, rec RunRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.InternalErrorf("localstate: marshal run record: %v", err)
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key(repoID, entityID, component), raw)
	})
	if err != nil {
		return errs.DatabaseError(err, "localstate: put run record")
	}
	return nil
}

// GetRun returns the last recorded run for (repoID, entityID, component), or
// nil if none exists yet.
func (l *Ledger) GetRun(repoID, entityID, component string) (*RunRecord, error) {
	var rec *RunRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(runsBucket).Get(key(repoID, entityID, component))
		if raw == nil {
			return nil
		}
		var r RunRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, errs.DatabaseError(err, "localstate: get run record")
	}
	return rec, nil
}
