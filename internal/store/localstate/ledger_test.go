package localstate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_GetRun_MissingReturnsNilNotError(t *testing.T) {
	l := openTestLedger(t)

	rec, err := l.GetRun("repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestLedger_PutThenGetRoundTrips(t *testing.T) {
	l := openTestLedger(t)

	in := RunRecord{
		RunID:     "run1",
		RepoID:    "repo1",
		EntityID:  "e1",
		Component: "batchdoc",
		Status:    "running",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, l.PutRun("repo1", "e1", "batchdoc", in))

	out, err := l.GetRun("repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, "run1", out.RunID)
	require.Equal(t, "running", out.Status)
	require.Nil(t, out.CompletedAt)
}

func TestLedger_PutOverwritesPriorRecord(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.PutRun("repo1", "e1", "batchdoc", RunRecord{RunID: "run1", Status: "running"}))
	completed := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	require.NoError(t, l.PutRun("repo1", "e1", "batchdoc", RunRecord{RunID: "run1", Status: "completed", CompletedAt: &completed}))

	out, err := l.GetRun("repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.Equal(t, "completed", out.Status)
	require.NotNil(t, out.CompletedAt)
}

func TestLedger_KeysAreScopedByComponent(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.PutRun("repo1", "e1", "batchdoc", RunRecord{RunID: "batch-run"}))
	require.NoError(t, l.PutRun("repo1", "e1", "docengine", RunRecord{RunID: "doc-run"}))

	batch, err := l.GetRun("repo1", "e1", "batchdoc")
	require.NoError(t, err)
	doc, err := l.GetRun("repo1", "e1", "docengine")
	require.NoError(t, err)

	require.Equal(t, "batch-run", batch.RunID)
	require.Equal(t, "doc-run", doc.RunID)
}
