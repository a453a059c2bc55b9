package rundb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/config"
)

func TestOpen_SQLiteBackend_RunLifecycleAndDLQ(t *testing.T) {
	cfg := config.StoreConfig{StatusBackend: "sqlite", SQLitePath: ":memory:"}
	ledger, dlq, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, dlq, "sqlite backend exposes a DeadLetterStore")
	t.Cleanup(func() { ledger.Close() })

	ctx := context.Background()
	require.NoError(t, ledger.StartRun(ctx, "run1", "repo1", "e1", "batchdoc"))

	none, err := ledger.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, ledger.CompleteRun(ctx, "run1", "repo1", "e1", "batchdoc", false))

	run, err := ledger.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "run1", run.RunID)

	require.NoError(t, dlq.EnqueueFailure(ctx, "repo1", "e1", "node1", errors.New("boom"), nil))
	entries, err := dlq.PendingRetries(ctx, "repo1", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOpen_BoltBackend_RunLifecycleHasNoDeadLetterStore(t *testing.T) {
	cfg := config.StoreConfig{StatusBackend: "bolt", BoltPath: filepath.Join(t.TempDir(), "runs.db")}
	ledger, dlq, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.Nil(t, dlq, "bolt fallback carries no dead-letter table")
	t.Cleanup(func() { ledger.Close() })

	ctx := context.Background()
	require.NoError(t, ledger.StartRun(ctx, "run1", "repo1", "e1", "batchdoc"))

	none, err := ledger.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.Nil(t, none, "run still in progress, not completed")

	require.NoError(t, ledger.CompleteRun(ctx, "run1", "repo1", "e1", "batchdoc", false))

	run, err := ledger.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "run1", run.RunID)
}

func TestOpen_UnknownBackend_Errors(t *testing.T) {
	_, _, err := Open(context.Background(), config.StoreConfig{StatusBackend: "carrier-pigeon"})
	require.Error(t, err)
}

func TestOpen_DefaultsToBoltWhenUnset(t *testing.T) {
	cfg := config.StoreConfig{BoltPath: filepath.Join(t.TempDir(), "runs.db")}
	ledger, dlq, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.Nil(t, dlq)
	require.NotNil(t, ledger)
	require.NoError(t, ledger.Close())
}
