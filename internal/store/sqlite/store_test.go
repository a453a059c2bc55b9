package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, "run1", "repo1", "e1", "batchdoc"))

	none, err := s.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.Nil(t, none, "no completed run yet")

	require.NoError(t, s.CompleteRun(ctx, "run1", false))

	run, err := s.LastCompletedRun(ctx, "repo1", "e1", "batchdoc")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "run1", run.RunID)
	require.Equal(t, "completed", run.Status)
}

func TestStore_DeadLetterQueue_RetryCountBumpsOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.EnqueueFailure(ctx, "repo1", "e1", "node1", errors.New("llm timeout"), nil)
	require.NoError(t, err)
	err = s.EnqueueFailure(ctx, "repo1", "e1", "node1", errors.New("llm timeout again"), nil)
	require.NoError(t, err)

	entries, err := s.PendingRetries(ctx, "repo1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "repeated failures for the same node consolidate into one row")
	require.Equal(t, 1, entries[0].RetryCount)
	require.Equal(t, "llm timeout again", entries[0].ErrorMessage)
}

func TestStore_DeadLetterQueue_ExcludesExhaustedRetries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.EnqueueFailure(ctx, "repo1", "e1", "flaky", errors.New("fail"), nil))
	}

	entries, err := s.PendingRetries(ctx, "repo1", 2)
	require.NoError(t, err)
	require.Empty(t, entries, "retry_count 2 excluded by maxRetries=2")
}
