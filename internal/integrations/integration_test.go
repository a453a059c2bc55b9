package integrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/vcs"
)

// Integration node idempotence: the same (source, source_type,
// external_id) always yields the same node id and path.
func TestNewNode_IdempotentByExternalID(t *testing.T) {
	ev := Event{Source: "github", SourceType: "pull_request", ExternalID: "42", Title: "Add feature"}

	n1 := NewNode("repo1", "e1", ev)
	n2 := NewNode("repo1", "e1", ev)

	require.Equal(t, n1.ID, n2.ID)
	require.Equal(t, "integration://github/pull_request/42", n1.Path)
}

func TestNewNode_DistinctExternalIDsDiffer(t *testing.T) {
	n1 := NewNode("repo1", "e1", Event{Source: "github", SourceType: "pull_request", ExternalID: "42"})
	n2 := NewNode("repo1", "e1", Event{Source: "github", SourceType: "pull_request", ExternalID: "43"})
	require.NotEqual(t, n1.ID, n2.ID)
}

func TestBuildPullRequestTree_LinksCommitsToParent(t *testing.T) {
	pr := vcs.PullRequest{Number: 7, Title: "Fix bug", Author: "alice", CreatedAt: time.Now()}
	commits := []vcs.Commit{
		{SHA: "abc123", Message: "fix", Author: "alice", Timestamp: time.Now()},
		{SHA: "def456", Message: "test", Author: "alice", Timestamp: time.Now()},
	}

	nodes, edges := BuildPullRequestTree("repo1", "e1", pr, commits)
	require.Len(t, nodes, 3)
	require.Len(t, edges, 2)

	prNode := nodes[0]
	for _, e := range edges {
		require.Equal(t, prNode.ID, e.SourceID)
	}
}
