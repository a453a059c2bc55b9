package integrations

import (
	"fmt"
	"strconv"

	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/vcs"
)

// FromPullRequest builds a top-level integration node for a merged or open
// pull request.
func FromPullRequest(repoID, entityID string, pr vcs.PullRequest) graph.Node {
	return NewNode(repoID, entityID, Event{
		Source:     "github",
		SourceType: "pull_request",
		ExternalID: strconv.Itoa(pr.Number),
		Title:      pr.Title,
		Content:    pr.Body,
		Timestamp:  pr.CreatedAt,
		Author:     pr.Author,
		Level:      LevelTop,
		Metadata: map[string]interface{}{
			"state":       pr.State,
			"base_branch": pr.BaseBranch,
			"head_branch": pr.HeadBranch,
		},
	})
}

// FromCommit builds a child integration node for a single commit.
func FromCommit(repoID, entityID string, c vcs.Commit) graph.Node {
	return NewNode(repoID, entityID, Event{
		Source:     "github",
		SourceType: "commit",
		ExternalID: c.SHA,
		Title:      c.Message,
		Content:    c.Message,
		Timestamp:  c.Timestamp,
		Author:     c.Author,
		Level:      LevelChild,
	})
}

// BuildPullRequestTree builds a pull request's integration node, its
// commits' integration nodes, and the CONTAINS edges linking the PR to each
// commit, ready for graph.Backend.UpsertNodes /
// UpsertEdges.
func BuildPullRequestTree(repoID, entityID string, pr vcs.PullRequest, commits []vcs.Commit) ([]graph.Node, []graph.Edge) {
	prNode := FromPullRequest(repoID, entityID, pr)
	nodes := []graph.Node{prNode}
	var edges []graph.Edge

	for _, c := range commits {
		commitNode := FromCommit(repoID, entityID, c)
		nodes = append(nodes, commitNode)
		edges = append(edges, ContainsEdge(prNode.ID, commitNode.ID))
	}
	return nodes, edges
}

// FromBlameCommit builds a commit integration node from a vcs.BlameCommit,
// the shape the blame engine produces rather than the plain commit
// listing, carrying the PR association blame already resolved.
func FromBlameCommit(repoID, entityID string, bc vcs.BlameCommit) graph.Node {
	meta := map[string]interface{}{
		"additions": bc.Additions,
		"deletions": bc.Deletions,
	}
	if bc.PullRequest != nil {
		meta["pull_request_number"] = bc.PullRequest.Number
		meta["pull_request_url"] = bc.PullRequest.URL
	}
	return NewNode(repoID, entityID, Event{
		Source:     "github",
		SourceType: "commit",
		ExternalID: bc.SHA,
		Title:      fmt.Sprintf("%.60s", bc.Message),
		Content:    bc.Message,
		Timestamp:  bc.Timestamp,
		Author:     bc.Author,
		URL:        bc.URL,
		Level:      LevelChild,
		Metadata:   meta,
	})
}
