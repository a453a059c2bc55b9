// Package integrations implements the integration-node model: a
// source-agnostic container for external events -- commits, pull requests,
// incidents, metrics -- that attaches version-control and operational
// provenance to the code graph without the graph schema knowing about any
// particular source.
package integrations

import (
	"time"

	"github.com/graphforge/codegraph/internal/graph"
)

// Level distinguishes tiers in an integration node's parent-child tree
// (e.g. a pull request containing its commits).
type Level string

const (
	LevelTop   Level = "top"   // pull request, alert, standalone metric
	LevelChild Level = "child" // commit under a pull request
)

// Event is the source-agnostic shape a vcs.Provider or alerting source
// produces and this package turns into a graph.Node.
type Event struct {
	Source     string // "github", "pagerduty", ...
	SourceType string // "pull_request", "commit", "error", "metric", ...
	ExternalID string
	Title      string
	Content    string
	Timestamp  time.Time
	Author     string
	URL        string
	Metadata   map[string]interface{}
	Level      Level
}

// NewNode builds an INTEGRATION node for ev. Creation is idempotent by
// construction: the node's content-addressed id is derived purely from
// its synthetic path, so two calls with the same (source, source_type,
// external_id) always produce the identical id and a store upsert merges
// them into one node rather than duplicating it.
func NewNode(repoID, entityID string, ev Event) graph.Node {
	path := Path(ev.Source, ev.SourceType, ev.ExternalID)
	props := map[string]interface{}{
		"source":      ev.Source,
		"source_type": ev.SourceType,
		"external_id": ev.ExternalID,
		"title":       ev.Title,
		"content":     ev.Content,
		"timestamp":   ev.Timestamp,
		"author":      ev.Author,
		"url":         ev.URL,
		"level":       string(ev.Level),
	}
	for k, v := range ev.Metadata {
		props[k] = v
	}

	return graph.Node{
		ID:             graph.ComputeNodeID(graph.LabelIntegration, path, nil),
		Label:          graph.LabelIntegration,
		RepoID:         repoID,
		EntityID:       entityID,
		Path:           path,
		NodePath:       path,
		Name:           ev.Title,
		DiffIdentifier: graph.BaseDiffIdentifier,
		Properties:     props,
	}
}

// Path builds the synthetic integration:// locator.
func Path(source, sourceType, externalID string) string {
	return graph.DerivedPath("integration:/", source, sourceType, externalID)
}

// ContainsEdge links a parent integration node (e.g. a pull request) to a
// child it contains (e.g. one of its commits), via CONTAINS -- the same
// edge type the structural hierarchy uses, reused here for the
// integration-node tree.
func ContainsEdge(parentID, childID string) graph.Edge {
	return graph.Edge{SourceID: parentID, TargetID: childID, Type: graph.EdgeContains}
}
