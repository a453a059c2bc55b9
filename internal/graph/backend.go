package graph

import "context"

// Backend is the store-agnostic contract the rest of the engine programs
// against. Neo4j is the concrete implementation shipped here, but no
// component outside this package may assume Cypher or a particular vendor.
type Backend interface {
	// UpsertNodes idempotently creates or updates nodes, batched internally.
	// Idempotency key: (repo_id, entity_id, node_id).
	UpsertNodes(ctx context.Context, nodes []Node) error

	// UpsertEdges idempotently creates or updates edges, batched internally.
	// Idempotency key: (source_id, target_id, type).
	UpsertEdges(ctx context.Context, edges []Edge) error

	// MarkDeleted soft-deletes a node by attaching a DELETED tombstone edge
	// rather than removing it, preserving history for blame/provenance.
	MarkDeleted(ctx context.Context, nodeID string) error

	// MarkModified records that the node version (oldID, oldDiff) was
	// superseded by (newID, newDiff) via a MODIFIED tombstone edge on the
	// old version, removing it from search results. Diff identifiers
	// qualify the match because a base node and its overlay copy share one
	// content-addressed node_id.
	MarkModified(ctx context.Context, oldID, oldDiff, newID, newDiff string) error

	// DeleteByPath hard-deletes every node at the given path and detaches
	// its edges. Used for destructive re-ingestion, not normal lifecycle.
	DeleteByPath(ctx context.Context, path string) error

	// FindByName returns nodes matching name and label, excluding tombstoned
	// nodes, preferring the given diff identifier over the base graph when
	// both exist at the same normalized path. Returns errs.Overflow if the
	// match count exceeds the name+type search cap.
	FindByName(ctx context.Context, name string, label NodeLabel, diffIdentifier string) ([]Node, error)

	// FindByPath returns nodes whose path matches the given prefix, same
	// tombstone/diff-overlay rules as FindByName. Returns errs.Overflow if
	// the match count exceeds the path search cap.
	FindByPath(ctx context.Context, pathPrefix string, diffIdentifier string) ([]Node, error)

	// FindByText performs a full-text search over node content/description
	// properties. Returns errs.Overflow if the match count exceeds the text
	// search cap.
	FindByText(ctx context.Context, text string, diffIdentifier string) ([]Node, error)

	// GetNode fetches a single node by id.
	GetNode(ctx context.Context, nodeID string) (Node, error)

	// Children returns nodes reached from nodeID by CONTAINS,
	// FUNCTION_DEFINITION, or CLASS_DEFINITION edges.
	Children(ctx context.Context, nodeID string) ([]Node, error)

	// CallChildren returns nodes reached from nodeID by CALLS or USES edges,
	// the call-graph children the documentation engine folds into a
	// function node's child set alongside its hierarchy children.
	CallChildren(ctx context.Context, nodeID string) ([]Node, error)

	// Leaves returns nodes matching the batch scheduler's leaf
	// definition that have no processing_status yet: FUNCTION nodes with no
	// outgoing CALLS, or FILE nodes with no *_DEFINITION and no CALLS edges.
	// Matching nodes are atomically stamped in_progress under runID and
	// returned, capped at batchSize.
	Leaves(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]Node, error)

	// ExpandFrontier returns nodes whose hierarchy (and, for functions, call)
	// children are all completed, along with each child's documentation
	// text, atomically stamping the returned nodes in_progress under runID.
	ExpandFrontier(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]FrontierNode, error)

	// MarkCompleted flips processing_status to "completed" for every node id
	// in nodeIDs that is stamped with runID.
	MarkCompleted(ctx context.Context, repoID, entityID, runID string, nodeIDs []string) error

	// CountPending returns the number of non-DOCUMENTATION nodes in
	// (repoID, entityID) that have no processing_status yet.
	CountPending(ctx context.Context, repoID, entityID string) (int, error)

	// ResetRun clears processing_status/processing_run_id for every node
	// stamped in_progress under runID, the hook the batch scheduler uses
	// to recover from a crashed run.
	ResetRun(ctx context.Context, repoID, entityID, runID string) error

	// Query runs an arbitrary parameterized Cypher statement, for callers
	// that need store-native semantics this interface doesn't otherwise
	// expose.
	Query(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error)

	Close() error
}

// Search result caps: non-fatal "refine your query" overflow once
// exceeded.
const (
	TextSearchCap     = 20
	PathSearchCap     = 20
	NameTypeSearchCap = 15
)

// ChildDescription is a child node's documentation as seen from its
// parent's expand-frontier query: just enough to build the
// "parent with context" prompt without a second round trip per child.
type ChildDescription struct {
	ID          string
	Name        string
	Label       NodeLabel
	Path        string
	Description string
}

// FrontierNode is a node the wavefront scheduler has determined is
// processable this round, paired with its already-completed children's
// descriptions.
type FrontierNode struct {
	Node              Node
	HierarchyChildren []ChildDescription
	CallChildren      []ChildDescription
}
