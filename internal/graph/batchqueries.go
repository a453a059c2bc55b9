package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphforge/codegraph/internal/errs"
)

// The four statements driving the wavefront scheduler: seed (leaf) query,
// expand (processable with descriptions) query, mark-completed query, and
// check-pending-count query. The seed query's WHERE clause distinguishes
// FUNCTION leaves (no outgoing CALLS) from FILE leaves (no definitions and
// no CALLS).

const leafNodesQuery = `
MATCH (n {repo_id: $repo_id, entity_id: $entity_id})
WHERE n.processing_status IS NULL AND NOT n:DOCUMENTATION
  AND (
    (n:FUNCTION AND NOT (n)-[:CALLS]->())
    OR
    (n:FILE AND NOT (n)-[:FUNCTION_DEFINITION|CLASS_DEFINITION]->() AND NOT (n)-[:CALLS]->())
  )
WITH n LIMIT $batch_size
SET n.processing_status = 'in_progress', n.processing_run_id = $run_id
RETURN n
`

const expandFrontierQuery = `
MATCH (n {repo_id: $repo_id, entity_id: $entity_id})
WHERE n.processing_status IS NULL AND NOT n:DOCUMENTATION
OPTIONAL MATCH (n)-[:CONTAINS|FUNCTION_DEFINITION|CLASS_DEFINITION]->(hc)
WITH n, collect(DISTINCT hc) AS hier_children
WHERE ALL(c IN hier_children WHERE c.processing_status = 'completed')
OPTIONAL MATCH (n)-[:CALLS|USES]->(cc) WHERE n:FUNCTION
WITH n, hier_children, collect(DISTINCT cc) AS call_children
WHERE ALL(c IN call_children WHERE c.processing_status = 'completed')
WITH n, hier_children, call_children LIMIT $batch_size
SET n.processing_status = 'in_progress', n.processing_run_id = $run_id
OPTIONAL MATCH (hd:DOCUMENTATION)-[:DESCRIBES]->(hc2) WHERE hc2 IN hier_children
OPTIONAL MATCH (cd:DOCUMENTATION)-[:DESCRIBES]->(cc2) WHERE cc2 IN call_children
RETURN n,
       collect(DISTINCT {id: hc2.node_id, name: hc2.name, path: hc2.path, description: hd.content}) AS hier_descriptions,
       collect(DISTINCT {id: cc2.node_id, name: cc2.name, path: cc2.path, description: cd.content}) AS call_descriptions
`

const markCompletedQuery = `
UNWIND $node_ids AS node_id
MATCH (n {node_id: node_id, repo_id: $repo_id, entity_id: $entity_id})
WHERE n.processing_run_id = $run_id
SET n.processing_status = 'completed'
RETURN count(n) AS completed_count
`

const countPendingQuery = `
MATCH (n {repo_id: $repo_id, entity_id: $entity_id})
WHERE n.processing_status IS NULL AND NOT n:DOCUMENTATION
RETURN count(n) AS pending_count
`

const resetRunQuery = `
MATCH (n {repo_id: $repo_id, entity_id: $entity_id, processing_run_id: $run_id})
WHERE n.processing_status = 'in_progress'
SET n.processing_status = NULL, n.processing_run_id = NULL
`

func (b *Neo4jBackend) CallChildren(ctx context.Context, nodeID string) ([]Node, error) {
	result, err := b.exec(ctx, `
MATCH (n {node_id: $node_id})-[:CALLS|USES]->(child)
WHERE NOT (child)-[:DELETED]->() AND NOT ()-[:MODIFIED]->(child)
RETURN child
`, map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(result.Records, "child")
}

func (b *Neo4jBackend) Leaves(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]Node, error) {
	result, err := b.exec(ctx, leafNodesQuery, map[string]any{
		"repo_id": repoID, "entity_id": entityID, "run_id": runID, "batch_size": batchSize,
	})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(result.Records, "n")
}

func (b *Neo4jBackend) ExpandFrontier(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]FrontierNode, error) {
	result, err := b.exec(ctx, expandFrontierQuery, map[string]any{
		"repo_id": repoID, "entity_id": entityID, "run_id": runID, "batch_size": batchSize,
	})
	if err != nil {
		return nil, err
	}
	out := make([]FrontierNode, 0, len(result.Records))
	for _, rec := range result.Records {
		nodeVal, ok := rec.Get("n")
		if !ok {
			continue
		}
		dbNode, ok := nodeVal.(neo4j.Node)
		if !ok {
			continue
		}
		fn := FrontierNode{Node: nodeFromDBNode(dbNode)}
		if v, ok := rec.Get("hier_descriptions"); ok {
			fn.HierarchyChildren = toChildDescriptions(v)
		}
		if v, ok := rec.Get("call_descriptions"); ok {
			fn.CallChildren = toChildDescriptions(v)
		}
		out = append(out, fn)
	}
	return out, nil
}

func toChildDescriptions(v interface{}) []ChildDescription {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]ChildDescription, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		name, _ := m["name"].(string)
		path, _ := m["path"].(string)
		desc, _ := m["description"].(string)
		out = append(out, ChildDescription{ID: id, Name: name, Path: path, Description: desc})
	}
	return out
}

func (b *Neo4jBackend) MarkCompleted(ctx context.Context, repoID, entityID, runID string, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	_, err := b.exec(ctx, markCompletedQuery, map[string]any{
		"node_ids": nodeIDs, "repo_id": repoID, "entity_id": entityID, "run_id": runID,
	})
	return err
}

func (b *Neo4jBackend) CountPending(ctx context.Context, repoID, entityID string) (int, error) {
	result, err := b.exec(ctx, countPendingQuery, map[string]any{"repo_id": repoID, "entity_id": entityID})
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	v, ok := result.Records[0].Get("pending_count")
	if !ok {
		return 0, errs.InternalErrorf("count_pending: missing pending_count column")
	}
	n, _ := toInt(v)
	return n, nil
}

func (b *Neo4jBackend) ResetRun(ctx context.Context, repoID, entityID, runID string) error {
	_, err := b.exec(ctx, resetRunQuery, map[string]any{
		"repo_id": repoID, "entity_id": entityID, "run_id": runID,
	})
	return err
}
