package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphforge/codegraph/internal/errs"
)

// Neo4jBackend implements Backend against a Neo4j cluster: a bounded
// connection pool, an acquisition timeout so a saturated pool fails fast
// rather than hanging a documentation worker indefinitely, and TCP
// keepalive.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// connectAttempts bounds how many times connectivity verification is
// retried at startup, with exponential backoff between attempts.
const connectAttempts = 3

// NewNeo4jBackend dials Neo4j and verifies connectivity before returning,
// so a misconfigured deployment fails at startup rather than on first
// query. Verification retries with exponential backoff; failures after the
// last attempt surface to the caller.
func NewNeo4jBackend(ctx context.Context, uri, username, password, database string) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 50
			c.ConnectionAcquisitionTimeout = 60 * time.Second
			c.MaxConnectionLifetime = 1 * time.Hour
			c.SocketConnectTimeout = 5 * time.Second
			c.SocketKeepalive = true
		})
	if err != nil {
		return nil, errs.DatabaseError(err, "failed to create neo4j driver")
	}

	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err = driver.VerifyConnectivity(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			driver.Close(ctx)
			return nil, errs.DatabaseError(err, "failed to verify neo4j connectivity").
				WithContext("attempts", attempt)
		}
		slog.Default().Warn("neo4j connectivity check failed, retrying",
			"attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			driver.Close(ctx)
			return nil, errs.DatabaseError(ctx.Err(), "neo4j connect cancelled")
		}
		backoff *= 2
	}

	if database == "" {
		database = "neo4j"
	}
	return &Neo4jBackend{driver: driver, database: database, logger: slog.Default().With("component", "graph.neo4j")}, nil
}

func (b *Neo4jBackend) exec(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, b.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(b.database))
	if err != nil {
		b.logger.Error("query failed", "error", err, "cypher", cypher)
		return nil, errs.DatabaseErrorf(err, "query failed").WithContext("cypher", cypher)
	}
	return result, nil
}

// UpsertNodes batches nodes by label and issues one UNWIND+MERGE per batch,
// idempotent on (repo_id, entity_id, node_id, diff_identifier).
func (b *Neo4jBackend) UpsertNodes(ctx context.Context, nodes []Node) error {
	if len(nodes) == 0 {
		return nil
	}
	byLabel := make(map[NodeLabel][]Node)
	for _, n := range nodes {
		byLabel[n.Label] = append(byLabel[n.Label], n)
	}
	cfg := DefaultBatchConfig()
	for label, group := range byLabel {
		if !isValidIdentifier(string(label)) {
			return errs.ValidationErrorf("invalid node label %q", label)
		}
		for start := 0; start < len(group); start += cfg.NodeBatchSize {
			end := start + cfg.NodeBatchSize
			if end > len(group) {
				end = len(group)
			}
			if err := b.upsertNodeBatch(ctx, label, group[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Neo4jBackend) upsertNodeBatch(ctx context.Context, label NodeLabel, nodes []Node) error {
	rows := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		row := map[string]any{
			"node_id":         n.ID,
			"repo_id":         n.RepoID,
			"entity_id":       n.EntityID,
			"path":            n.Path,
			"node_path":       n.NodePath,
			"name":            n.Name,
			"diff_identifier": n.DiffIdentifier,
		}
		if n.Declaration != nil {
			row["start_line"] = n.Declaration.StartLine
			row["end_line"] = n.Declaration.EndLine
		}
		for k, v := range n.Properties {
			row[k] = v
		}
		rows[i] = row
	}

	cypher := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {repo_id: row.repo_id, entity_id: row.entity_id, node_id: row.node_id, diff_identifier: row.diff_identifier})
SET n += row
`, label)

	_, err := b.exec(ctx, cypher, map[string]any{"rows": rows})
	return err
}

// UpsertEdges batches edges by type and issues one UNWIND+MERGE per batch,
// idempotent on (source_id, target_id, type).
func (b *Neo4jBackend) UpsertEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	byType := make(map[EdgeType][]Edge)
	for _, e := range edges {
		byType[e.Type] = append(byType[e.Type], e)
	}
	cfg := DefaultBatchConfig()
	for edgeType, group := range byType {
		if !isValidIdentifier(string(edgeType)) {
			return errs.ValidationErrorf("invalid edge type %q", edgeType)
		}
		for start := 0; start < len(group); start += cfg.EdgeBatchSize {
			end := start + cfg.EdgeBatchSize
			if end > len(group) {
				end = len(group)
			}
			if err := b.upsertEdgeBatch(ctx, edgeType, group[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Neo4jBackend) upsertEdgeBatch(ctx context.Context, edgeType EdgeType, edges []Edge) error {
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		row := map[string]any{"source_id": e.SourceID, "target_id": e.TargetID}
		for k, v := range e.Properties {
			row[k] = v
		}
		rows[i] = row
	}

	cypher := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (src {node_id: row.source_id})
MATCH (dst {node_id: row.target_id})
MERGE (src)-[r:%s]->(dst)
SET r += row
`, edgeType)

	_, err := b.exec(ctx, cypher, map[string]any{"rows": rows})
	return err
}

// MarkDeleted attaches a DELETED tombstone edge from the node to a
// DeletionMarker node; queries exclude any node with an outgoing DELETED
// edge (see FindByName/FindByPath).
func (b *Neo4jBackend) MarkDeleted(ctx context.Context, nodeID string) error {
	_, err := b.exec(ctx, `
MATCH (n {node_id: $node_id})
MERGE (tomb:DeletionMarker {node_id: $node_id, marked_at: $marked_at})
MERGE (n)-[:DELETED]->(tomb)
`, map[string]any{"node_id": nodeID, "marked_at": uuid.New().String()})
	return err
}

// MarkModified records that the node version (oldID, oldDiff) was
// superseded by (newID, newDiff), attaching a MODIFIED tombstone edge from
// the superseding version to the superseded one. Queries exclude any node
// with an incoming MODIFIED edge, so the old version stops appearing in
// search results. The diff identifiers are part of the match because a
// base node and its overlay copy share the same content-addressed node_id.
func (b *Neo4jBackend) MarkModified(ctx context.Context, oldID, oldDiff, newID, newDiff string) error {
	_, err := b.exec(ctx, `
MATCH (old {node_id: $old_id, diff_identifier: $old_diff})
MATCH (new {node_id: $new_id, diff_identifier: $new_diff})
MERGE (new)-[:MODIFIED]->(old)
`, map[string]any{"old_id": oldID, "old_diff": oldDiff, "new_id": newID, "new_diff": newDiff})
	return err
}

// DeleteByPath hard-deletes every node at an exact path, detaching all of
// its relationships. Used only for destructive re-ingestion.
func (b *Neo4jBackend) DeleteByPath(ctx context.Context, path string) error {
	_, err := b.exec(ctx, `MATCH (n {path: $path}) DETACH DELETE n`, map[string]any{"path": path})
	return err
}

func (b *Neo4jBackend) GetNode(ctx context.Context, nodeID string) (Node, error) {
	result, err := b.exec(ctx, `MATCH (n {node_id: $node_id}) RETURN n LIMIT 1`, map[string]any{"node_id": nodeID})
	if err != nil {
		return Node{}, err
	}
	if len(result.Records) == 0 {
		return Node{}, errs.New(errs.TypeValidation, errs.SeverityLow, "node not found").WithContext("node_id", nodeID)
	}
	return recordToNode(result.Records[0])
}

func (b *Neo4jBackend) Children(ctx context.Context, nodeID string) ([]Node, error) {
	result, err := b.exec(ctx, `
MATCH (n {node_id: $node_id})-[:CONTAINS|FUNCTION_DEFINITION|CLASS_DEFINITION]->(child)
WHERE NOT (child)-[:DELETED]->() AND NOT ()-[:MODIFIED]->(child)
RETURN child
`, map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, err
	}
	return recordsToNodes(result.Records, "child")
}

func (b *Neo4jBackend) Query(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	result, err := b.exec(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(result.Records))
	for i, rec := range result.Records {
		m := make(map[string]interface{}, len(rec.Keys))
		for _, k := range rec.Keys {
			v, _ := rec.Get(k)
			m[k] = v
		}
		out[i] = m
	}
	return out, nil
}

func (b *Neo4jBackend) Close() error {
	return b.driver.Close(context.Background())
}

func recordToNode(rec *neo4j.Record) (Node, error) {
	v, ok := rec.Get("n")
	if !ok {
		return Node{}, errs.InternalErrorf("record missing node")
	}
	dbNode, ok := v.(neo4j.Node)
	if !ok {
		return Node{}, errs.InternalErrorf("record value is not a node")
	}
	return nodeFromDBNode(dbNode), nil
}

func recordsToNodes(records []*neo4j.Record, key string) ([]Node, error) {
	out := make([]Node, 0, len(records))
	for _, rec := range records {
		v, ok := rec.Get(key)
		if !ok {
			continue
		}
		dbNode, ok := v.(neo4j.Node)
		if !ok {
			continue
		}
		out = append(out, nodeFromDBNode(dbNode))
	}
	return out, nil
}

func nodeFromDBNode(dbNode neo4j.Node) Node {
	n := nodeFromProps(dbNode.Props)
	if len(dbNode.Labels) > 0 {
		n.Label = NodeLabel(dbNode.Labels[0])
	}
	return n
}

func nodeFromProps(props map[string]interface{}) Node {
	n := Node{Properties: map[string]interface{}{}}
	for k, v := range props {
		switch k {
		case "node_id":
			n.ID, _ = v.(string)
		case "repo_id":
			n.RepoID, _ = v.(string)
		case "entity_id":
			n.EntityID, _ = v.(string)
		case "path":
			n.Path, _ = v.(string)
		case "node_path":
			n.NodePath, _ = v.(string)
		case "name":
			n.Name, _ = v.(string)
		case "diff_identifier":
			n.DiffIdentifier, _ = v.(string)
		default:
			n.Properties[k] = v
		}
	}
	return n
}
