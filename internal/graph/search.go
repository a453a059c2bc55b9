package graph

import (
	"context"
	"strconv"

	"github.com/graphforge/codegraph/internal/errs"
)

// searchClause is the WHERE fragment shared by every search entry point:
// prefer the active diff identifier over the base graph at a given path,
// and exclude any node with a DELETED or MODIFIED tombstone.
const searchClause = `
  (n.diff_identifier = $diff_identifier OR n.diff_identifier = '0')
  AND NOT (n)-[:DELETED]->()
  AND NOT ()-[:MODIFIED]->(n)
`

// FindByName looks up nodes by exact name and label. If more than
// NameTypeSearchCap nodes match, it returns the capped set of nodes found so
// far plus errs.Overflow so the caller can react to "refine your query"
// without losing the matches already gathered.
func (b *Neo4jBackend) FindByName(ctx context.Context, name string, label NodeLabel, diffIdentifier string) ([]Node, error) {
	if diffIdentifier == "" {
		diffIdentifier = BaseDiffIdentifier
	}
	if !isValidIdentifier(string(label)) {
		return nil, errs.ValidationErrorf("invalid label %q", label)
	}
	cypher := `
MATCH (n:` + string(label) + ` {name: $name})
WHERE ` + searchClause + `
WITH n, n.path AS path ORDER BY path
RETURN DISTINCT n
LIMIT ` + limitPlusOne(NameTypeSearchCap)

	return b.searchCapped(ctx, cypher, map[string]any{"name": name, "diff_identifier": diffIdentifier}, diffIdentifier, NameTypeSearchCap, "find_by_name")
}

// FindByPath looks up nodes whose path starts with pathPrefix, applying the
// same diff-overlay and tombstone rules as FindByName.
func (b *Neo4jBackend) FindByPath(ctx context.Context, pathPrefix string, diffIdentifier string) ([]Node, error) {
	if diffIdentifier == "" {
		diffIdentifier = BaseDiffIdentifier
	}
	cypher := `
MATCH (n)
WHERE n.path STARTS WITH $prefix
  AND ` + searchClause + `
WITH n, n.path AS path ORDER BY path
RETURN DISTINCT n
LIMIT ` + limitPlusOne(PathSearchCap)

	return b.searchCapped(ctx, cypher, map[string]any{"prefix": pathPrefix, "diff_identifier": diffIdentifier}, diffIdentifier, PathSearchCap, "find_by_path")
}

// FindByText performs a full-text search over a node's description/content
// properties (populated by the documentation engine), applying the same
// diff-overlay and tombstone rules.
func (b *Neo4jBackend) FindByText(ctx context.Context, text string, diffIdentifier string) ([]Node, error) {
	if diffIdentifier == "" {
		diffIdentifier = BaseDiffIdentifier
	}
	cypher := `
MATCH (n)
WHERE (toLower(n.content) CONTAINS toLower($text) OR toLower(n.description) CONTAINS toLower($text))
  AND ` + searchClause + `
WITH n, n.path AS path ORDER BY path
RETURN DISTINCT n
LIMIT ` + limitPlusOne(TextSearchCap)

	return b.searchCapped(ctx, cypher, map[string]any{"text": text, "diff_identifier": diffIdentifier}, diffIdentifier, TextSearchCap, "find_by_text")
}

// searchCapped fetches cap+1 rows, collapses diff-overlay duplicates down
// to one node per normalized path, and -- if the raw row count exceeded the
// cap -- returns the first cap collapsed nodes alongside the overflow
// sentinel. Otherwise it returns exactly what matched with no error.
func (b *Neo4jBackend) searchCapped(ctx context.Context, cypher string, params map[string]any, diffIdentifier string, cap int, op string) ([]Node, error) {
	result, err := b.exec(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	nodes, err := recordsToNodes(result.Records, "n")
	if err != nil {
		return nil, err
	}
	overflowed := len(nodes) > cap
	nodes = CollapseByNormalizedPath(nodes, diffIdentifier)
	if overflowed {
		if len(nodes) > cap {
			nodes = nodes[:cap]
		}
		return nodes, errs.Overflow(op, cap)
	}
	return nodes, nil
}

// limitPlusOne formats a Cypher LIMIT literal one larger than the cap so the
// query result tells us whether the true match count exceeded it, without a
// second COUNT(*) round trip.
func limitPlusOne(cap int) string {
	return strconv.Itoa(cap + 1)
}
