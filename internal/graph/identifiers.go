package graph

import "regexp"

// Labels and relationship types cannot be passed as query parameters, so
// the few places that splice one into a statement (upsertNodeBatch,
// upsertEdgeBatch, FindByName) validate it first. Everything else goes
// through parameters.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// nodeIDPattern is the shape every node_id must have: exactly 32 lowercase
// hex characters.
var nodeIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsValidNodeID reports whether s is a well-formed content-addressed node
// id. Validators reject any other shape.
func IsValidNodeID(s string) bool {
	return nodeIDPattern.MatchString(s)
}
