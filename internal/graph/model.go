// Package graph implements the code knowledge graph's data model (node/edge
// schema, content-addressed identity) and the store adapter that persists it.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NodeLabel is one of the closed set of node kinds the graph recognizes.
type NodeLabel string

const (
	LabelFile          NodeLabel = "FILE"
	LabelFolder        NodeLabel = "FOLDER"
	LabelClass         NodeLabel = "CLASS"
	LabelFunction      NodeLabel = "FUNCTION"
	LabelDocumentation NodeLabel = "DOCUMENTATION"
	LabelIntegration   NodeLabel = "INTEGRATION"
)

// EdgeType is one of the closed set of edge kinds the graph recognizes.
type EdgeType string

const (
	EdgeContains           EdgeType = "CONTAINS"
	EdgeFunctionDefinition EdgeType = "FUNCTION_DEFINITION"
	EdgeClassDefinition    EdgeType = "CLASS_DEFINITION"
	EdgeCalls              EdgeType = "CALLS"
	EdgeUses               EdgeType = "USES"
	EdgeImports            EdgeType = "IMPORTS"
	EdgeInherits           EdgeType = "INHERITS"
	EdgeDescribes          EdgeType = "DESCRIBES"
	EdgeDeleted            EdgeType = "DELETED"
	EdgeModified           EdgeType = "MODIFIED"
)

// BaseDiffIdentifier is the overlay tag for the base graph, as opposed to an
// opaque PR-overlay tag used to stage a diff's nodes alongside it.
const BaseDiffIdentifier = "0"

// DeclarationRange locates a symbol's declaration within its file, used as
// part of a symbol node's identity so two declarations of the same name at
// different positions never collide.
type DeclarationRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Node is a single vertex in the code graph. Path is the URI-like locator
// (file:// for code, integration:// for external events); NodePath is the
// repository-relative path prefixed with "/<environment>/<diff_identifier>/",
// the form identity hashing and duplicate collapsing operate on.
type Node struct {
	ID             string                 `json:"id"`
	Label          NodeLabel              `json:"label"`
	RepoID         string                 `json:"repo_id"`
	EntityID       string                 `json:"entity_id"`
	Path           string                 `json:"path"`
	NodePath       string                 `json:"node_path"`
	Name           string                 `json:"name"`
	DiffIdentifier string                 `json:"diff_identifier"`
	Declaration    *DeclarationRange      `json:"declaration,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
}

// Edge is a single directed, typed relationship between two nodes.
type Edge struct {
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	Type       EdgeType               `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// ComputeNodeID derives a node's content-addressed identity from the fields
// an identical declaration would always share: its layer (label), its label,
// its normalized node_path, and -- for symbol-level nodes -- its declaration
// range. The environment/diff prefix is stripped before hashing, so the
// same file in the base graph and in a PR overlay carries the same node_id
// and the two copies are told apart by diff_identifier alone. The encoding
// sorts field names so the hash is stable across languages and
// map-iteration order, and is independent of any database-assigned id.
func ComputeNodeID(label NodeLabel, nodePath string, decl *DeclarationRange) string {
	fields := map[string]interface{}{
		"layer":     layerForLabel(label),
		"label":     string(label),
		"node_path": NormalizeNodePath(nodePath),
	}
	if decl != nil {
		fields["start_line"] = decl.StartLine
		fields["end_line"] = decl.EndLine
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make([]byte, 0, 128)
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		canonical = append(canonical, []byte(k)...)
		canonical = append(canonical, ':')
		canonical = append(canonical, v...)
		canonical = append(canonical, ';')
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:32]
}

// layerForLabel buckets labels into the structural/symbol/derived layers
// used purely to keep identical paths at different layers from colliding
// (e.g. a FOLDER and a FILE that happen to share a path are never possible,
// but a FILE and its sole top-level FUNCTION sharing a path prefix must not
// hash to the same id).
func layerForLabel(label NodeLabel) string {
	switch label {
	case LabelFile, LabelFolder:
		return "structure"
	case LabelClass, LabelFunction:
		return "symbol"
	case LabelDocumentation:
		return "derived"
	case LabelIntegration:
		return "integration"
	default:
		return "auxiliary"
	}
}

// DefaultEnvironment is the environment component node paths carry when
// the deployment doesn't name one.
const DefaultEnvironment = "main"

// Scope carries the coordinates every node built during one ingestion run
// shares: the tenancy keys, the logical environment, and the diff overlay
// being written ("0" for the base graph, an opaque tag for a PR overlay).
type Scope struct {
	RepoID         string
	EntityID       string
	Environment    string
	DiffIdentifier string
}

func (s Scope) environment() string {
	if s.Environment == "" {
		return DefaultEnvironment
	}
	return s.Environment
}

func (s Scope) diff() string {
	if s.DiffIdentifier == "" {
		return BaseDiffIdentifier
	}
	return s.DiffIdentifier
}

// NodePathFor builds the "/<environment>/<diff_identifier>/<rel>" form a
// node_path carries for a repository-relative path.
func (s Scope) NodePathFor(relPath string) string {
	return "/" + s.environment() + "/" + s.diff() + "/" + strings.TrimPrefix(relPath, "/")
}

// FileNode builds a FILE node for a repository-relative path.
func (s Scope) FileNode(relPath string) Node {
	nodePath := s.NodePathFor(relPath)
	return Node{
		ID:             ComputeNodeID(LabelFile, nodePath, nil),
		Label:          LabelFile,
		RepoID:         s.RepoID,
		EntityID:       s.EntityID,
		Path:           "file://" + relPath,
		NodePath:       nodePath,
		Name:           relPath,
		DiffIdentifier: s.diff(),
	}
}

// FolderNode builds a FOLDER node for a repository-relative directory path.
func (s Scope) FolderNode(relPath, name string) Node {
	nodePath := s.NodePathFor(relPath)
	return Node{
		ID:             ComputeNodeID(LabelFolder, nodePath, nil),
		Label:          LabelFolder,
		RepoID:         s.RepoID,
		EntityID:       s.EntityID,
		Path:           "file://" + relPath,
		NodePath:       nodePath,
		Name:           name,
		DiffIdentifier: s.diff(),
	}
}

// SymbolNode builds a CLASS or FUNCTION node, keyed by node_path plus
// declaration range so that overloads and nested definitions get distinct
// identities.
func (s Scope) SymbolNode(label NodeLabel, relPath, name string, decl DeclarationRange) Node {
	nodePath := s.NodePathFor(relPath)
	return Node{
		ID:             ComputeNodeID(label, nodePath, &decl),
		Label:          label,
		RepoID:         s.RepoID,
		EntityID:       s.EntityID,
		Path:           "file://" + relPath,
		NodePath:       nodePath,
		Name:           name,
		DiffIdentifier: s.diff(),
		Declaration:    &decl,
	}
}

// NewDocumentationNode builds a DOCUMENTATION node describing describedID.
// Its content-addressed identity is keyed by the described node's id, so
// re-documenting the same node overwrites rather than duplicates.
func NewDocumentationNode(repoID, entityID, describedID, text, templateName string) Node {
	path := DerivedPath("doc", describedID)
	return Node{
		ID:             ComputeNodeID(LabelDocumentation, path, nil),
		Label:          LabelDocumentation,
		RepoID:         repoID,
		EntityID:       entityID,
		Path:           path,
		NodePath:       path,
		Name:           describedID,
		DiffIdentifier: BaseDiffIdentifier,
		Properties: map[string]interface{}{
			"content":  text,
			"template": templateName,
		},
	}
}

// DerivedPath returns the synthetic path string under which this node would
// be addressed if it needs one constructed rather than supplied (documentation
// and integration nodes, whose "path" is derived rather than a filesystem path).
func DerivedPath(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)@%s", n.Label, n.Name, n.Path)
}
