package graph

import "strings"

// CodeNodeDescriptor is the read-only projection of a code node the blame
// engine consumes. It never carries the full Properties map -- only the
// fields blame attribution needs.
type CodeNodeDescriptor struct {
	ID        string
	Name      string
	Label     NodeLabel
	Path      string
	StartLine int
	EndLine   int
}

// ToDescriptor projects a full Node down to its blame-relevant fields.
func ToDescriptor(n Node) CodeNodeDescriptor {
	d := CodeNodeDescriptor{ID: n.ID, Name: n.Name, Label: n.Label, Path: n.Path}
	if n.Declaration != nil {
		d.StartLine = n.Declaration.StartLine
		d.EndLine = n.Declaration.EndLine
	} else {
		if v, ok := n.Properties["start_line"]; ok {
			d.StartLine, _ = toInt(v)
		}
		if v, ok := n.Properties["end_line"]; ok {
			d.EndLine, _ = toInt(v)
		}
	}
	return d
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// NormalizeNodePath strips the "/<environment>/<diff_identifier>/" prefix a
// node_path carries before two paths are compared for duplicate collapsing
// or identity hashing. Paths not in that shape (derived doc/integration
// paths, already-relative paths) are returned unchanged.
func NormalizeNodePath(nodePath string) string {
	if !strings.HasPrefix(nodePath, "/") {
		return nodePath
	}
	parts := strings.SplitN(nodePath[1:], "/", 3)
	if len(parts) < 3 {
		return nodePath
	}
	return parts[2]
}

// CollapseByNormalizedPath keeps one node per normalized path: when two
// nodes share a normalized path but differ in diff_identifier, keep only
// the one whose diff_identifier matches activeDiffIdentifier, preferring
// the overlay over the base graph. When neither matches (a stale overlay
// from a different PR, say), the base-graph copy wins.
func CollapseByNormalizedPath(nodes []Node, activeDiffIdentifier string) []Node {
	best := make(map[string]Node)
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		np := n.NodePath
		if np == "" {
			np = n.Path
		}
		key := n.Label.String() + "|" + NormalizeNodePath(np)
		existing, ok := best[key]
		if !ok {
			best[key] = n
			order = append(order, key)
			continue
		}
		if n.DiffIdentifier == activeDiffIdentifier && existing.DiffIdentifier != activeDiffIdentifier {
			best[key] = n
		} else if existing.DiffIdentifier != BaseDiffIdentifier && n.DiffIdentifier == BaseDiffIdentifier && existing.DiffIdentifier != activeDiffIdentifier {
			best[key] = n
		}
	}
	out := make([]Node, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func (l NodeLabel) String() string { return string(l) }
