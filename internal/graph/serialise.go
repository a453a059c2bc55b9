package graph

// Serialise produces the wire form the store adapter writes: known scalar
// fields at the top
// level, everything else namespaced under "attributes", and any labels
// beyond the node's primary one collected under "extra_labels". Ordering of
// the resulting map is not significant -- only the hash input in
// ComputeNodeID is order-defined.
func Serialise(n Node, extraLabels ...string) map[string]interface{} {
	out := map[string]interface{}{
		"node_id":         n.ID,
		"label":           string(n.Label),
		"repo_id":         n.RepoID,
		"entity_id":       n.EntityID,
		"path":            n.Path,
		"node_path":       n.NodePath,
		"name":            n.Name,
		"diff_identifier": n.DiffIdentifier,
	}
	if n.Declaration != nil {
		out["start_line"] = n.Declaration.StartLine
		out["end_line"] = n.Declaration.EndLine
	}
	if len(n.Properties) > 0 {
		attrs := make(map[string]interface{}, len(n.Properties))
		for k, v := range n.Properties {
			attrs[k] = v
		}
		out["attributes"] = attrs
	}
	if len(extraLabels) > 0 {
		out["extra_labels"] = extraLabels
	}
	return out
}

// SerialiseEdge produces the wire form for an edge: endpoints and type at
// the top level, everything else namespaced under "attributes".
func SerialiseEdge(e Edge) map[string]interface{} {
	out := map[string]interface{}{
		"source_id": e.SourceID,
		"target_id": e.TargetID,
		"type":      string(e.Type),
	}
	if len(e.Properties) > 0 {
		attrs := make(map[string]interface{}, len(e.Properties))
		for k, v := range e.Properties {
			attrs[k] = v
		}
		out["attributes"] = attrs
	}
	return out
}
