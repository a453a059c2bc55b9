package prompts

// The five canonical templates the documentation engine dispatches
// between. Leaf, parent-full-context, and parent-partial-context cover
// the normal recursive cases; enhanced-leaf-fallback covers a node whose
// children could not be resolved in time; circular-dependency-detection
// documents a cycle the engine chose not to unwind further.

var Leaf = Template{
	Name:        "leaf_node_analysis",
	Description: "Summarizes a node with no outgoing structural edges, from its own content alone.",
	SystemPrompt: "You are documenting a single unit of code in isolation. Describe what it does, " +
		"its inputs and outputs, and any side effects, based only on the content shown. Do not guess " +
		"at behavior of code you cannot see.",
	InputPrompt: "Node: {node_name}\nKind: {node_labels}\nPath: {node_path}\n\n" +
		"Content:\n{node_content}\n\nWrite a concise description of what this node does.",
	Variables: []string{"node_name", "node_labels", "node_path", "node_content"},
}

var ParentFullContext = Template{
	Name:        "parent_full_context_analysis",
	Description: "Summarizes a node whose every child already has a description available.",
	SystemPrompt: "You are documenting a unit of code that delegates to other units, all of which are " +
		"already described below. Synthesize a description of the parent that explains its role and how " +
		"it composes its children; do not simply restate the child descriptions.",
	InputPrompt: "Node: {node_name}\nKind: {node_labels}\nPath: {node_path}\n\n" +
		"Content:\n{node_content}\n\nChild descriptions:\n{child_descriptions}\n\n" +
		"Write a concise description of what this node does.",
	Variables: []string{"node_name", "node_labels", "node_path", "node_content", "child_descriptions"},
}

var ParentPartialContext = Template{
	Name:        "parent_partial_context_analysis",
	Description: "Summarizes a node when only some of its children's descriptions were available in time.",
	SystemPrompt: "You are documenting a unit of code that delegates to other units. Some child " +
		"descriptions are available and some are not, noted below. Write the best possible description " +
		"from what's available, and do not assert anything about the missing children's behavior.",
	InputPrompt: "Node: {node_name}\nKind: {node_labels}\nPath: {node_path}\n\n" +
		"Content:\n{node_content}\n\nAvailable child descriptions:\n{child_descriptions}\n\n" +
		"Note: {fallback_note}\n\nWrite a concise description of what this node does.",
	Variables: []string{"node_name", "node_labels", "node_path", "node_content", "child_descriptions", "fallback_note"},
}

var EnhancedLeafFallback = Template{
	Name:        "enhanced_leaf_fallback_analysis",
	Description: "Summarizes a node as if it were a leaf, because its children could not be resolved before the worker had to give up on them (cycle, timeout, or depth limit).",
	SystemPrompt: "You are documenting a unit of code. Normally its children's descriptions would inform " +
		"this summary, but they were not available — explained below. Describe this node from its own " +
		"content only, the way you would a leaf node, and do not speculate about the unavailable children.",
	InputPrompt: "Node: {node_name}\nKind: {node_labels}\nPath: {node_path}\n\n" +
		"Content:\n{node_content}\n\nWhy children are unavailable: {fallback_note}\n\n" +
		"Write a concise description of what this node does.",
	Variables: []string{"node_name", "node_labels", "node_path", "node_content", "fallback_note"},
}

var CircularDependencyDetection = Template{
	Name:        "circular_dependency_detection",
	Description: "Documents a detected dependency cycle instead of any single node in it.",
	SystemPrompt: "You are documenting a cycle of mutually dependent code units discovered during " +
		"analysis. Summarize what the cycle accomplishes as a whole and which modules participate, " +
		"rather than describing any one member in isolation.",
	InputPrompt: "Cycle members: {cycle_nodes}\nPaths: {cycle_paths}\nAffected modules: {affected_modules}\n\n" +
		"Write a concise description of what this group of mutually dependent units accomplishes together.",
	Variables: []string{"cycle_nodes", "cycle_paths", "affected_modules"},
}

// All lists every registered template, useful for a registry lookup by name.
var All = []Template{Leaf, ParentFullContext, ParentPartialContext, EnhancedLeafFallback, CircularDependencyDetection}

// ByName returns the template with the given name, or false if none matches.
func ByName(name string) (Template, bool) {
	for _, t := range All {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
