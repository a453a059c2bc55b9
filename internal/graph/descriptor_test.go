package graph

import "testing"

func TestNormalizeNodePath_StripsEnvironmentPrefix(t *testing.T) {
	if got := NormalizeNodePath("/env/0/src/a.py"); got != "src/a.py" {
		t.Fatalf("expected environment and diff components stripped, got %q", got)
	}
	if got := NormalizeNodePath("/env/pr-42/src/a.py"); got != "src/a.py" {
		t.Fatalf("overlay prefix must strip the same way, got %q", got)
	}
	if got := NormalizeNodePath("short"); got != "short" {
		t.Fatalf("a path with too few components passes through, got %q", got)
	}
	if got := NormalizeNodePath("integration://github/pull_request/42"); got != "integration://github/pull_request/42" {
		t.Fatalf("derived paths without a leading slash pass through, got %q", got)
	}
}

// Mixed diff identifiers: a base node and a pr-42 overlay share a
// normalized path; the collapse keeps whichever matches the active diff
// identifier.
func TestCollapseByNormalizedPath_PrefersActiveOverlay(t *testing.T) {
	base := Node{ID: "id-base", Label: LabelFile, NodePath: "/env/0/a.py", DiffIdentifier: BaseDiffIdentifier}
	overlay := Node{ID: "id-overlay", Label: LabelFile, NodePath: "/env/pr-42/a.py", DiffIdentifier: "pr-42"}

	out := CollapseByNormalizedPath([]Node{base, overlay}, "pr-42")
	if len(out) != 1 || out[0].ID != "id-overlay" {
		t.Fatalf("active diff pr-42 must keep the overlay, got %v", out)
	}

	out = CollapseByNormalizedPath([]Node{overlay, base}, BaseDiffIdentifier)
	if len(out) != 1 || out[0].ID != "id-base" {
		t.Fatalf("active diff 0 must keep the base node, got %v", out)
	}
}

func TestCollapseByNormalizedPath_StaleOverlayLosesToBase(t *testing.T) {
	stale := Node{ID: "id-stale", Label: LabelFile, NodePath: "/env/pr-7/a.py", DiffIdentifier: "pr-7"}
	base := Node{ID: "id-base", Label: LabelFile, NodePath: "/env/0/a.py", DiffIdentifier: BaseDiffIdentifier}

	// Neither matches the active identifier; the base graph wins.
	out := CollapseByNormalizedPath([]Node{stale, base}, "pr-42")
	if len(out) != 1 || out[0].ID != "id-base" {
		t.Fatalf("with no active match the base graph copy wins, got %v", out)
	}
}

func TestCollapseByNormalizedPath_DistinctPathsKept(t *testing.T) {
	a := Node{ID: "a", Label: LabelFile, NodePath: "/env/0/a.py", DiffIdentifier: BaseDiffIdentifier}
	b := Node{ID: "b", Label: LabelFile, NodePath: "/env/0/b.py", DiffIdentifier: BaseDiffIdentifier}

	out := CollapseByNormalizedPath([]Node{a, b}, BaseDiffIdentifier)
	if len(out) != 2 {
		t.Fatalf("nodes at distinct paths must both survive, got %v", out)
	}
}

// End-to-end overlay coexistence: nodes built through Scope (the same path
// ingestion uses) collapse the same way hand-built ones do.
func TestCollapseByNormalizedPath_ScopeBuiltOverlays(t *testing.T) {
	base := Scope{RepoID: "r", EntityID: "e"}.FileNode("src/a.py")
	overlay := Scope{RepoID: "r", EntityID: "e", DiffIdentifier: "pr-42"}.FileNode("src/a.py")

	out := CollapseByNormalizedPath([]Node{base, overlay}, "pr-42")
	if len(out) != 1 || out[0].DiffIdentifier != "pr-42" {
		t.Fatalf("scope-built overlay must win under its own diff identifier, got %v", out)
	}
}

func TestToDescriptor_UsesDeclarationRange(t *testing.T) {
	scope := Scope{RepoID: "r", EntityID: "e"}
	n := scope.SymbolNode(LabelFunction, "pkg/x.go", "Do", DeclarationRange{StartLine: 4, EndLine: 20})
	d := ToDescriptor(n)
	if d.StartLine != 4 || d.EndLine != 20 {
		t.Fatalf("descriptor must carry the declaration range, got %+v", d)
	}
	if d.ID != n.ID || d.Label != LabelFunction {
		t.Fatalf("descriptor must carry id and label, got %+v", d)
	}
}

func TestToDescriptor_FallsBackToProperties(t *testing.T) {
	n := Scope{RepoID: "r", EntityID: "e"}.FileNode("x.go")
	n.Properties = map[string]interface{}{"start_line": int64(1), "end_line": float64(30)}
	d := ToDescriptor(n)
	if d.StartLine != 1 || d.EndLine != 30 {
		t.Fatalf("descriptor must read line bounds from properties when no declaration exists, got %+v", d)
	}
}
