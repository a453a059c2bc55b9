package graph

import "testing"

func TestComputeNodeID_StableAcrossCalls(t *testing.T) {
	id1 := ComputeNodeID(LabelFile, "/main/0/pkg/server/handler.go", nil)
	id2 := ComputeNodeID(LabelFile, "/main/0/pkg/server/handler.go", nil)
	if id1 != id2 {
		t.Fatalf("expected stable id, got %s != %s", id1, id2)
	}
	if len(id1) != 32 {
		t.Fatalf("expected 32-char id, got %d chars", len(id1))
	}
}

func TestComputeNodeID_DifferentPathsDiffer(t *testing.T) {
	id1 := ComputeNodeID(LabelFile, "/main/0/pkg/a.go", nil)
	id2 := ComputeNodeID(LabelFile, "/main/0/pkg/b.go", nil)
	if id1 == id2 {
		t.Fatalf("expected different ids for different paths")
	}
}

func TestComputeNodeID_StableAcrossOverlays(t *testing.T) {
	base := ComputeNodeID(LabelFile, "/main/0/pkg/a.go", nil)
	overlay := ComputeNodeID(LabelFile, "/main/pr-42/pkg/a.go", nil)
	if base != overlay {
		t.Fatalf("the same file in base graph and overlay must share a node id: %s != %s", base, overlay)
	}
}

func TestComputeNodeID_DeclarationRangeDistinguishesOverloads(t *testing.T) {
	nodePath := "/main/0/pkg/server/handler.go"
	idA := ComputeNodeID(LabelFunction, nodePath, &DeclarationRange{StartLine: 10, EndLine: 20})
	idB := ComputeNodeID(LabelFunction, nodePath, &DeclarationRange{StartLine: 30, EndLine: 40})
	if idA == idB {
		t.Fatalf("expected distinct ids for distinct declaration ranges")
	}
}

func TestComputeNodeID_LayerSeparatesSamePathLabels(t *testing.T) {
	nodePath := "/main/0/pkg/server"
	fileID := ComputeNodeID(LabelFile, nodePath, nil)
	folderID := ComputeNodeID(LabelFolder, nodePath, nil)
	if fileID == folderID {
		t.Fatalf("a FILE and FOLDER sharing a path must not collide")
	}
}

func TestScope_FileNode_BaseDefaults(t *testing.T) {
	scope := Scope{RepoID: "repo1", EntityID: "entity1"}
	n := scope.FileNode("main.go")
	if n.DiffIdentifier != BaseDiffIdentifier {
		t.Fatalf("expected base diff identifier, got %q", n.DiffIdentifier)
	}
	if n.Label != LabelFile {
		t.Fatalf("expected FILE label, got %s", n.Label)
	}
	if n.Path != "file://main.go" {
		t.Fatalf("expected file:// locator, got %q", n.Path)
	}
	if n.NodePath != "/main/0/main.go" {
		t.Fatalf("expected environment-prefixed node_path, got %q", n.NodePath)
	}
}

func TestScope_FileNode_OverlaySharesIDWithBase(t *testing.T) {
	base := Scope{RepoID: "repo1", EntityID: "e1"}
	overlay := Scope{RepoID: "repo1", EntityID: "e1", DiffIdentifier: "pr-42"}

	b := base.FileNode("src/a.go")
	o := overlay.FileNode("src/a.go")

	if b.ID != o.ID {
		t.Fatalf("base and overlay copies of one file must share node_id")
	}
	if b.DiffIdentifier == o.DiffIdentifier {
		t.Fatalf("base and overlay copies must differ in diff_identifier")
	}
	if o.NodePath != "/main/pr-42/src/a.go" {
		t.Fatalf("overlay node_path must carry the diff identifier, got %q", o.NodePath)
	}
}

func TestScope_SymbolNode_SameNameDifferentRangesDistinctIDs(t *testing.T) {
	scope := Scope{RepoID: "repo1", EntityID: "e1"}
	a := scope.SymbolNode(LabelFunction, "pkg/x.go", "Do", DeclarationRange{StartLine: 1, EndLine: 5})
	b := scope.SymbolNode(LabelFunction, "pkg/x.go", "Do", DeclarationRange{StartLine: 10, EndLine: 15})
	if a.ID == b.ID {
		t.Fatalf("overloaded symbols at different declaration ranges must have distinct ids")
	}
}
