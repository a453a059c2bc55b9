package graph

import "testing"

func TestSerialise_NamespacesAttributesAndExtraLabels(t *testing.T) {
	scope := Scope{RepoID: "repo1", EntityID: "e1"}
	n := scope.SymbolNode(LabelFunction, "pkg/x.go", "Do", DeclarationRange{StartLine: 3, EndLine: 9})
	n.Properties = map[string]interface{}{"text": "func Do() {}"}

	wire := Serialise(n, "ENTRYPOINT")

	if wire["node_id"] != n.ID || wire["label"] != "FUNCTION" {
		t.Fatalf("scalar fields must sit at the top level, got %v", wire)
	}
	if wire["node_path"] != "/main/0/pkg/x.go" {
		t.Fatalf("node_path must be carried on the wire, got %v", wire["node_path"])
	}
	attrs, ok := wire["attributes"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected attributes map, got %T", wire["attributes"])
	}
	if attrs["text"] != "func Do() {}" {
		t.Fatalf("properties must be namespaced under attributes")
	}
	extra, ok := wire["extra_labels"].([]string)
	if !ok || len(extra) != 1 || extra[0] != "ENTRYPOINT" {
		t.Fatalf("extra labels must be collected under extra_labels, got %v", wire["extra_labels"])
	}
}

func TestSerialiseEdge_AttributesNamespaced(t *testing.T) {
	e := Edge{SourceID: "s", TargetID: "t", Type: EdgeCalls, Properties: map[string]interface{}{"start_line": 12}}
	wire := SerialiseEdge(e)

	if wire["source_id"] != "s" || wire["target_id"] != "t" || wire["type"] != "CALLS" {
		t.Fatalf("endpoints and type must sit at the top level, got %v", wire)
	}
	attrs, ok := wire["attributes"].(map[string]interface{})
	if !ok || attrs["start_line"] != 12 {
		t.Fatalf("edge properties must be namespaced under attributes, got %v", wire)
	}
}

func TestIsValidNodeID(t *testing.T) {
	id := ComputeNodeID(LabelFile, "main.go", nil)
	if !IsValidNodeID(id) {
		t.Fatalf("computed ids must validate, got %q", id)
	}
	for _, bad := range []string{"", "abc", "ABCDEF0123456789ABCDEF0123456789", "0123456789abcdef0123456789abcde", "0123456789abcdef0123456789abcdef0"} {
		if IsValidNodeID(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
