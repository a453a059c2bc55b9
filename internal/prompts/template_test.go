package prompts

import (
	"strings"
	"testing"
)

func TestFormatInput_MissingVariableIsFatal(t *testing.T) {
	_, err := Leaf.FormatInput(map[string]string{"node_name": "Foo"})
	if err == nil {
		t.Fatalf("expected missing-variable error")
	}
}

func TestFormatInput_SubstitutesAllDeclaredVariables(t *testing.T) {
	vars := map[string]string{
		"node_name":    "Parse",
		"node_labels":  "FUNCTION",
		"node_path":    "pkg/parse.go",
		"node_content": "func Parse() {}",
	}
	out, err := Leaf.FormatInput(vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range vars {
		if !strings.Contains(out, v) {
			t.Fatalf("expected output to contain %q, got %q", v, out)
		}
	}
}

func TestValidateVariables(t *testing.T) {
	complete := map[string]string{
		"node_name": "a", "node_labels": "b", "node_path": "c", "node_content": "d",
	}
	if !Leaf.ValidateVariables(complete) {
		t.Fatalf("expected complete vars to validate")
	}
	incomplete := map[string]string{"node_name": "a"}
	if Leaf.ValidateVariables(incomplete) {
		t.Fatalf("expected incomplete vars to fail validation")
	}
}

func TestCompose_ReturnsSystemAndUserText(t *testing.T) {
	vars := map[string]string{
		"node_name": "a", "node_labels": "b", "node_path": "c", "node_content": "d",
	}
	system, user, err := Leaf.Compose(vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system == "" || user == "" {
		t.Fatalf("expected non-empty system and user text")
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("leaf_node_analysis"); !ok {
		t.Fatalf("expected leaf_node_analysis to be registered")
	}
	if _, ok := ByName("does_not_exist"); ok {
		t.Fatalf("expected lookup miss for unregistered template")
	}
}
