// Package prompts implements the prompt-template contract: named,
// immutable records that pair a system prompt with a variable-substituted
// user prompt, kept as data rather than as a hierarchy of template types.
package prompts

import (
	"strings"

	"github.com/graphforge/codegraph/internal/errs"
)

// Template is an immutable, named prompt. Variables is the declared set a
// caller must supply to Format; the template text itself names the same
// variables as `{var}` placeholders.
type Template struct {
	Name         string
	Description  string
	SystemPrompt string
	InputPrompt  string
	Variables    []string
}

// FormatInput substitutes `{var}` placeholders in the input prompt. A
// variable referenced by the template but missing from vars is a fatal
// "missing variable" error -- callers should treat it as a programming
// error, not something to recover from mid-run.
func (t Template) FormatInput(vars map[string]string) (string, error) {
	out := t.InputPrompt
	for _, name := range t.Variables {
		val, ok := vars[name]
		if !ok {
			return "", errs.ValidationErrorf("template %q: missing variable %q", t.Name, name)
		}
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out, nil
}

// Compose returns the (system, user) prompt pair ready to hand to an LLM
// client, or the formatting error if a declared variable was not supplied.
func (t Template) Compose(vars map[string]string) (system string, user string, err error) {
	user, err = t.FormatInput(vars)
	if err != nil {
		return "", "", err
	}
	return t.SystemPrompt, user, nil
}

// ValidateVariables checks that every variable the template declares is
// present in vars. Unlike FormatInput, this never substitutes; it does not
// inspect the template text, so placeholders that are used but not declared
// go unnoticed.
func (t Template) ValidateVariables(vars map[string]string) bool {
	for _, name := range t.Variables {
		if _, ok := vars[name]; !ok {
			return false
		}
	}
	return true
}
