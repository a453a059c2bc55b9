package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/graphforge/codegraph/internal/errs"
)

// ValidationContext specifies which configuration surface an operation needs.
type ValidationContext string

const (
	// ValidationContextIngest covers graph-store writes.
	ValidationContextIngest ValidationContext = "ingest"
	// ValidationContextDocument covers the recursive documentation engine.
	ValidationContextDocument ValidationContext = "document"
	// ValidationContextBatchDocument covers the wavefront scheduler.
	ValidationContextBatchDocument ValidationContext = "batch-document"
	// ValidationContextBlame covers the blame provenance engine.
	ValidationContextBlame ValidationContext = "blame"
	// ValidationContextAll validates everything.
	ValidationContextAll ValidationContext = "all"
)

type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

func (vr *ValidationResult) HasErrors() bool { return !vr.Valid || len(vr.Errors) > 0 }

func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, e := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", e))
	}
	for _, w := range vr.Warnings {
		sb.WriteString(fmt.Sprintf("  ! %s\n", w))
	}
	return sb.String()
}

// Validate checks the configuration needed for the given operation.
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextIngest:
		c.validateNeo4j(result, true)
		c.validateStatusBackend(result)
	case ValidationContextDocument:
		c.validateNeo4j(result, true)
		c.validateLLM(result, true)
		c.validateEngine(result)
	case ValidationContextBatchDocument:
		c.validateNeo4j(result, true)
		c.validateLLM(result, true)
		c.validateStatusBackend(result)
		c.validateEngine(result)
	case ValidationContextBlame:
		c.validateGitHub(result, true)
	case ValidationContextAll:
		c.validateNeo4j(result, true)
		c.validateStatusBackend(result)
		c.validateLLM(result, false)
		c.validateGitHub(result, false)
		c.validateEngine(result)
		c.validateCache(result)
	}
	return result
}

func (c *Config) validateNeo4j(result *ValidationResult, required bool) {
	if c.Store.Neo4jURI == "" {
		result.AddError("store.neo4j_uri is required")
		return
	}
	if _, err := url.Parse(c.Store.Neo4jURI); err != nil {
		result.AddError("store.neo4j_uri is invalid: %v", err)
	}
	if required && c.Store.Neo4jUser == "" {
		result.AddWarning("store.neo4j_user is not set")
	}
	if required && c.Store.Neo4jPassword == "" {
		result.AddWarning("store.neo4j_password is not set")
	}
}

func (c *Config) validateStatusBackend(result *ValidationResult) {
	switch c.Store.StatusBackend {
	case "postgres":
		if c.Store.PostgresDSN == "" {
			result.AddError("store.postgres_dsn is required when status_backend is postgres")
		} else if !strings.HasPrefix(c.Store.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Store.PostgresDSN, "postgresql://") {
			result.AddError("store.postgres_dsn must start with postgres:// or postgresql://")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			result.AddWarning("store.sqlite_path is empty, a temp path will be used")
		}
	case "bolt":
		if c.Store.BoltPath == "" {
			result.AddWarning("store.bolt_path is empty, a temp path will be used")
		}
	default:
		result.AddError("store.status_backend must be one of postgres, sqlite, bolt")
	}
}

func (c *Config) validateLLM(result *ValidationResult, required bool) {
	hasAny := c.LLM.OpenAIKey != "" || c.LLM.AnthropicKey != "" || c.LLM.GeminiKey != ""
	if !hasAny {
		if required {
			result.AddError("no LLM provider credential is configured (openai_key, anthropic_key, or gemini_key)")
		} else {
			result.AddWarning("no LLM provider credential configured; documentation calls will fail")
		}
	}
	if c.LLM.Primary == c.LLM.Fallback && c.LLM.Fallback != "" {
		result.AddWarning("llm.fallback is the same as llm.primary, fallback will never trigger")
	}
}

func (c *Config) validateEngine(result *ValidationResult) {
	if c.Engine.Workers <= 0 {
		result.AddError("engine.workers must be positive")
	}
	if c.Engine.MaxCallBudget <= 0 {
		result.AddError("engine.max_call_budget must be positive")
	}
	if c.Engine.BatchSize <= 0 {
		result.AddError("engine.batch_size must be positive")
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if c.Cache.Directory == "" {
		result.AddWarning("cache.directory is not set, using default")
	}
}

func (c *Config) validateGitHub(result *ValidationResult, required bool) {
	if c.GitHub.Token == "" {
		if required {
			result.AddError("github.token is required")
		} else {
			result.AddWarning("github.token is not set, GitHub integration is disabled")
		}
	}
	if c.GitHub.RateLimit <= 0 {
		result.AddWarning("github.rate_limit is invalid, will use default (1 req/s)")
	}
}

// RequireNeo4j returns a fatal config error if the graph store is unusable.
func (c *Config) RequireNeo4j() error {
	result := &ValidationResult{Valid: true}
	c.validateNeo4j(result, true)
	if result.HasErrors() {
		return errs.ConfigErrorf("%s", result.Error())
	}
	return nil
}

// RequireLLM returns a fatal config error if no LLM provider is usable.
func (c *Config) RequireLLM() error {
	result := &ValidationResult{Valid: true}
	c.validateLLM(result, true)
	if result.HasErrors() {
		return errs.ConfigErrorf("%s", result.Error())
	}
	return nil
}
