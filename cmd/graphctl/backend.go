package main

import (
	"context"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/llmclient"
	"github.com/graphforge/codegraph/internal/rundb"
)

// requireValid validates cfg for the given operation before any client is
// dialed, surfacing a misconfiguration (missing Neo4j URI, no LLM provider
// configured, etc.) as a single readable error rather than a confusing
// connection failure three calls deep.
func requireValid(validationCtx config.ValidationContext) error {
	result := cfg.Validate(validationCtx)
	if result.HasErrors() {
		return result
	}
	return nil
}

// openBackend dials the configured graph store. Neo4j is the only
// implementation shipped, but every caller programs against graph.Backend.
func openBackend(ctx context.Context, storeCfg config.StoreConfig) (graph.Backend, error) {
	return graph.NewNeo4jBackend(ctx, storeCfg.Neo4jURI, storeCfg.Neo4jUser, storeCfg.Neo4jPassword, storeCfg.Neo4jDatabase)
}

// openLLM builds the provider-neutral chat client per the configured
// primary/fallback chain.
func openLLM(ctx context.Context, llmCfg config.LLMConfig) (llmclient.Client, error) {
	return llmclient.Build(ctx, llmCfg)
}

// openLedger opens the run-scoped status/DLQ side-store named by
// cfg.Store.StatusBackend, used to resume a crashed batch-documentation run.
func openLedger(ctx context.Context, storeCfg config.StoreConfig) (rundb.RunLedger, rundb.DeadLetterStore, error) {
	return rundb.Open(ctx, storeCfg)
}
