package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/cache"
	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/docengine"
	"github.com/graphforge/codegraph/internal/logging"
)

var documentCmd = &cobra.Command{
	Use:   "document <root-node-id>",
	Short: "Recursively document a node and its descendants",
	Long: `document runs the recursive documentation engine from a root node,
walking its hierarchy and call-graph children bottom-up and generating one
DOCUMENTATION node per descendant, tolerating cycles of arbitrary depth.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocument,
}

var (
	documentRepoID   string
	documentEntityID string
)

func init() {
	documentCmd.Flags().StringVar(&documentRepoID, "repo-id", "", "tenancy key: repository id (required)")
	documentCmd.Flags().StringVar(&documentEntityID, "entity-id", "", "tenancy key: owning entity id (required)")
	documentCmd.MarkFlagRequired("repo-id")
	documentCmd.MarkFlagRequired("entity-id")
}

func runDocument(cmd *cobra.Command, args []string) error {
	if err := requireValid(config.ValidationContextDocument); err != nil {
		return err
	}

	ctx := context.Background()
	rootNodeID := args[0]

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	llm, err := openLLM(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	engine := docengine.NewEngine(backend, llm, cfg.Engine)
	if cfg.Cache.SharedCacheURL != "" {
		shared := cache.NewDescriptionCache(ctx, cfg.Cache)
		engine = engine.WithSharedCache(shared)
	}

	result, err := engine.Run(ctx, rootNodeID, documentRepoID, documentEntityID)
	if err != nil {
		return err
	}

	if err := backend.UpsertNodes(ctx, result.Nodes); err != nil {
		return err
	}
	if err := backend.UpsertEdges(ctx, result.Edges); err != nil {
		return err
	}

	fmt.Printf("documented %d node(s), %d LLM call(s)\n", len(result.Nodes), result.CallCount)
	logging.Info("document complete", "root_node_id", rootNodeID, "nodes", len(result.Nodes), "calls", result.CallCount)
	return nil
}
