package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/batchdoc"
	"github.com/graphforge/codegraph/internal/cache"
	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/logging"
)

var batchDocumentCmd = &cobra.Command{
	Use:   "batch-document",
	Short: "Document an entire repository in leaf-first wavefronts",
	Long: `batch-document drives full-repository documentation through run-scoped
processing_status columns on the store rather than an in-process recursive
walk: it seeds the leaf wavefront, expands round by round as each tier's
children complete, and terminates when no pending nodes remain.`,
	RunE: runBatchDocument,
}

var (
	batchRepoID   string
	batchEntityID string
)

func init() {
	batchDocumentCmd.Flags().StringVar(&batchRepoID, "repo-id", "", "tenancy key: repository id (required)")
	batchDocumentCmd.Flags().StringVar(&batchEntityID, "entity-id", "", "tenancy key: owning entity id (required)")
	batchDocumentCmd.MarkFlagRequired("repo-id")
	batchDocumentCmd.MarkFlagRequired("entity-id")
}

func runBatchDocument(cmd *cobra.Command, args []string) error {
	if err := requireValid(config.ValidationContextBatchDocument); err != nil {
		return err
	}

	ctx := context.Background()

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	llm, err := openLLM(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	scheduler := batchdoc.NewScheduler(backend, llm, cfg.Engine)
	if cfg.Cache.SharedCacheURL != "" {
		shared := cache.NewDescriptionCache(ctx, cfg.Cache)
		scheduler = scheduler.WithSharedCache(shared)
	}

	ledger, _, err := openLedger(ctx, cfg.Store)
	if err != nil {
		logging.Warn("run ledger unavailable, proceeding without resumability", "error", err)
	} else {
		scheduler = scheduler.WithLedger(ledger)
		defer ledger.Close()
	}

	result, err := scheduler.Run(ctx, batchRepoID, batchEntityID)
	if err != nil {
		return err
	}

	if err := backend.UpsertNodes(ctx, result.Nodes); err != nil {
		return err
	}
	if err := backend.UpsertEdges(ctx, result.Edges); err != nil {
		return err
	}

	fmt.Printf("run %s complete: %d round(s), %d node(s) documented\n", result.RunID, result.Rounds, len(result.Nodes))
	logging.Info("batch-document complete", "run_id", result.RunID, "rounds", result.Rounds, "nodes", len(result.Nodes))
	return nil
}
