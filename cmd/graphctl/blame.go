package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/integrations"
	"github.com/graphforge/codegraph/internal/logging"
	"github.com/graphforge/codegraph/internal/vcs"
	"github.com/graphforge/codegraph/internal/vcs/github"
)

var blameCmd = &cobra.Command{
	Use:   "blame <owner> <repo> <ref> <path-prefix>",
	Short: "Attach commit/PR provenance to code nodes under a path",
	Long: `blame fetches every code node under <path-prefix>, coalesces their line
ranges per file (merging ranges within the configured gap), and fetches the
commits that last touched each merged range from the GitHub blame API. Each
distinct commit is persisted once as an INTEGRATION node, idempotent on
(source, source_type, external_id).`,
	Args: cobra.ExactArgs(4),
	RunE: runBlame,
}

var (
	blameRepoID   string
	blameEntityID string
)

func init() {
	blameCmd.Flags().StringVar(&blameRepoID, "repo-id", "", "tenancy key: repository id (required)")
	blameCmd.Flags().StringVar(&blameEntityID, "entity-id", "", "tenancy key: owning entity id (required)")
	blameCmd.MarkFlagRequired("repo-id")
	blameCmd.MarkFlagRequired("entity-id")
}

func runBlame(cmd *cobra.Command, args []string) error {
	if err := requireValid(config.ValidationContextBlame); err != nil {
		return err
	}

	ctx := context.Background()
	owner, repo, ref, pathPrefix := args[0], args[1], args[2], args[3]

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	nodes, err := backend.FindByPath(ctx, pathPrefix, graph.BaseDiffIdentifier)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Println("no code nodes found under that path")
		return nil
	}

	// Group descriptors by file so each file's ranges are coalesced
	// independently.
	byFile := map[string][]vcs.CodeRange{}
	for _, n := range nodes {
		d := graph.ToDescriptor(n)
		if d.StartLine == 0 && d.EndLine == 0 {
			continue
		}
		byFile[d.Path] = append(byFile[d.Path], vcs.CodeRange{
			NodeID: d.ID, Path: d.Path, StartLine: d.StartLine, EndLine: d.EndLine,
		})
	}

	client := github.NewClient(owner, repo, ref, cfg.GitHub, cfg.Blame)

	var integrationNodes []graph.Node
	seen := map[string]bool{}
	for path, ranges := range byFile {
		attributed, err := client.BlameRanges(ctx, path, ranges)
		if err != nil {
			logging.Warn("blame failed for file", "path", path, "error", err)
			continue
		}
		for nodeID, commits := range attributed {
			for _, bc := range commits {
				if !seen[bc.SHA] {
					seen[bc.SHA] = true
					integrationNodes = append(integrationNodes, integrations.FromBlameCommit(blameRepoID, blameEntityID, bc))
				}
			}
			fmt.Printf("%s: %d commit(s)\n", nodeID, len(commits))
		}
	}

	if len(integrationNodes) > 0 {
		if err := backend.UpsertNodes(ctx, integrationNodes); err != nil {
			return err
		}
	}

	logging.Info("blame complete", "files", len(byFile), "commits", len(integrationNodes))
	return nil
}
