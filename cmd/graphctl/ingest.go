package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/logging"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <repo-path>",
	Short: "Walk a repository's file layout into FOLDER/FILE nodes",
	Long: `ingest walks a repository beneath <repo-path>, creating a FOLDER node for
every directory and a FILE node for every file, linked by CONTAINS edges.
Symbol-level parsing (CLASS/FUNCTION nodes, CALLS/IMPORTS edges) is an
external collaborator's job; this command only builds the structural
skeleton those nodes attach to.

With --diff, the nodes are written as a pending-change overlay that
coexists with the base graph: searches scoped to that diff identifier
prefer the overlay copies, while base-graph searches keep seeing the base.
Add --supersede-base to additionally tombstone each base file the overlay
replaces, removing it from search results outright.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestRepoID        string
	ingestEntityID      string
	ingestEnvironment   string
	ingestDiff          string
	ingestSupersedeBase bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestRepoID, "repo-id", "", "tenancy key: repository id (required)")
	ingestCmd.Flags().StringVar(&ingestEntityID, "entity-id", "", "tenancy key: owning entity id (required)")
	ingestCmd.Flags().StringVar(&ingestEnvironment, "environment", graph.DefaultEnvironment, "logical environment prefix for node paths")
	ingestCmd.Flags().StringVar(&ingestDiff, "diff", graph.BaseDiffIdentifier, "diff identifier to ingest under (\"0\" writes the base graph, anything else a PR overlay)")
	ingestCmd.Flags().BoolVar(&ingestSupersedeBase, "supersede-base", false, "with a non-base --diff, mark each base file the overlay replaces as MODIFIED")
	ingestCmd.MarkFlagRequired("repo-id")
	ingestCmd.MarkFlagRequired("entity-id")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireValid(config.ValidationContextIngest); err != nil {
		return err
	}
	if ingestSupersedeBase && ingestDiff == graph.BaseDiffIdentifier {
		return fmt.Errorf("--supersede-base requires a non-base --diff")
	}

	ctx := context.Background()
	root := args[0]

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("repo path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repo path %q is not a directory", root)
	}

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	scope := graph.Scope{
		RepoID:         ingestRepoID,
		EntityID:       ingestEntityID,
		Environment:    ingestEnvironment,
		DiffIdentifier: ingestDiff,
	}
	overlay := ingestDiff != graph.BaseDiffIdentifier

	var nodes []graph.Node
	var edges []graph.Edge
	// Overlay file node ids whose base copy should be tombstoned once both
	// copies are stored.
	var superseded []string
	parentOf := map[string]string{} // absolute dir path -> node id

	flush := func() error {
		if len(nodes) == 0 {
			return nil
		}
		if err := backend.UpsertNodes(ctx, nodes); err != nil {
			return err
		}
		if err := backend.UpsertEdges(ctx, edges); err != nil {
			return err
		}
		nodes, edges = nil, nil
		return nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			rootNode := scope.FolderNode(relPathFor(root, path), filepath.Base(path))
			nodes = append(nodes, rootNode)
			parentOf[path] = rootNode.ID
			return nil
		}

		parentID, ok := parentOf[filepath.Dir(path)]
		if !ok {
			// Shouldn't happen for a well-formed walk, but skip defensively
			// rather than emitting an orphaned node.
			return nil
		}

		var node graph.Node
		if info.IsDir() {
			node = scope.FolderNode(relPathFor(root, path), filepath.Base(path))
			parentOf[path] = node.ID
		} else {
			node = scope.FileNode(relPathFor(root, path))
			if overlay && ingestSupersedeBase {
				superseded = append(superseded, node.ID)
			}
		}
		nodes = append(nodes, node)
		edges = append(edges, graph.Edge{SourceID: parentID, TargetID: node.ID, Type: graph.EdgeContains})

		if len(nodes) >= 100 {
			if err := flush(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	// The base copy of an overlay file shares its content-addressed node id.
	// Files new in the overlay have no base copy and the match is a no-op.
	for _, id := range superseded {
		if err := backend.MarkModified(ctx, id, graph.BaseDiffIdentifier, id, ingestDiff); err != nil {
			return err
		}
	}

	logging.Info("ingest complete",
		"repo_id", ingestRepoID, "entity_id", ingestEntityID, "root", root,
		"diff", ingestDiff, "superseded", len(superseded))
	return nil
}

// relPathFor returns path relative to the repository root in slash form;
// the root itself maps to its base name.
func relPathFor(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		rel = filepath.Base(root)
	}
	return filepath.ToSlash(rel)
}
