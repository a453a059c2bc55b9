package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/graph"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the graph by name, path, or text",
}

var queryDiffIdentifier string

func init() {
	queryCmd.PersistentFlags().StringVar(&queryDiffIdentifier, "diff", graph.BaseDiffIdentifier, "diff identifier to prefer when overlays exist")

	byNameCmd := &cobra.Command{
		Use:   "name <label> <name>",
		Short: "Find nodes by name and label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(func(ctx context.Context, b graph.Backend) ([]graph.Node, error) {
				return b.FindByName(ctx, args[1], graph.NodeLabel(args[0]), queryDiffIdentifier)
			})
		},
	}
	byPathCmd := &cobra.Command{
		Use:   "path <prefix>",
		Short: "Find nodes by path prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(func(ctx context.Context, b graph.Backend) ([]graph.Node, error) {
				return b.FindByPath(ctx, args[0], queryDiffIdentifier)
			})
		},
	}
	byTextCmd := &cobra.Command{
		Use:   "text <text>",
		Short: "Full-text search over node content/description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(func(ctx context.Context, b graph.Backend) ([]graph.Node, error) {
				return b.FindByText(ctx, args[0], queryDiffIdentifier)
			})
		},
	}

	queryCmd.AddCommand(byNameCmd, byPathCmd, byTextCmd)
}

func runQuery(search func(context.Context, graph.Backend) ([]graph.Node, error)) error {
	if err := cfg.RequireNeo4j(); err != nil {
		return err
	}

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	nodes, err := search(ctx, backend)
	if err != nil {
		if errs.IsOverflow(err) {
			fmt.Println("too many results, refine your query")
			return nil
		}
		return err
	}

	for _, n := range nodes {
		fmt.Println(n.String())
	}
	fmt.Printf("%d result(s)\n", len(nodes))
	return nil
}
