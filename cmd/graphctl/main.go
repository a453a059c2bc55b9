// Command graphctl is the CLI entrypoint for the code knowledge graph
// engine: ingest a repository's file layout, run the recursive or batch
// documentation engines against it, attach blame/PR provenance, and query
// the resulting graph. Each subcommand is deliberately thin -- it wires
// configuration and a graph.Backend together and hands off to the internal
// packages that do the real work.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/logging"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphctl",
	Short: "Build and query a code knowledge graph",
	Long: `graphctl ingests a repository into a property-graph store, generates
natural-language documentation for every node via a recursive or batch
engine, and attaches commit/PR provenance via a VCS blame provider.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg := logging.DefaultConfig(verbose)
		if err := logging.Initialize(logCfg); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logging.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codegraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(batchDocumentCmd)
	rootCmd.AddCommand(blameCmd)
	rootCmd.AddCommand(queryCmd)
}
