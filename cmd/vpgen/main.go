package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vpgen",
		Short: "Virtual patient generation for reaction networks",
		Long: `vpgen extracts reaction sub-networks from a Reactome-style knowledge graph,
assembles them into kinetic models and scores virtual patients against
ordering and stability objectives.

Configuration is read from ~/.vpgen/config.yaml (or --config) and
environment variables.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.vpgen/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newBuildCmd(),
		newSampleCmd(),
		newEvaluateCmd(),
		newSearchCmd(),
		newSpaceCmd(),
		newGraphCmd(),
	)
	return rootCmd
}
