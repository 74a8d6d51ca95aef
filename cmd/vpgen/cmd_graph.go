package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/store"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage the reaction graph",
		Long: `Import, export and validate the reaction graph of the configured backend.

The JSONL rendering of a graph is a directory holding nodes.jsonl and
edges.jsonl, one JSON object per line.

Examples:
  vpgen graph import ./reactome
  vpgen graph export ./snapshot
  vpgen graph validate --json`,
	}

	cmd.AddCommand(
		newGraphImportCmd(),
		newGraphExportCmd(),
		newGraphValidateCmd(),
	)

	return cmd
}

func newGraphImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load nodes.jsonl and edges.jsonl into the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Graph.Backend == constants.BackendMemory {
				return fmt.Errorf("graph import needs a persistent backend (set graph.backend to sqlite or surreal)")
			}
			nodesPath := filepath.Join(args[0], store.NodesFile)
			if _, err := os.Stat(nodesPath); err != nil {
				return fmt.Errorf("no graph to import: %w", err)
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			gs, err := a.openGraph(ctx)
			if err != nil {
				return err
			}
			defer gs.Close()

			nodes, edges, err := store.ImportJSONL(ctx, gs, nodesPath, filepath.Join(args[0], store.EdgesFile))
			if err != nil {
				return fmt.Errorf("import graph: %w", err)
			}
			if err := gs.Sync(ctx); err != nil {
				return fmt.Errorf("sync graph: %w", err)
			}

			if a.jsonOut {
				return writeJSON(cmd, map[string]any{"backend": a.cfg.Graph.Backend, "nodes": nodes, "edges": edges})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes and %d edges into the %s graph\n", nodes, edges, a.cfg.Graph.Backend)
			return nil
		},
	}
}

func newGraphExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write the graph as nodes.jsonl and edges.jsonl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			gs, err := a.openGraph(ctx)
			if err != nil {
				return err
			}
			defer gs.Close()

			if err := os.MkdirAll(args[0], 0755); err != nil {
				return fmt.Errorf("create export directory: %w", err)
			}
			nodes, edges, err := store.ExportJSONL(ctx, gs,
				filepath.Join(args[0], store.NodesFile),
				filepath.Join(args[0], store.EdgesFile))
			if err != nil {
				return fmt.Errorf("export graph: %w", err)
			}

			if a.jsonOut {
				return writeJSON(cmd, map[string]any{"dir": args[0], "nodes": nodes, "edges": edges})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes and %d edges to %s\n", nodes, edges, args[0])
			return nil
		},
	}
}

func newGraphValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the graph for dangling and ill-typed edges",
		Long: `Validate the reaction graph for consistency issues.

This command checks for:
  - Dangling references (edges to nodes that do not exist)
  - Self-references
  - Edges whose endpoints have the wrong kind`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			gs, err := a.openGraph(ctx)
			if err != nil {
				return err
			}
			defer gs.Close()

			problems, err := store.ValidateGraph(ctx, gs)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			valid := len(problems) == 0

			if a.jsonOut {
				output := map[string]any{
					"valid":       valid,
					"error_count": len(problems),
					"backend":     a.cfg.Graph.Backend,
				}
				if !valid {
					output["errors"] = problems
				}
				return writeJSON(cmd, output)
			}

			out := cmd.OutOrStdout()
			if valid {
				fmt.Fprintln(out, "✓ Reaction graph is valid - no issues found.")
				return nil
			}
			fmt.Fprintf(out, "✗ Found %d validation error(s):\n\n", len(problems))
			for i, p := range problems {
				fmt.Fprintf(out, "%d. %s\n", i+1, p)
			}
			return nil
		},
	}
}
