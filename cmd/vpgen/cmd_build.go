package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/sbml"
	"github.com/nvandessel/vpgen/internal/scenario"
	"github.com/nvandessel/vpgen/internal/store"
)

// buildSummary is the result of a build as printed by the command.
type buildSummary struct {
	Name             string `json:"name"`
	Fallback         bool   `json:"fallback"`
	Species          int    `json:"species"`
	Reactions        int    `json:"reactions"`
	KineticConstants int    `json:"kinetic_constants"`
	Objectives       int    `json:"objectives"`
	SpeciesOrder     int    `json:"species_order_pairs"`
	KineticOrder     int    `json:"kinetic_order_pairs"`
	Output           string `json:"output,omitempty"`
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <scenario.yaml>",
		Short: "Extract a sub-network and assemble its model",
		Long: `Extract the reaction sub-network described by a scenario file, assemble
its kinetic model and store the document under the scenario name.

When the graph cannot be queried the previously stored document for the
scenario is loaded instead.

Examples:
  vpgen build scenarios/mapk.yaml
  vpgen build scenarios/mapk.yaml --graph-jsonl ./reactome --output mapk.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphJSONL, _ := cmd.Flags().GetString("graph-jsonl")
			output, _ := cmd.Flags().GetString("output")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			def, err := scenario.LoadFile(args[0])
			if err != nil {
				return err
			}

			docs, err := a.openDocuments(ctx)
			if err != nil {
				return err
			}
			b := &scenario.Builder{Documents: docs, Logger: a.log}

			gs, err := a.openGraph(ctx)
			switch {
			case errors.Is(err, store.ErrUnavailable):
				a.log.Warn("graph unavailable, using stored document", "error", err)
			case err != nil:
				return err
			default:
				defer gs.Close()
				if graphJSONL != "" {
					nodes, edges, err := store.ImportJSONL(ctx, gs,
						filepath.Join(graphJSONL, store.NodesFile),
						filepath.Join(graphJSONL, store.EdgesFile))
					if err != nil {
						return fmt.Errorf("import graph: %w", err)
					}
					a.log.Info("graph imported", "nodes", nodes, "edges", edges)
				}
				b.Graph = gs
			}

			res, err := b.Build(ctx, def)
			if err != nil {
				return err
			}

			if output != "" {
				if err := sbml.WriteFile(output, res.Model.Document); err != nil {
					return fmt.Errorf("write model document: %w", err)
				}
			}

			summary := buildSummary{
				Name:             def.Name,
				Fallback:         res.Fallback,
				Species:          len(res.Model.Species()),
				Reactions:        len(res.Model.Document.Model.Reactions),
				KineticConstants: len(res.Model.KineticConstants),
				Objectives:       res.Model.NumObjectives(),
				SpeciesOrder:     res.Model.SpeciesOrder.Len(),
				KineticOrder:     res.Model.KineticConstantsOrder.Len(),
				Output:           output,
			}
			if a.jsonOut {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			if summary.Fallback {
				fmt.Fprintf(out, "Loaded stored model %s (graph extraction failed)\n", summary.Name)
			} else {
				fmt.Fprintf(out, "Built model %s\n", summary.Name)
			}
			fmt.Fprintf(out, "  species:            %d\n", summary.Species)
			fmt.Fprintf(out, "  reactions:          %d\n", summary.Reactions)
			fmt.Fprintf(out, "  kinetic constants:  %d\n", summary.KineticConstants)
			fmt.Fprintf(out, "  objectives:         %d\n", summary.Objectives)
			if output != "" {
				fmt.Fprintf(out, "Document written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().String("graph-jsonl", "", "Import nodes.jsonl and edges.jsonl from this directory before extracting")
	cmd.Flags().StringP("output", "o", "", "Also write the model document to this file")

	return cmd
}
