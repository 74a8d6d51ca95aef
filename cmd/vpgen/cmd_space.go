package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/patient"
)

func newSpaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "space <model>",
		Short: "Print the search space of a model",
		Long: `Print one dimension per kinetic constant: its category and the log10
interval its value is searched in. External optimizers propose exponents in
this space; 'vpgen evaluate --exponents' scores them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, _, err := a.loadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dims := patient.Space(m)

			if a.jsonOut {
				return writeJSON(cmd, map[string]any{
					"dimensions": dims,
					"objectives": m.NumObjectives(),
				})
			}
			out := cmd.OutOrStdout()
			for _, d := range dims {
				fmt.Fprintf(out, "%-24s %-22s [%g, %g]\n", d.Name, d.Category, d.Lower, d.Upper)
			}
			fmt.Fprintf(out, "%d dimensions, %d objectives\n", len(dims), m.NumObjectives())
			return nil
		},
	}
}
