package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/patient"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <model>",
		Short: "Draw virtual patients for a model",
		Long: `Draw virtual patients: one value per kinetic constant, log-uniform in the
interval of the constant's category.

<model> is a model document path or the name of a stored document.

Examples:
  vpgen sample mapk -n 5 --seed 1
  vpgen sample mapk.xml --exponents --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetUint64("seed")
			exponents, _ := cmd.Flags().GetBool("exponents")
			if n <= 0 {
				return fmt.Errorf("--count must be positive, got %d", n)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, _, err := a.loadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			sampler := patient.NewRandomSampler()
			if cmd.Flags().Changed("seed") {
				sampler = patient.NewSampler(seed)
			}

			patients := make([]map[string]float64, 0, n)
			for range n {
				if exponents {
					patients = append(patients, sampler.Exponents(m))
				} else {
					patients = append(patients, sampler.Sample(m))
				}
			}

			if a.jsonOut {
				return writeJSON(cmd, patients)
			}
			out := cmd.OutOrStdout()
			ids := m.KineticConstantIDs()
			for i, p := range patients {
				fmt.Fprintf(out, "Patient %d:\n", i+1)
				for _, id := range ids {
					fmt.Fprintf(out, "  %-24s %g\n", id, p[id])
				}
			}
			return nil
		},
	}

	cmd.Flags().IntP("count", "n", constants.DefaultSamples, "Number of virtual patients")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible draws (random when unset)")
	cmd.Flags().Bool("exponents", false, "Print log10 exponents instead of values")

	return cmd
}
