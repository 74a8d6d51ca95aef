package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/patient"
	"github.com/nvandessel/vpgen/internal/results"
)

// evaluateResult is the outcome of one evaluation as printed by the command.
type evaluateResult struct {
	Cost       blackbox.Cost `json:"cost"`
	Objectives []float64     `json:"objectives"`
	Sum        float64       `json:"sum"`
	Failed     bool          `json:"failed"`
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <model> <assignment.json>",
		Short: "Score one virtual patient",
		Long: `Simulate a model with the parameter values of a JSON object and print the
resulting cost. Parameters not named keep their model values. A failed
simulation scores the configured penalty in every objective.

With --exponents the object holds log10 exponents of kinetic constants, as
produced by 'vpgen sample --exponents' or an external optimizer over
'vpgen space'.

Examples:
  vpgen evaluate mapk patient.json
  vpgen evaluate mapk.xml exponents.json --exponents --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exponents, _ := cmd.Flags().GetBool("exponents")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			m, name, err := a.loadModel(ctx, args[0])
			if err != nil {
				return err
			}

			values, err := readAssignment(args[1])
			if err != nil {
				return err
			}
			assignment := patient.Assignment(values)
			if exponents {
				if assignment, err = patient.FromExponents(m, values); err != nil {
					return err
				}
			}

			sink, err := a.openSink(ctx, results.NewRunID(), name)
			if err != nil {
				return err
			}
			if sink != nil {
				defer sink.Close()
			}

			obj := a.newObjective(m, sink, nil)
			evalCtx := ctx
			if d := a.cfg.Simulation.Timeout; d > 0 {
				var cancel context.CancelFunc
				evalCtx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			cost, ok := obj.Evaluate(evalCtx, assignment)

			res := evaluateResult{Cost: cost, Objectives: cost.Flatten(), Sum: cost.Sum(), Failed: !ok}
			if a.jsonOut {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			if res.Failed {
				fmt.Fprintf(out, "Simulation failed; penalty %g substituted (see --log-level debug)\n", a.cfg.Objective.Penalty)
			}
			fmt.Fprintf(out, "normalization: %v\n", cost.Normalization)
			fmt.Fprintf(out, "transitory:    %v\n", cost.Transitory)
			fmt.Fprintf(out, "order:         %v\n", cost.Order)
			fmt.Fprintf(out, "sum:           %g\n", res.Sum)
			return nil
		},
	}

	cmd.Flags().Bool("exponents", false, "Read log10 exponents of kinetic constants instead of values")

	return cmd
}

// readAssignment reads a JSON object of parameter values.
func readAssignment(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment: %w", err)
	}
	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse assignment %s: %w", path, err)
	}
	return values, nil
}
