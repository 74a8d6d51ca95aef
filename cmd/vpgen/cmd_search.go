package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/patient"
	"github.com/nvandessel/vpgen/internal/results"
	"github.com/nvandessel/vpgen/internal/search"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <model>",
		Short: "Random search for the best virtual patient",
		Long: `Evaluate randomly drawn virtual patients and report the one with the lowest
summed objective. Every evaluation goes to the configured results sink.

Ctrl-C stops the search and reports the best patient found so far.

Examples:
  vpgen search mapk --iterations 500 --seed 3
  vpgen search mapk --history history.json --metrics-addr :9100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iterations, _ := cmd.Flags().GetInt("iterations")
			seed, _ := cmd.Flags().GetUint64("seed")
			history, _ := cmd.Flags().GetString("history")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

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

			runID := results.NewRunID()
			sink, err := a.openSink(ctx, runID, name)
			if err != nil {
				return err
			}
			if sink != nil {
				defer sink.Close()
			}

			reg := prometheus.NewRegistry()
			met := metrics.New(reg)
			if metricsAddr != "" {
				shutdown, err := serveMetrics(metricsAddr, reg, a.log)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			sampler := patient.NewRandomSampler()
			if cmd.Flags().Changed("seed") {
				sampler = patient.NewSampler(seed)
			}
			runner := &search.Runner{
				Objective: a.newObjective(m, sink, met),
				Sampler:   sampler,
				Metrics:   met,
				Logger:    a.log,
			}

			a.log.Info("search started", "run_id", runID, "model", name, "iterations", iterations)
			res, runErr := runner.Run(ctx, runID, search.Options{Iterations: iterations, Timeout: a.cfg.Simulation.Timeout})
			if res == nil {
				return runErr
			}
			if errors.Is(runErr, context.Canceled) {
				a.log.Warn("search interrupted", "completed", len(res.Steps))
			} else if runErr != nil {
				return runErr
			}

			if history != "" {
				if err := writeHistory(history, res); err != nil {
					return err
				}
			}

			best, ok := res.BestStep()
			if a.jsonOut {
				out := map[string]any{"run_id": res.RunID, "iterations": len(res.Steps)}
				if ok {
					out["best"] = best
				}
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %s: %d iterations\n", res.RunID, len(res.Steps))
			if !ok {
				fmt.Fprintln(w, "No evaluation completed.")
				return nil
			}
			fmt.Fprintf(w, "Best iteration %d, sum %g\n", best.Index, best.Sum)
			for _, id := range m.KineticConstantIDs() {
				fmt.Fprintf(w, "  %-24s 1e%.4f\n", id, best.Exponents[id])
			}
			return nil
		},
	}

	cmd.Flags().IntP("iterations", "n", constants.DefaultSearchIterations, "Number of virtual patients to evaluate")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible draws (random when unset)")
	cmd.Flags().String("history", "", "Write the full search history as JSON to this file")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while searching")

	return cmd
}

// serveMetrics serves reg on addr under /metrics until the returned shutdown
// is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

// writeHistory writes res as indented JSON.
func writeHistory(path string, res *search.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
