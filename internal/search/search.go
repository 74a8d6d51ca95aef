// Package search drives a random search over the kinetic constants of a
// reaction model. Each iteration draws one virtual patient in exponent
// space, evaluates it through a blackbox.Objective and keeps the best
// summed objective seen so far.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/patient"
)

// Options configures a run.
type Options struct {
	// Iterations is the number of virtual patients evaluated.
	Iterations int
	// Timeout bounds each evaluation. Zero disables the deadline.
	Timeout time.Duration
}

// DefaultOptions returns the default iteration count with no deadline.
func DefaultOptions() Options {
	return Options{Iterations: constants.DefaultSearchIterations}
}

// Step is the record of one iteration.
type Step struct {
	Index      int                `json:"iteration"`
	Exponents  map[string]float64 `json:"exponents"`
	Objectives []float64          `json:"objectives"`
	Sum        float64            `json:"sum"`
	Failed     bool               `json:"failed"`
}

// Result is the history of a run.
type Result struct {
	RunID string `json:"run_id"`
	Steps []Step `json:"steps"`
	// Best indexes Steps, or is -1 before the first completed iteration.
	Best int `json:"best"`
}

// BestStep returns the step with the lowest sum.
func (r *Result) BestStep() (Step, bool) {
	if r.Best < 0 || r.Best >= len(r.Steps) {
		return Step{}, false
	}
	return r.Steps[r.Best], true
}

// Runner runs random searches.
type Runner struct {
	Objective *blackbox.Objective
	Sampler   *patient.Sampler
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run evaluates opts.Iterations virtual patients. When ctx ends the steps
// completed so far are returned together with ctx's error; an evaluation
// interrupted by the cancellation is not recorded.
func (r *Runner) Run(ctx context.Context, runID string, opts Options) (*Result, error) {
	if r.Objective == nil || r.Objective.Model == nil {
		return nil, errors.New("search: runner has no objective")
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("search: iterations must be positive, got %d", opts.Iterations)
	}
	sampler := r.Sampler
	if sampler == nil {
		sampler = patient.NewRandomSampler()
	}
	m := r.Objective.Model
	log := r.logger().With("run_id", runID)

	res := &Result{RunID: runID, Steps: make([]Step, 0, opts.Iterations), Best: -1}
	for i := range opts.Iterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		exps := sampler.Exponents(m)
		a, err := patient.FromExponents(m, exps)
		if err != nil {
			return res, fmt.Errorf("search: iteration %d: %w", i, err)
		}

		cost, ok := r.evaluate(ctx, a, opts.Timeout)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		step := Step{
			Index:      i,
			Exponents:  exps,
			Objectives: cost.Flatten(),
			Sum:        cost.Sum(),
			Failed:     !ok,
		}
		res.Steps = append(res.Steps, step)
		log.Debug("iteration done", "iteration", i, "sum", step.Sum, "failed", step.Failed)

		if res.Best < 0 || step.Sum < res.Steps[res.Best].Sum {
			res.Best = len(res.Steps) - 1
			r.Metrics.SetBest(step.Sum)
			log.Info("new best", "iteration", i, "sum", step.Sum)
		}
	}
	return res, nil
}

func (r *Runner) evaluate(ctx context.Context, a patient.Assignment, timeout time.Duration) (blackbox.Cost, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Objective.Evaluate(ctx, a)
}
