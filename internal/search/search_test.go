package search

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nvandessel/vpgen/internal/assemble"
	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/extract"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/order"
	"github.com/nvandessel/vpgen/internal/patient"
	"github.com/nvandessel/vpgen/internal/reactome"
)

// newObjective wraps E1 -> E2 with a short horizon.
func newObjective(t *testing.T) *blackbox.Objective {
	t.Helper()
	e1 := reactome.NewPhysicalEntity(1, reactome.Unbounded)
	e2 := reactome.NewPhysicalEntity(2, reactome.Unbounded)
	r := reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{
		{Entity: e1, Metadata: reactome.EntityMetadata{Category: reactome.Input, Stoichiometry: 1}},
		{Entity: e2, Metadata: reactome.EntityMetadata{Category: reactome.Output, Stoichiometry: 1}},
	})
	n, err := extract.NewNetwork([]reactome.PhysicalEntity{e1, e2}, []reactome.ReactionLikeEvent{r}, nil)
	if err != nil {
		t.Fatalf("NewNetwork() error = %v", err)
	}
	var species order.PartialOrder[reactome.DbID]
	species.MustAdd(1, 2)
	m, err := assemble.Assemble(n, species, nil)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	obj := blackbox.NewObjective(m)
	obj.Config.Simulation.End = 10
	obj.Config.Simulation.Points = 51
	obj.Config.Simulation.MaxSteps = 2000
	return obj
}

func TestRunner_Run(t *testing.T) {
	obj := newObjective(t)
	reg := prometheus.NewRegistry()
	obj.Metrics = metrics.New(reg)
	r := &Runner{Objective: obj, Sampler: patient.NewSampler(7), Metrics: obj.Metrics}

	res, err := r.Run(context.Background(), "run-1", Options{Iterations: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.RunID != "run-1" || len(res.Steps) != 5 {
		t.Fatalf("Run() = %d steps for %q, want 5 for run-1", len(res.Steps), res.RunID)
	}

	best, ok := res.BestStep()
	if !ok {
		t.Fatal("BestStep() found nothing")
	}
	for i, s := range res.Steps {
		if s.Index != i {
			t.Errorf("Steps[%d].Index = %d", i, s.Index)
		}
		if len(s.Objectives) != obj.Model.NumObjectives() {
			t.Errorf("Steps[%d] has %d objectives, want %d", i, len(s.Objectives), obj.Model.NumObjectives())
		}
		if len(s.Exponents) != len(obj.Model.KineticConstants) {
			t.Errorf("Steps[%d] has %d exponents, want %d", i, len(s.Exponents), len(obj.Model.KineticConstants))
		}
		if s.Sum < best.Sum {
			t.Errorf("Steps[%d].Sum = %g below best %g", i, s.Sum, best.Sum)
		}
	}
	if got := testutil.ToFloat64(obj.Metrics.BestObjective); got != best.Sum {
		t.Errorf("best_objective = %g, want %g", got, best.Sum)
	}
}

func TestRunner_Reproducible(t *testing.T) {
	run := func() *Result {
		r := &Runner{Objective: newObjective(t), Sampler: patient.NewSampler(42)}
		res, err := r.Run(context.Background(), "seeded", Options{Iterations: 3})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return res
	}
	a, b := run(), run()
	for i := range a.Steps {
		for id, e := range a.Steps[i].Exponents {
			if b.Steps[i].Exponents[id] != e {
				t.Fatalf("step %d exponent %s differs: %g vs %g", i, id, e, b.Steps[i].Exponents[id])
			}
		}
		if a.Steps[i].Sum != b.Steps[i].Sum {
			t.Errorf("step %d sum differs: %g vs %g", i, a.Steps[i].Sum, b.Steps[i].Sum)
		}
	}
	if a.Best != b.Best {
		t.Errorf("best differs: %d vs %d", a.Best, b.Best)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Objective: newObjective(t), Sampler: patient.NewSampler(1)}
	res, err := r.Run(ctx, "cancelled", Options{Iterations: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if len(res.Steps) != 0 {
		t.Errorf("Run() recorded %d steps after cancellation", len(res.Steps))
	}
	if _, ok := res.BestStep(); ok {
		t.Error("BestStep() found a step in an empty run")
	}
}

func TestRunner_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		runner *Runner
		opts   Options
	}{
		{"no objective", &Runner{}, DefaultOptions()},
		{"zero iterations", &Runner{Objective: newObjective(t)}, Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.runner.Run(context.Background(), "x", tt.opts); err == nil {
				t.Error("Run() error = nil, want error")
			}
		})
	}
}
