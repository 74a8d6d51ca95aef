// Package blackbox scores a virtual patient by simulating a reaction model
// and reducing its trajectories to a multi-objective cost.
package blackbox

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/kinetics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/patient"
	"github.com/nvandessel/vpgen/internal/reactome"
	"github.com/nvandessel/vpgen/internal/simulate"
)

// DefaultTransitory is the fraction of the horizon where the transitory
// slope starts.
const DefaultTransitory = constants.DefaultTransitory

// kineticOrderScale normalises the log10 gap between two ordered constants.
const kineticOrderScale = 40

// Config holds the simulation settings of an evaluation.
type Config struct {
	Simulation simulate.Options
	Transitory float64
}

// DefaultConfig returns the default horizon, sampling and transitory
// fraction.
func DefaultConfig() Config {
	return Config{Simulation: simulate.DefaultOptions(), Transitory: DefaultTransitory}
}

// Validate checks the transitory fraction.
func (c Config) Validate() error {
	if c.Transitory < 0 || c.Transitory >= 1 {
		return fmt.Errorf("transitory fraction %g outside [0, 1)", c.Transitory)
	}
	return nil
}

// SimulationError reports a failed evaluation. Op names the stage that
// failed: compile, override, integrate or score.
type SimulationError struct {
	Op  string
	Err error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed: %s: %v", e.Op, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// Cost is the objective vector of one evaluation, grouped by component.
type Cost struct {
	Normalization []float64 `json:"normalization"`
	Transitory    []float64 `json:"transitory"`
	Order         []float64 `json:"order"`
	Modifiers     []float64 `json:"modifiers"`
}

// Flatten concatenates the components in a fixed order.
func (c Cost) Flatten() []float64 {
	return slices.Concat(c.Normalization, c.Transitory, c.Order, c.Modifiers)
}

// Sum is the single-objective reduction of the cost.
func (c Cost) Sum() float64 {
	var total float64
	for _, v := range c.Flatten() {
		total += v
	}
	return total
}

// PenaltyCost is the cost substituted for a failed evaluation: every slot a
// successful evaluation of m would fill holds penalty.
func PenaltyCost(m *model.ReactionModel, penalty float64) Cost {
	species := len(m.Document.Model.Species)
	return Cost{
		Normalization: fill(species, penalty),
		Transitory:    fill(species, penalty),
		Order:         fill(m.SpeciesOrder.Len()+m.KineticConstantsOrder.Len(), penalty),
		Modifiers:     []float64{},
	}
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Evaluate simulates m with every parameter of a overridden and scores the
// result. m is not modified, so concurrent evaluations of one model are
// safe. Every failure is a *SimulationError.
func Evaluate(ctx context.Context, m *model.ReactionModel, a patient.Assignment, cfg Config) (Cost, error) {
	if err := cfg.Validate(); err != nil {
		return Cost{}, &SimulationError{Op: "configure", Err: err}
	}
	sys, err := simulate.Compile(m.Document)
	if err != nil {
		return Cost{}, &SimulationError{Op: "compile", Err: err}
	}
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := sys.Set(id, a[id]); err != nil {
			return Cost{}, &SimulationError{Op: "override", Err: err}
		}
	}

	traj, err := simulate.Integrate(ctx, sys, cfg.Simulation)
	if err != nil {
		return Cost{}, &SimulationError{Op: "integrate", Err: err}
	}

	cost, err := score(m, sys, traj, cfg.Transitory)
	if err != nil {
		return Cost{}, &SimulationError{Op: "score", Err: err}
	}
	for _, v := range cost.Flatten() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Cost{}, &SimulationError{Op: "score", Err: fmt.Errorf("non-finite cost %v", v)}
		}
	}
	return cost, nil
}

func score(m *model.ReactionModel, sys *simulate.System, traj *simulate.Trajectory, transitory float64) (Cost, error) {
	species := m.Species()
	cost := Cost{
		Normalization: make([]float64, 0, len(species)),
		Transitory:    make([]float64, 0, len(species)),
		Order:         make([]float64, 0, m.SpeciesOrder.Len()+m.KineticConstantsOrder.Len()),
		Modifiers:     []float64{},
	}
	final := make(map[string]float64, len(species))

	points := len(traj.Times)
	x1 := int(float64(points-1) * transitory)
	x2 := points - 1

	for _, sid := range species {
		values, ok := traj.Column(sid)
		if !ok {
			return Cost{}, fmt.Errorf("no trajectory for species %s", sid)
		}
		final[sid] = values[x2]
		cost.Normalization = append(cost.Normalization, outside(values))

		mean := values
		if id, err := reactome.ParseSpeciesID(sid); err == nil {
			if col, ok := traj.Column(kinetics.MeanID(id)); ok {
				mean = col
			}
		}
		var slope float64
		if x2 > x1 {
			slope = (mean[x2] - mean[x1]) / float64(x2-x1)
		}
		cost.Transitory = append(cost.Transitory, math.Atan(math.Abs(slope)))
	}

	for _, p := range m.SpeciesOrder.Pairs() {
		a, b := reactome.SpeciesID(p.A), reactome.SpeciesID(p.B)
		va, okA := final[a]
		vb, okB := final[b]
		if !okA || !okB {
			return Cost{}, fmt.Errorf("species order pair (%s, %s) names an unknown species", a, b)
		}
		cost.Order = append(cost.Order, math.Log(math.Max(va-vb, 0)+1))
	}
	for _, p := range m.KineticConstantsOrder.Pairs() {
		va, okA := sys.Value(p.A)
		vb, okB := sys.Value(p.B)
		if !okA || !okB {
			return Cost{}, fmt.Errorf("kinetic order pair (%s, %s) names an unknown constant", p.A, p.B)
		}
		cost.Order = append(cost.Order, math.Max(math.Log10(va)-math.Log10(vb), 0)/kineticOrderScale)
	}
	return cost, nil
}

// outside is the fraction of samples outside [0, 1].
func outside(values []float64) float64 {
	var n int
	for _, v := range values {
		if v < 0 || v > 1 {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
