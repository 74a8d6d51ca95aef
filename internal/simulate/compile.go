// Package simulate compiles model documents into systems of ordinary
// differential equations and integrates them.
package simulate

import (
	"fmt"
	"math"
	"slices"

	"github.com/expr-lang/expr/ast"

	"github.com/nvandessel/vpgen/internal/sbml"
)

// fn evaluates a compiled formula against the environment vector.
type fn func(env []float64) float64

type flux struct {
	slot  int
	coeff float64
}

type reaction struct {
	id     string
	rate   fn
	fluxes []flux
}

// System is a compiled model. The environment vector holds state variables
// first, then constants, then assigned variables. A System is not safe for
// concurrent use; compile one per goroutine.
type System struct {
	slots    map[string]int
	state    []string
	initial  []float64
	consts   []string
	assigned []string
	assign   []fn
	rates    []fn // derivative of state variables driven by rate rules, nil otherwise
	reacts   []reaction
	env      []float64
}

// Compile builds the system of a document. Species without an assignment
// rule and parameters with a rate rule become state variables; the
// remaining parameters and compartment sizes are constants.
func Compile(doc *sbml.Document) (*System, error) {
	m := &doc.Model
	assignRules := make(map[string]sbml.Rule, len(m.Rules.Assignment))
	for _, r := range m.Rules.Assignment {
		if _, dup := assignRules[r.Variable]; dup {
			return nil, fmt.Errorf("variable %s has more than one assignment rule", r.Variable)
		}
		assignRules[r.Variable] = r
	}
	rateRules := make(map[string]sbml.Rule, len(m.Rules.Rate))
	for _, r := range m.Rules.Rate {
		if _, dup := rateRules[r.Variable]; dup {
			return nil, fmt.Errorf("variable %s has more than one rate rule", r.Variable)
		}
		if _, both := assignRules[r.Variable]; both {
			return nil, fmt.Errorf("variable %s has both an assignment and a rate rule", r.Variable)
		}
		rateRules[r.Variable] = r
	}

	s := &System{slots: make(map[string]int)}
	declare := func(id string) error {
		if _, dup := s.slots[id]; dup {
			return fmt.Errorf("duplicate identifier %s", id)
		}
		s.slots[id] = -1
		return nil
	}

	var initial, constValues []float64
	for _, sp := range m.Species {
		if err := declare(sp.ID); err != nil {
			return nil, err
		}
		if _, ok := assignRules[sp.ID]; ok {
			s.assigned = append(s.assigned, sp.ID)
			continue
		}
		s.state = append(s.state, sp.ID)
		initial = append(initial, sp.InitialConcentration)
	}
	for _, p := range m.Parameters {
		if err := declare(p.ID); err != nil {
			return nil, err
		}
		_, rate := rateRules[p.ID]
		_, assigned := assignRules[p.ID]
		switch {
		case rate:
			s.state = append(s.state, p.ID)
			initial = append(initial, p.Value)
		case assigned:
			s.assigned = append(s.assigned, p.ID)
		default:
			s.consts = append(s.consts, p.ID)
			constValues = append(constValues, p.Value)
		}
	}
	for _, c := range m.Compartments {
		if err := declare(c.ID); err != nil {
			return nil, err
		}
		s.consts = append(s.consts, c.ID)
		constValues = append(constValues, c.Size)
	}

	for i, id := range s.state {
		s.slots[id] = i
	}
	for i, id := range s.consts {
		s.slots[id] = len(s.state) + i
	}
	for i, id := range s.assigned {
		s.slots[id] = len(s.state) + len(s.consts) + i
	}
	s.initial = initial
	s.env = make([]float64, len(s.slots))
	copy(s.env[len(s.state):], constValues)

	// Assignment rules run in declaration order.
	for _, id := range s.assigned {
		f, err := s.compileFormula(assignRules[id].Math.Formula)
		if err != nil {
			return nil, fmt.Errorf("assignment rule for %s: %w", id, err)
		}
		s.assign = append(s.assign, f)
	}
	for _, r := range m.Rules.Rate {
		if _, ok := s.slots[r.Variable]; !ok {
			return nil, fmt.Errorf("rate rule for unknown variable %s", r.Variable)
		}
	}
	for _, r := range m.Rules.Assignment {
		if _, ok := s.slots[r.Variable]; !ok {
			return nil, fmt.Errorf("assignment rule for unknown variable %s", r.Variable)
		}
	}
	s.rates = make([]fn, len(s.state))
	for i, id := range s.state {
		r, ok := rateRules[id]
		if !ok {
			continue
		}
		f, err := s.compileFormula(r.Math.Formula)
		if err != nil {
			return nil, fmt.Errorf("rate rule for %s: %w", id, err)
		}
		s.rates[i] = f
	}

	for _, r := range m.Reactions {
		if r.KineticLaw == nil {
			return nil, fmt.Errorf("reaction %s has no kinetic law", r.ID)
		}
		rate, err := s.compileFormula(r.KineticLaw.Math.Formula)
		if err != nil {
			return nil, fmt.Errorf("kinetic law of %s: %w", r.ID, err)
		}
		cr := reaction{id: r.ID, rate: rate}
		for _, side := range []struct {
			refs []sbml.SpeciesReference
			sign float64
		}{{r.Reactants, -1}, {r.Products, 1}} {
			for _, ref := range side.refs {
				slot, ok := s.slots[ref.Species]
				if !ok {
					return nil, fmt.Errorf("reaction %s references unknown species %s", r.ID, ref.Species)
				}
				// Species driven by rules are not changed by reactions.
				if slot >= len(s.state) || s.rates[slot] != nil {
					continue
				}
				cr.fluxes = append(cr.fluxes, flux{slot: slot, coeff: side.sign * ref.Stoichiometry})
			}
		}
		s.reacts = append(s.reacts, cr)
	}
	return s, nil
}

// Variables returns the trajectory columns: state variables followed by
// assigned variables.
func (s *System) Variables() []string {
	return slices.Concat(s.state, s.assigned)
}

// Set overrides a constant, or the initial value of a state variable.
func (s *System) Set(id string, v float64) error {
	slot, ok := s.slots[id]
	if !ok {
		return fmt.Errorf("unknown parameter %s", id)
	}
	switch {
	case slot < len(s.state):
		s.initial[slot] = v
	case slot < len(s.state)+len(s.consts):
		s.env[slot] = v
	default:
		return fmt.Errorf("%s is set by an assignment rule", id)
	}
	return nil
}

// Value returns the current value of a constant.
func (s *System) Value(id string) (float64, bool) {
	slot, ok := s.slots[id]
	if !ok || slot < len(s.state) || slot >= len(s.state)+len(s.consts) {
		return 0, false
	}
	return s.env[slot], true
}

// load copies y into the environment and evaluates assignment rules.
func (s *System) load(y []float64) {
	copy(s.env, y)
	base := len(s.state) + len(s.consts)
	for i, f := range s.assign {
		s.env[base+i] = f(s.env)
	}
}

// derivatives computes dy/dt at state y.
func (s *System) derivatives(y, dy []float64) {
	s.load(y)
	for i := range dy {
		if f := s.rates[i]; f != nil {
			dy[i] = f(s.env)
		} else {
			dy[i] = 0
		}
	}
	for _, r := range s.reacts {
		v := r.rate(s.env)
		for _, fl := range r.fluxes {
			dy[fl.slot] += fl.coeff * v
		}
	}
}

// observe writes the values of Variables at state y into row.
func (s *System) observe(y, row []float64) {
	s.load(y)
	copy(row, y)
	base := len(s.state) + len(s.consts)
	copy(row[len(y):], s.env[base:])
}

func (s *System) compileFormula(formula string) (fn, error) {
	node, err := sbml.ParseFormula(formula)
	if err != nil {
		return nil, err
	}
	return s.compileNode(node)
}

func (s *System) compileNode(n ast.Node) (fn, error) {
	switch n := n.(type) {
	case *ast.IntegerNode:
		v := float64(n.Value)
		return func([]float64) float64 { return v }, nil
	case *ast.FloatNode:
		v := n.Value
		return func([]float64) float64 { return v }, nil
	case *ast.IdentifierNode:
		slot, ok := s.slots[n.Value]
		if !ok {
			return nil, fmt.Errorf("unknown identifier %s", n.Value)
		}
		return func(env []float64) float64 { return env[slot] }, nil
	case *ast.UnaryNode:
		x, err := s.compileNode(n.Node)
		if err != nil {
			return nil, err
		}
		if n.Operator == "+" {
			return x, nil
		}
		return func(env []float64) float64 { return -x(env) }, nil
	case *ast.BinaryNode:
		l, err := s.compileNode(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := s.compileNode(n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case "+":
			return func(env []float64) float64 { return l(env) + r(env) }, nil
		case "-":
			return func(env []float64) float64 { return l(env) - r(env) }, nil
		case "*":
			return func(env []float64) float64 { return l(env) * r(env) }, nil
		case "/":
			return func(env []float64) float64 { return l(env) / r(env) }, nil
		case "^", "**":
			if in, ok := n.Right.(*ast.IntegerNode); ok && in.Value >= 0 && in.Value <= 16 {
				k := in.Value
				return func(env []float64) float64 { return intPow(l(env), k) }, nil
			}
			return func(env []float64) float64 { return math.Pow(l(env), r(env)) }, nil
		}
		return nil, fmt.Errorf("unsupported operator %q", n.Operator)
	default:
		return nil, fmt.Errorf("unsupported expression %T", n)
	}
}

func intPow(x float64, k int) float64 {
	out := 1.0
	for k > 0 {
		if k&1 == 1 {
			out *= x
		}
		x *= x
		k >>= 1
	}
	return out
}
