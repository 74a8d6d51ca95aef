// Package patient draws virtual patients: value assignments for the kinetic
// constants of a reaction model.
package patient

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/vpgen/internal/model"
)

// Assignment maps parameter ids to values.
type Assignment map[string]float64

// Sampler draws assignments from a random source. A Sampler is not safe for
// concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler whose draws are fully determined by seed.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSampler returns a sampler seeded from the runtime's random source.
func NewRandomSampler() *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// Exponents draws one log-domain exponent per kinetic constant, uniformly in
// its category interval. Constants are visited in sorted order so a seeded
// sampler is reproducible.
func (s *Sampler) Exponents(m *model.ReactionModel) map[string]float64 {
	out := make(map[string]float64, len(m.KineticConstants))
	for _, id := range m.KineticConstantIDs() {
		iv := m.KineticConstants[id].Interval()
		out[id] = iv.Lower + s.rng.Float64()*(iv.Upper-iv.Lower)
	}
	return out
}

// Sample draws a virtual patient: 10 ** uniform(lower, upper) per constant.
func (s *Sampler) Sample(m *model.ReactionModel) Assignment {
	exps := s.Exponents(m)
	a := make(Assignment, len(exps))
	for id, e := range exps {
		a[id] = math.Pow(10, e)
	}
	return a
}

// FromExponents converts a log-domain configuration, as produced by an
// external optimizer over Space, into an assignment. Every key must be a
// kinetic constant of m and lie within its category interval.
func FromExponents(m *model.ReactionModel, exps map[string]float64) (Assignment, error) {
	a := make(Assignment, len(exps))
	for id, e := range exps {
		c, ok := m.KineticConstants[id]
		if !ok {
			return nil, fmt.Errorf("unknown kinetic constant %q", id)
		}
		if iv := c.Interval(); !iv.Contains(e) {
			return nil, fmt.Errorf("exponent %g of %s outside [%g, %g]", e, id, iv.Lower, iv.Upper)
		}
		a[id] = math.Pow(10, e)
	}
	return a, nil
}

// Dimension is one axis of the search space, in exponent units.
type Dimension struct {
	Name     string                 `json:"name"`
	Category model.ConstantCategory `json:"category"`
	Lower    float64                `json:"lower"`
	Upper    float64                `json:"upper"`
}

// Space lists the search space of m sorted by parameter id.
func Space(m *model.ReactionModel) []Dimension {
	ids := m.KineticConstantIDs()
	dims := make([]Dimension, 0, len(ids))
	for _, id := range ids {
		c := m.KineticConstants[id]
		iv := c.Interval()
		dims = append(dims, Dimension{Name: id, Category: c, Lower: iv.Lower, Upper: iv.Upper})
	}
	return dims
}
