// Package kinetics provides the rate laws attached to reactions when a model
// is assembled.
//
// A Law turns one reaction into a textual rate formula plus the parameters it
// introduced. Formulas use infix notation with + - * / ^ and parentheses and
// reference species by their model ids (see reactome.SpeciesID).
package kinetics

import (
	"fmt"
	"strings"

	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/reactome"
)

// DefaultHill is the Hill coefficient of modifier terms.
const DefaultHill = 10

// Parameter is a kinetic constant introduced by a law.
type Parameter struct {
	ID       string
	Category model.ConstantCategory
	Value    float64
}

// Rate is the result of applying a law to a reaction.
type Rate struct {
	Formula    string
	Parameters []Parameter
}

// Law computes the rate expression of a reaction.
type Law interface {
	Apply(r reactome.ReactionLikeEvent) (Rate, error)
}

// LawFunc adapts a function to the Law interface.
type LawFunc func(r reactome.ReactionLikeEvent) (Rate, error)

// Apply calls f(r).
func (f LawFunc) Apply(r reactome.ReactionLikeEvent) (Rate, error) { return f(r) }

// Selector picks the law for each reaction: an override when one is
// registered for the reaction id, the default otherwise.
type Selector struct {
	Default   Law
	Overrides map[reactome.DbID]Law
}

// NewSelector returns a selector falling back to the mass action law with
// Hill modifiers.
func NewSelector() *Selector {
	return &Selector{Default: MassActionHill{Hill: DefaultHill}}
}

// Override registers law for one reaction.
func (s *Selector) Override(id reactome.DbID, law Law) {
	if s.Overrides == nil {
		s.Overrides = make(map[reactome.DbID]Law)
	}
	s.Overrides[id] = law
}

// For returns the law to use for reaction id.
func (s *Selector) For(id reactome.DbID) Law {
	if s != nil {
		if law, ok := s.Overrides[id]; ok {
			return law
		}
		if s.Default != nil {
			return s.Default
		}
	}
	return MassActionHill{Hill: DefaultHill}
}

// Parameter ids.

// ReactionSpeedID is the forward rate constant of a reaction.
func ReactionSpeedID(reaction reactome.DbID) string {
	return "k_f_" + reactome.ReactionID(reaction)
}

// HalfSaturationID is the half saturation constant of the i-th modifier of a
// reaction.
func HalfSaturationID(i int, reaction reactome.DbID) string {
	return fmt.Sprintf("k_h_%d_%s", i, reactome.ReactionID(reaction))
}

// ProductionSpeedID is the rate of the synthetic source of a species.
func ProductionSpeedID(species reactome.DbID) string {
	return "k_f_in_" + reactome.SpeciesID(species)
}

// ConsumptionSpeedID is the rate of the synthetic sink of a species.
func ConsumptionSpeedID(species reactome.DbID) string {
	return "k_f_out_" + reactome.SpeciesID(species)
}

// ConcentrationID is the fixed concentration of a stable pool species.
func ConcentrationID(species reactome.DbID) string {
	return "k_" + reactome.SpeciesID(species)
}

// MeanID is the running mean of a species.
func MeanID(species reactome.DbID) string {
	return "mean_" + reactome.SpeciesID(species)
}

// TimeID is the elapsed time parameter.
const TimeID = "time_"

// MassActionHill is mass action on the reaction inputs scaled by one Hill
// term per modifier: x^h/(k+x^h) for enzymes and positive regulators,
// k/(k+x^h) for negative regulators.
type MassActionHill struct {
	Hill int
}

// Apply implements Law.
func (l MassActionHill) Apply(r reactome.ReactionLikeEvent) (Rate, error) {
	rate, err := MassAction{}.Apply(r)
	if err != nil {
		return Rate{}, err
	}
	hill := l.Hill
	if hill <= 0 {
		return Rate{}, fmt.Errorf("hill coefficient must be positive, got %d", hill)
	}

	var terms []string
	for i, p := range r.Modifiers() {
		k := HalfSaturationID(i, r.ID)
		x := fmt.Sprintf("%s^%d", reactome.SpeciesID(p.Entity.ID), hill)
		switch m := p.Metadata.(type) {
		case reactome.ModifierMetadata:
			switch m.Category {
			case reactome.NegativeRegulator:
				terms = append(terms, fmt.Sprintf("(%s / (%s + %s))", k, k, x))
			case reactome.Enzyme, reactome.PositiveRegulator:
				terms = append(terms, fmt.Sprintf("(%s / (%s + %s))", x, k, x))
			default:
				panic(fmt.Sprintf("kinetics: unknown modifier category %q", m.Category))
			}
		case reactome.EntityMetadata:
			panic("kinetics: Modifiers returned an entity participant")
		default:
			panic(fmt.Sprintf("kinetics: unknown participant metadata %T", m))
		}
		rate.Parameters = append(rate.Parameters, Parameter{ID: k, Category: model.HalfSaturation, Value: 0.5})
	}
	if len(terms) > 0 {
		rate.Formula = rate.Formula + " * " + strings.Join(terms, " * ")
	}
	return rate, nil
}

// MassAction is the law of mass action on the reaction inputs.
type MassAction struct{}

// Apply implements Law.
func (MassAction) Apply(r reactome.ReactionLikeEvent) (Rate, error) {
	k := ReactionSpeedID(r.ID)
	factors := []string{k}
	for _, p := range r.Entities(reactome.Input) {
		switch m := p.Metadata.(type) {
		case reactome.EntityMetadata:
			factors = append(factors, fmt.Sprintf("%s^%d", reactome.SpeciesID(p.Entity.ID), m.Stoichiometry))
		case reactome.ModifierMetadata:
			panic("kinetics: Entities returned a modifier participant")
		default:
			panic(fmt.Sprintf("kinetics: unknown participant metadata %T", m))
		}
	}
	return Rate{
		Formula:    "(" + strings.Join(factors, " * ") + ")",
		Parameters: []Parameter{{ID: k, Category: model.ReactionSpeed, Value: 1}},
	}, nil
}
