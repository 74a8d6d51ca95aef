// Package assemble turns an extracted network into a reaction model.
package assemble

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/vpgen/internal/extract"
	"github.com/nvandessel/vpgen/internal/kinetics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/order"
	"github.com/nvandessel/vpgen/internal/reactome"
	"github.com/nvandessel/vpgen/internal/sbml"
)

const (
	// DefaultCompartment holds every species.
	DefaultCompartment = "default_compartment"
	// MeanEpsilon keeps the running mean rate finite at time zero.
	MeanEpsilon = "0.00001"
	// StablePoolConcentration is the initial value of stable pool constants.
	StablePoolConcentration = 0.9
)

// SBO terms of modifier roles.
var modifierTerms = map[reactome.ModifierCategory]string{
	reactome.Enzyme:            "SBO:0000460",
	reactome.PositiveRegulator: "SBO:0000459",
	reactome.NegativeRegulator: "SBO:0000020",
}

// reactionPart is everything one reaction contributes to the model.
type reactionPart struct {
	id         reactome.DbID
	reaction   sbml.Reaction
	parameters []kinetics.Parameter
	causes     []order.Pair[reactome.DbID]
}

// Assembler builds models. The zero value uses the default kinetic law and
// slog.Default.
type Assembler struct {
	Laws   *kinetics.Selector
	Logger *slog.Logger
}

// Assemble builds a model with the default assembler.
func Assemble(n *extract.Network, speciesOrder order.PartialOrder[reactome.DbID], laws *kinetics.Selector) (*model.ReactionModel, error) {
	return (&Assembler{Laws: laws}).Assemble(n, speciesOrder)
}

// Assemble emits compartments, species with their running means, boundary
// reactions for interface species, one reaction per network reaction with
// its kinetic law, and the derived kinetic constant order. speciesOrder is
// carried through unchanged and must only reference network entities.
func (a *Assembler) Assemble(n *extract.Network, speciesOrder order.PartialOrder[reactome.DbID]) (*model.ReactionModel, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		return nil, reactome.Violation("assemble: nil network")
	}
	for _, p := range speciesOrder.Pairs() {
		for _, id := range []reactome.DbID{p.A, p.B} {
			if _, ok := n.Entity(id); !ok {
				return nil, reactome.Violation("species order references entity %d outside the network", id)
			}
		}
	}

	doc := sbml.New("vpgen")
	m := &model.ReactionModel{
		Document:         doc,
		SpeciesOrder:     speciesOrder,
		KineticConstants: make(map[string]model.ConstantCategory),
		OtherParameters:  make(map[string]model.OtherParameterCategory),
	}

	doc.Model.Compartments = append(doc.Model.Compartments, compartment(DefaultCompartment))
	for _, c := range n.Compartments() {
		doc.Model.Compartments = append(doc.Model.Compartments, compartment(reactome.CompartmentID(c.ID)))
	}

	addOther(m, kinetics.TimeID, model.Time)
	doc.Model.Rules.Rate = append(doc.Model.Rules.Rate, sbml.Rule{Variable: kinetics.TimeID, Math: sbml.Math{Formula: "1"}})

	for _, e := range n.Entities() {
		if err := addSpecies(m, n, e.ID); err != nil {
			return nil, err
		}
	}

	parts := make([]reactionPart, 0, len(n.Reactions()))
	for _, r := range n.Reactions() {
		part, err := a.reaction(r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	// merge
	primary := make(map[reactome.DbID][]string)
	var causes []order.Pair[reactome.DbID]
	for _, part := range parts {
		doc.Model.Reactions = append(doc.Model.Reactions, part.reaction)
		for _, p := range part.parameters {
			if err := addConstant(m, p); err != nil {
				return nil, err
			}
			if p.Category.Primary() {
				primary[part.id] = append(primary[part.id], p.ID)
			}
		}
		causes = append(causes, part.causes...)
	}

	kept, dropped := order.Acyclic(causes)
	for _, p := range dropped {
		logger.Warn("dropping cyclic reaction order", "before", p.A, "after", p.B)
	}
	for _, p := range kept {
		for _, k1 := range primary[p.A] {
			for _, k2 := range primary[p.B] {
				if err := m.KineticConstantsOrder.Add(k1, k2); err != nil {
					return nil, reactome.Violation("kinetic constant order: %v", err)
				}
			}
		}
	}

	if err := doc.Model.SetOrders(m.Orders()); err != nil {
		return nil, err
	}

	logger.Info("assembled model",
		"species", len(doc.Model.Species),
		"reactions", len(doc.Model.Reactions),
		"kinetic_constants", len(m.KineticConstants),
		"species_order", m.SpeciesOrder.Len(),
		"kinetic_constants_order", m.KineticConstantsOrder.Len(),
		"dropped_pairs", len(dropped))
	return m, nil
}

func compartment(id string) sbml.Compartment {
	return sbml.Compartment{ID: id, SpatialDimensions: 3, Size: 1, Units: "litre", Constant: true}
}

// addSpecies emits a species, its running mean and the boundary handling
// its interface role calls for.
func addSpecies(m *model.ReactionModel, n *extract.Network, id reactome.DbID) error {
	doc := &m.Document.Model
	sid := reactome.SpeciesID(id)
	doc.Species = append(doc.Species, sbml.Species{
		ID:             sid,
		Compartment:    DefaultCompartment,
		SubstanceUnits: "mole",
	})

	mean := kinetics.MeanID(id)
	addOther(m, mean, model.SpeciesMean)
	doc.Rules.Rate = append(doc.Rules.Rate, sbml.Rule{
		Variable: mean,
		Math:     sbml.Math{Formula: fmt.Sprintf("(%s - %s) / (%s + %s)", sid, mean, kinetics.TimeID, MeanEpsilon)},
	})

	in, out := n.IsInterfaceInput(id), n.IsInterfaceOutput(id)
	switch {
	case in && out:
		k := kinetics.ConcentrationID(id)
		if err := addConstant(m, kinetics.Parameter{ID: k, Category: model.SpeciesConcentration, Value: StablePoolConcentration}); err != nil {
			return err
		}
		doc.Rules.Assignment = append(doc.Rules.Assignment, sbml.Rule{Variable: sid, Math: sbml.Math{Formula: k}})
	case in:
		k := kinetics.ProductionSpeedID(id)
		if err := addConstant(m, kinetics.Parameter{ID: k, Category: model.ProductionSpeed, Value: 1}); err != nil {
			return err
		}
		doc.Reactions = append(doc.Reactions, sbml.Reaction{
			ID:          "r_in_" + sid,
			Compartment: DefaultCompartment,
			Products:    []sbml.SpeciesReference{{Species: sid, Stoichiometry: 1}},
			KineticLaw:  &sbml.KineticLaw{Math: sbml.Math{Formula: k}},
		})
	case out:
		k := kinetics.ConsumptionSpeedID(id)
		if err := addConstant(m, kinetics.Parameter{ID: k, Category: model.ConsumptionSpeed, Value: 1}); err != nil {
			return err
		}
		doc.Reactions = append(doc.Reactions, sbml.Reaction{
			ID:          "r_out_" + sid,
			Compartment: DefaultCompartment,
			Reactants:   []sbml.SpeciesReference{{Species: sid, Stoichiometry: 1}},
			KineticLaw:  &sbml.KineticLaw{Math: sbml.Math{Formula: fmt.Sprintf("%s * %s", k, sid)}},
		})
	}
	return nil
}

// reaction assembles one network reaction without touching shared state.
func (a *Assembler) reaction(r reactome.ReactionLikeEvent) (reactionPart, error) {
	part := reactionPart{
		id: r.ID,
		reaction: sbml.Reaction{
			ID:          reactome.ReactionID(r.ID),
			Reversible:  r.Reversible,
			Compartment: DefaultCompartment,
		},
	}

	for _, p := range r.Participants() {
		sid := reactome.SpeciesID(p.Entity.ID)
		switch m := p.Metadata.(type) {
		case reactome.EntityMetadata:
			ref := sbml.SpeciesReference{Species: sid, Stoichiometry: float64(m.Stoichiometry)}
			switch m.Category {
			case reactome.Input:
				part.reaction.Reactants = append(part.reaction.Reactants, ref)
			case reactome.Output:
				part.reaction.Products = append(part.reaction.Products, ref)
			default:
				panic(fmt.Sprintf("assemble: unknown entity category %q", m.Category))
			}
		case reactome.ModifierMetadata:
			part.reaction.Modifiers = append(part.reaction.Modifiers, sbml.ModifierSpeciesReference{
				Species: sid,
				SBOTerm: modifierTerms[m.Category],
			})
			for _, producer := range m.ProducedBy {
				part.causes = append(part.causes, order.Pair[reactome.DbID]{A: producer, B: r.ID})
			}
		default:
			panic(fmt.Sprintf("assemble: unknown participant metadata %T", m))
		}
	}

	rate, err := a.Laws.For(r.ID).Apply(r)
	if err != nil {
		return reactionPart{}, fmt.Errorf("kinetic law of reaction %d: %w", r.ID, err)
	}
	if _, err := sbml.ParseFormula(rate.Formula); err != nil {
		return reactionPart{}, reactome.Violation("kinetic law of reaction %d: %v", r.ID, err)
	}
	for _, p := range rate.Parameters {
		if !model.IsKineticConstant(p.ID) {
			return reactionPart{}, reactome.Violation("kinetic law of reaction %d introduced parameter %q without the k_ prefix", r.ID, p.ID)
		}
	}
	part.reaction.KineticLaw = &sbml.KineticLaw{Math: sbml.Math{Formula: rate.Formula}}
	part.parameters = rate.Parameters
	return part, nil
}

// addConstant records a kinetic constant in the document and the category
// map. Re-adding an id with the same category is a no-op.
func addConstant(m *model.ReactionModel, p kinetics.Parameter) error {
	if prev, ok := m.KineticConstants[p.ID]; ok {
		if prev != p.Category {
			return reactome.Violation("parameter %s has categories %s and %s", p.ID, prev, p.Category)
		}
		return nil
	}
	m.KineticConstants[p.ID] = p.Category
	m.Document.Model.Parameters = append(m.Document.Model.Parameters, sbml.Parameter{
		ID:         p.ID,
		Value:      p.Value,
		Constant:   true,
		Annotation: &sbml.ParameterAnnotation{Category: string(p.Category)},
	})
	return nil
}

func addOther(m *model.ReactionModel, id string, c model.OtherParameterCategory) {
	m.OtherParameters[id] = c
	m.Document.Model.Parameters = append(m.Document.Model.Parameters, sbml.Parameter{
		ID:         id,
		Annotation: &sbml.ParameterAnnotation{Category: string(c)},
	})
}
