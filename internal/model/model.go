// Package model defines the reaction model handed from the assembler to the
// sampler and the evaluator, and loads it back from a persisted document.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/vpgen/internal/order"
	"github.com/nvandessel/vpgen/internal/reactome"
	"github.com/nvandessel/vpgen/internal/sbml"
)

// ErrMissingAnnotation is returned when a document lacks metadata required to
// rebuild the model.
var ErrMissingAnnotation = errors.New("missing annotation")

// LoadError reports a document that cannot be turned into a model.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return "load model: " + e.Reason
	}
	return fmt.Sprintf("load model: %s: %v", e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ReactionModel is a model document with its parameter categories and
// ordering constraints. It is not modified after construction.
type ReactionModel struct {
	Document              *sbml.Document
	SpeciesOrder          order.PartialOrder[reactome.DbID]
	KineticConstants      map[string]ConstantCategory
	KineticConstantsOrder order.PartialOrder[string]
	OtherParameters       map[string]OtherParameterCategory
}

// KineticConstantIDs returns the ids of the searchable parameters, sorted.
func (m *ReactionModel) KineticConstantIDs() []string {
	ids := make([]string, 0, len(m.KineticConstants))
	for id := range m.KineticConstants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Species returns the ids of the document's species in document order.
func (m *ReactionModel) Species() []string {
	ids := make([]string, 0, len(m.Document.Model.Species))
	for _, s := range m.Document.Model.Species {
		ids = append(ids, s.ID)
	}
	return ids
}

// NumObjectives is the length of the objective vector produced for this
// model: one normalization and one transitory entry per species, one order
// entry per ordered pair.
func (m *ReactionModel) NumObjectives() int {
	return 2*len(m.Document.Model.Species) + m.SpeciesOrder.Len() + m.KineticConstantsOrder.Len()
}

// Orders renders both partial orders in the document annotation format.
func (m *ReactionModel) Orders() sbml.Orders {
	o := sbml.Orders{
		SpeciesOrder:          make([][2]string, 0, m.SpeciesOrder.Len()),
		KineticConstantsOrder: make([][2]string, 0, m.KineticConstantsOrder.Len()),
	}
	for _, p := range m.SpeciesOrder.Pairs() {
		o.SpeciesOrder = append(o.SpeciesOrder, [2]string{reactome.SpeciesID(p.A), reactome.SpeciesID(p.B)})
	}
	for _, p := range m.KineticConstantsOrder.Pairs() {
		o.KineticConstantsOrder = append(o.KineticConstantsOrder, [2]string{p.A, p.B})
	}
	return o
}

// IsKineticConstant reports whether a parameter id names a searchable
// constant.
func IsKineticConstant(id string) bool {
	return strings.HasPrefix(id, "k_")
}

// Load rebuilds a model from a document written by the assembler. Every
// parameter must carry a known category annotation and the model must carry
// the orders annotation; anything else is a *LoadError.
func Load(doc *sbml.Document) (*ReactionModel, error) {
	if doc == nil {
		return nil, &LoadError{Reason: "nil document"}
	}
	m := &ReactionModel{
		Document:         doc,
		KineticConstants: make(map[string]ConstantCategory),
		OtherParameters:  make(map[string]OtherParameterCategory),
	}

	for _, p := range doc.Model.Parameters {
		annotation := p.Category()
		if annotation == "" {
			return nil, &LoadError{Reason: fmt.Sprintf("parameter %s", p.ID), Err: ErrMissingAnnotation}
		}
		if IsKineticConstant(p.ID) {
			c, err := ParseConstantCategory(annotation)
			if err != nil {
				return nil, &LoadError{Reason: fmt.Sprintf("parameter %s", p.ID), Err: err}
			}
			m.KineticConstants[p.ID] = c
			continue
		}
		c, err := ParseOtherParameterCategory(annotation)
		if err != nil {
			return nil, &LoadError{Reason: fmt.Sprintf("parameter %s", p.ID), Err: err}
		}
		m.OtherParameters[p.ID] = c
	}

	orders, ok, err := doc.Model.Orders()
	if err != nil {
		return nil, &LoadError{Reason: "model orders", Err: err}
	}
	if !ok {
		return nil, &LoadError{Reason: "model orders", Err: ErrMissingAnnotation}
	}

	species := make(map[string]bool, len(doc.Model.Species))
	for _, s := range doc.Model.Species {
		species[s.ID] = true
	}
	for _, pair := range orders.SpeciesOrder {
		var ids [2]reactome.DbID
		for i, sid := range pair {
			if !species[sid] {
				return nil, &LoadError{Reason: "species order", Err: fmt.Errorf("unknown species %q", sid)}
			}
			id, err := reactome.ParseSpeciesID(sid)
			if err != nil {
				return nil, &LoadError{Reason: "species order", Err: err}
			}
			ids[i] = id
		}
		if err := m.SpeciesOrder.Add(ids[0], ids[1]); err != nil {
			return nil, &LoadError{Reason: "species order", Err: err}
		}
	}
	for _, pair := range orders.KineticConstantsOrder {
		for _, id := range pair {
			if _, ok := m.KineticConstants[id]; !ok {
				return nil, &LoadError{Reason: "kinetic constants order", Err: fmt.Errorf("unknown kinetic constant %q", id)}
			}
		}
		if err := m.KineticConstantsOrder.Add(pair[0], pair[1]); err != nil {
			return nil, &LoadError{Reason: "kinetic constants order", Err: err}
		}
	}
	return m, nil
}

// LoadFile reads and loads the document stored at path.
func LoadFile(path string) (*ReactionModel, error) {
	doc, err := sbml.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Reason: path, Err: err}
	}
	return Load(doc)
}
