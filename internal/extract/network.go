package extract

import (
	"slices"

	"github.com/nvandessel/vpgen/internal/reactome"
)

// Network is the extracted biochemical sub-network: disjoint sets of
// entities, reactions and compartments plus the interface of the extraction.
type Network struct {
	entities     map[reactome.DbID]reactome.PhysicalEntity
	reactions    map[reactome.DbID]reactome.ReactionLikeEvent
	compartments map[reactome.DbID]reactome.Compartment
	inputs       map[reactome.DbID]bool
	outputs      map[reactome.DbID]bool
}

// roles records which entities the network's reactions consume and produce.
// An entity on both sides of one reaction is in both sets although its
// participant metadata carries the input role only.
type roles struct {
	consumed map[reactome.DbID]bool
	produced map[reactome.DbID]bool
}

func newRoles() roles {
	return roles{consumed: make(map[reactome.DbID]bool), produced: make(map[reactome.DbID]bool)}
}

// NewNetwork assembles a network and computes its interface from the
// participant roles of its reactions. Every participant and compartment
// referenced by a reaction or entity must be part of the network. An empty
// network or one without interface inputs is an extraction failure.
func NewNetwork(entities []reactome.PhysicalEntity, reactions []reactome.ReactionLikeEvent, compartments []reactome.Compartment) (*Network, error) {
	r := newRoles()
	for _, reaction := range reactions {
		for _, p := range reaction.Entities(reactome.Output) {
			r.produced[p.Entity.ID] = true
		}
		for _, p := range reaction.Entities(reactome.Input) {
			r.consumed[p.Entity.ID] = true
		}
	}
	return newNetwork(entities, reactions, compartments, r)
}

func newNetwork(entities []reactome.PhysicalEntity, reactions []reactome.ReactionLikeEvent, compartments []reactome.Compartment, rs roles) (*Network, error) {
	n := &Network{
		entities:     make(map[reactome.DbID]reactome.PhysicalEntity, len(entities)),
		reactions:    make(map[reactome.DbID]reactome.ReactionLikeEvent, len(reactions)),
		compartments: make(map[reactome.DbID]reactome.Compartment, len(compartments)),
		inputs:       make(map[reactome.DbID]bool),
		outputs:      make(map[reactome.DbID]bool),
	}
	for _, c := range compartments {
		n.compartments[c.ID] = c
	}
	for _, e := range entities {
		for _, c := range e.Compartments() {
			if _, ok := n.compartments[c]; !ok {
				return nil, reactome.Violation("entity %d references compartment %d outside the network", e.ID, c)
			}
		}
		n.entities[e.ID] = e
	}
	for _, r := range reactions {
		if _, ok := n.entities[r.ID]; ok {
			return nil, reactome.Violation("id %d is both an entity and a reaction", r.ID)
		}
		for _, c := range r.Compartments() {
			if _, ok := n.compartments[c]; !ok {
				return nil, reactome.Violation("reaction %d references compartment %d outside the network", r.ID, c)
			}
		}
		for _, p := range r.Participants() {
			if _, ok := n.entities[p.Entity.ID]; !ok {
				return nil, reactome.Violation("reaction %d references entity %d outside the network", r.ID, p.Entity.ID)
			}
		}
		n.reactions[r.ID] = r
	}

	if len(n.reactions) == 0 || len(n.entities) == 0 {
		return nil, &ExtractionError{Op: "build network", Err: ErrEmptyNetwork}
	}

	for id := range n.entities {
		n.inputs[id] = !rs.produced[id]
		n.outputs[id] = !rs.consumed[id]
	}
	if len(n.InterfaceInputs()) == 0 {
		return nil, &ExtractionError{Op: "build network", Err: ErrNoInterfaceInputs}
	}
	return n, nil
}

// Entities returns the network's entities sorted by id.
func (n *Network) Entities() []reactome.PhysicalEntity {
	return sortedValues(n.entities)
}

// Entity looks up one entity.
func (n *Network) Entity(id reactome.DbID) (reactome.PhysicalEntity, bool) {
	e, ok := n.entities[id]
	return e, ok
}

// Reactions returns the network's reactions sorted by id.
func (n *Network) Reactions() []reactome.ReactionLikeEvent {
	return sortedValues(n.reactions)
}

// Compartments returns the network's compartments sorted by id.
func (n *Network) Compartments() []reactome.Compartment {
	return sortedValues(n.compartments)
}

// InterfaceInputs returns the entities no in-network reaction outputs.
func (n *Network) InterfaceInputs() []reactome.DbID {
	return trueKeys(n.inputs)
}

// InterfaceOutputs returns the entities no in-network reaction consumes.
func (n *Network) InterfaceOutputs() []reactome.DbID {
	return trueKeys(n.outputs)
}

// IsInterfaceInput reports whether id is never produced inside the network.
func (n *Network) IsInterfaceInput(id reactome.DbID) bool { return n.inputs[id] }

// IsInterfaceOutput reports whether id is never consumed inside the network.
func (n *Network) IsInterfaceOutput(id reactome.DbID) bool { return n.outputs[id] }

func sortedValues[V any](m map[reactome.DbID]V) []V {
	ids := make([]reactome.DbID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func trueKeys(m map[reactome.DbID]bool) []reactome.DbID {
	var out []reactome.DbID
	for id, ok := range m {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
