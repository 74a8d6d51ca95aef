package store

import (
	"context"
	"fmt"
	"slices"
)

// ReactionRecord is the flattened description of one reaction and its
// participants, expanded by PutReaction into nodes and edges.
type ReactionRecord struct {
	ID                 string         `json:"id" yaml:"id"`
	Inputs             map[string]int `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs            map[string]int `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Catalysts          []string       `json:"catalysts,omitempty" yaml:"catalysts,omitempty"`
	PositiveRegulators []string       `json:"positive_regulators,omitempty" yaml:"positive_regulators,omitempty"`
	NegativeRegulators []string       `json:"negative_regulators,omitempty" yaml:"negative_regulators,omitempty"`
	Compartments       []string       `json:"compartments,omitempty" yaml:"compartments,omitempty"`
	Reverse            string         `json:"reverse,omitempty" yaml:"reverse,omitempty"`
}

// PutEntity adds a physical entity and its compartment memberships.
func PutEntity(ctx context.Context, s GraphStore, id string, compartments ...string) error {
	if _, err := s.AddNode(ctx, Node{ID: id, Kind: KindPhysicalEntity}); err != nil {
		return err
	}
	return putCompartments(ctx, s, id, compartments)
}

// PutPathway adds a pathway containing the given events.
func PutPathway(ctx context.Context, s GraphStore, id string, events ...string) error {
	if _, err := s.AddNode(ctx, Node{ID: id, Kind: KindPathway}); err != nil {
		return err
	}
	for _, ev := range events {
		if err := s.AddEdge(ctx, Edge{Source: id, Target: ev, Kind: EdgeHasEvent}); err != nil {
			return err
		}
	}
	return nil
}

// PutReaction adds a reaction with its participants. Participant entities
// that do not exist yet are created without compartments. Catalysts are
// linked through a CatalystActivity node and regulators through a
// Positive/NegativeRegulation node, both keyed by reaction and entity.
func PutReaction(ctx context.Context, s GraphStore, r ReactionRecord) error {
	if _, err := s.AddNode(ctx, Node{ID: r.ID, Kind: KindReactionLikeEvent}); err != nil {
		return err
	}
	if err := putCompartments(ctx, s, r.ID, r.Compartments); err != nil {
		return err
	}

	ensure := func(entity string) error {
		n, err := s.GetNode(ctx, entity)
		if err != nil || n != nil {
			return err
		}
		_, err = s.AddNode(ctx, Node{ID: entity, Kind: KindPhysicalEntity})
		return err
	}

	for _, side := range []struct {
		kind   string
		stoich map[string]int
	}{{EdgeInput, r.Inputs}, {EdgeOutput, r.Outputs}} {
		for _, entity := range sortedKeys(side.stoich) {
			if err := ensure(entity); err != nil {
				return err
			}
			if err := s.AddEdge(ctx, Edge{Source: r.ID, Target: entity, Kind: side.kind, Stoichiometry: side.stoich[entity]}); err != nil {
				return err
			}
		}
	}

	for _, entity := range r.Catalysts {
		if err := ensure(entity); err != nil {
			return err
		}
		activity := fmt.Sprintf("ca_%s_%s", r.ID, entity)
		if _, err := s.AddNode(ctx, Node{ID: activity, Kind: KindCatalystActivity}); err != nil {
			return err
		}
		if err := s.AddEdge(ctx, Edge{Source: r.ID, Target: activity, Kind: EdgeCatalystActivity}); err != nil {
			return err
		}
		if err := s.AddEdge(ctx, Edge{Source: activity, Target: entity, Kind: EdgePhysicalEntity}); err != nil {
			return err
		}
	}

	for _, reg := range []struct {
		kind     string
		prefix   string
		entities []string
	}{
		{KindPositiveRegulation, "pr", r.PositiveRegulators},
		{KindNegativeRegulation, "nr", r.NegativeRegulators},
	} {
		for _, entity := range reg.entities {
			if err := ensure(entity); err != nil {
				return err
			}
			regulation := fmt.Sprintf("%s_%s_%s", reg.prefix, r.ID, entity)
			if _, err := s.AddNode(ctx, Node{ID: regulation, Kind: reg.kind}); err != nil {
				return err
			}
			if err := s.AddEdge(ctx, Edge{Source: r.ID, Target: regulation, Kind: EdgeRegulatedBy}); err != nil {
				return err
			}
			if err := s.AddEdge(ctx, Edge{Source: regulation, Target: entity, Kind: EdgeRegulator}); err != nil {
				return err
			}
		}
	}

	if r.Reverse != "" {
		if err := s.AddEdge(ctx, Edge{Source: r.ID, Target: r.Reverse, Kind: EdgeReverseReaction}); err != nil {
			return err
		}
	}
	return nil
}

func putCompartments(ctx context.Context, s GraphStore, id string, compartments []string) error {
	for _, c := range compartments {
		if _, err := s.AddNode(ctx, Node{ID: c, Kind: KindCompartment}); err != nil {
			return err
		}
		if err := s.AddEdge(ctx, Edge{Source: id, Target: c, Kind: EdgeCompartment}); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
