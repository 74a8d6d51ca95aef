package reactome

import (
	"fmt"
	"slices"
)

// EntityCategory is the role of a reactant or product.
type EntityCategory string

const (
	Input  EntityCategory = "input"
	Output EntityCategory = "output"
)

// ModifierCategory is the role of an entity that influences a reaction
// without being consumed or produced by it.
type ModifierCategory string

const (
	Enzyme            ModifierCategory = "enzyme"
	PositiveRegulator ModifierCategory = "positive_regulator"
	NegativeRegulator ModifierCategory = "negative_regulator"
)

// ParticipantMetadata describes how an entity participates in a reaction.
// The set of implementations is closed: EntityMetadata and ModifierMetadata.
type ParticipantMetadata interface {
	participant()
}

// EntityMetadata marks a reactant or product.
type EntityMetadata struct {
	Category      EntityCategory
	Stoichiometry Stoichiometry
}

// ModifierMetadata marks a catalyst or regulator. ProducedBy lists the
// extracted reactions that output the modifier, sorted.
type ModifierMetadata struct {
	Category   ModifierCategory
	ProducedBy []DbID
}

func (EntityMetadata) participant()   {}
func (ModifierMetadata) participant() {}

// Participant pairs an entity with its role in one reaction.
type Participant struct {
	Entity   PhysicalEntity
	Metadata ParticipantMetadata
}

// ReactionLikeEvent is a reaction with its participants.
type ReactionLikeEvent struct {
	ID           DbID
	Reversible   bool
	compartments []DbID
	participants map[DbID]Participant
}

// NewReactionLikeEvent builds a reaction. Each entity must appear at most once
// and every participant must carry metadata.
func NewReactionLikeEvent(id DbID, reversible bool, compartments []DbID, participants []Participant) (ReactionLikeEvent, error) {
	cs := slices.Clone(compartments)
	slices.Sort(cs)
	r := ReactionLikeEvent{
		ID:           id,
		Reversible:   reversible,
		compartments: slices.Compact(cs),
		participants: make(map[DbID]Participant, len(participants)),
	}
	for _, p := range participants {
		if _, dup := r.participants[p.Entity.ID]; dup {
			return ReactionLikeEvent{}, Violation("reaction %d: entity %d has more than one role", id, p.Entity.ID)
		}
		switch m := p.Metadata.(type) {
		case EntityMetadata:
			if m.Stoichiometry <= 0 {
				return ReactionLikeEvent{}, Violation("reaction %d: entity %d has stoichiometry %d", id, p.Entity.ID, m.Stoichiometry)
			}
		case ModifierMetadata:
			m.ProducedBy = slices.Compact(slices.Sorted(slices.Values(m.ProducedBy)))
			p.Metadata = m
		case nil:
			return ReactionLikeEvent{}, Violation("reaction %d: entity %d has no role", id, p.Entity.ID)
		default:
			panic(fmt.Sprintf("unknown participant metadata %T", m))
		}
		r.participants[p.Entity.ID] = p
	}
	return r, nil
}

// MustReactionLikeEvent is NewReactionLikeEvent that panics on error.
func MustReactionLikeEvent(id DbID, reversible bool, compartments []DbID, participants []Participant) ReactionLikeEvent {
	r, err := NewReactionLikeEvent(id, reversible, compartments, participants)
	if err != nil {
		panic(err)
	}
	return r
}

// Compartments returns a copy of the reaction's compartment ids.
func (r ReactionLikeEvent) Compartments() []DbID {
	return slices.Clone(r.compartments)
}

// Participants returns all participants sorted by entity id.
func (r ReactionLikeEvent) Participants() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, id := range r.sortedIDs() {
		out = append(out, r.participants[id])
	}
	return out
}

// Participant looks up the role of one entity.
func (r ReactionLikeEvent) Participant(entity DbID) (Participant, bool) {
	p, ok := r.participants[entity]
	return p, ok
}

// Entities returns reactants and products with the given categories, all when
// none is given, sorted by entity id.
func (r ReactionLikeEvent) Entities(categories ...EntityCategory) []Participant {
	var out []Participant
	for _, id := range r.sortedIDs() {
		p := r.participants[id]
		switch m := p.Metadata.(type) {
		case EntityMetadata:
			if len(categories) == 0 || slices.Contains(categories, m.Category) {
				out = append(out, p)
			}
		case ModifierMetadata:
		default:
			panic(fmt.Sprintf("unknown participant metadata %T", m))
		}
	}
	return out
}

// Modifiers returns catalysts and regulators with the given categories, all
// when none is given, sorted by entity id.
func (r ReactionLikeEvent) Modifiers(categories ...ModifierCategory) []Participant {
	var out []Participant
	for _, id := range r.sortedIDs() {
		p := r.participants[id]
		switch m := p.Metadata.(type) {
		case EntityMetadata:
		case ModifierMetadata:
			if len(categories) == 0 || slices.Contains(categories, m.Category) {
				out = append(out, p)
			}
		default:
			panic(fmt.Sprintf("unknown participant metadata %T", m))
		}
	}
	return out
}

func (r ReactionLikeEvent) sortedIDs() []DbID {
	ids := make([]DbID, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SpeciesID is the document identifier of an entity.
func SpeciesID(id DbID) string { return fmt.Sprintf("s_%d", id) }

// ReactionID is the document identifier of a reaction.
func ReactionID(id DbID) string { return fmt.Sprintf("r_%d", id) }

// CompartmentID is the document identifier of a compartment.
func CompartmentID(id DbID) string { return fmt.Sprintf("c_%d", id) }

// ParseSpeciesID is the inverse of SpeciesID.
func ParseSpeciesID(s string) (DbID, error) {
	var v int64
	if _, err := fmt.Sscanf(s, "s_%d", &v); err != nil || SpeciesID(DbID(v)) != s {
		return 0, Violation("invalid species id %q", s)
	}
	return NewDbID(v)
}
