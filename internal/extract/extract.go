// Package extract computes the biochemical sub-network reachable from a set
// of seed entities in the reaction knowledge graph.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/reactome"
	"github.com/nvandessel/vpgen/internal/store"
	"github.com/nvandessel/vpgen/internal/utils"
)

var (
	// ErrEmptyNetwork is returned when no reaction is reachable.
	ErrEmptyNetwork = errors.New("extracted network is empty")
	// ErrNoInterfaceInputs is returned when every entity is produced inside the network.
	ErrNoInterfaceInputs = errors.New("extracted network has no interface inputs")
	// ErrMalformedGraph is returned for graph data that does not fit the reaction schema.
	ErrMalformedGraph = errors.New("malformed reaction graph")
)

// ExtractionError reports a failed extraction. Callers may fall back to a
// previously persisted model document.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Scenario is the declarative description of what to extract.
type Scenario struct {
	SeedEntities []reactome.DbID
	SeedPathways []reactome.DbID
	Excluded     []reactome.DbID
	// MaxDepth bounds the number of entity-to-reaction hops. Zero means unbounded.
	MaxDepth int
}

// Validate checks the scenario contract.
func (s Scenario) Validate() error {
	if len(s.SeedEntities) == 0 {
		return reactome.Violation("scenario needs at least one seed entity")
	}
	if s.MaxDepth < 0 {
		return reactome.Violation("max depth must be positive or zero for unbounded, got %d", s.MaxDepth)
	}
	for _, id := range s.Excluded {
		if slices.Contains(s.SeedEntities, id) {
			return reactome.Violation("entity %d is both a seed and excluded", id)
		}
	}
	return nil
}

// Extractor runs extractions against a graph store.
type Extractor struct {
	Store   store.GraphStore
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Extract runs one extraction with default logging and no metrics.
func Extract(ctx context.Context, g store.GraphStore, sc Scenario) (*Network, error) {
	return (&Extractor{Store: g}).Extract(ctx, sc)
}

// reactionRecord is what the traversal learns about one reaction. An entity
// on both sides of the reaction keeps its input role and stoichiometry in
// entities; consumes and produces keep both sides as the graph states them.
type reactionRecord struct {
	id           reactome.DbID
	reversible   bool
	compartments []reactome.DbID
	entities     map[reactome.DbID]reactome.EntityMetadata
	modifiers    map[reactome.DbID]reactome.ModifierCategory
	consumes     map[reactome.DbID]bool
	produces     map[reactome.DbID]bool
}

func newReactionRecord(id reactome.DbID) *reactionRecord {
	return &reactionRecord{
		id:        id,
		entities:  make(map[reactome.DbID]reactome.EntityMetadata),
		modifiers: make(map[reactome.DbID]reactome.ModifierCategory),
		consumes:  make(map[reactome.DbID]bool),
		produces:  make(map[reactome.DbID]bool),
	}
}

func (r *reactionRecord) participants() []reactome.DbID {
	ids := make([]reactome.DbID, 0, len(r.entities)+len(r.modifiers))
	for id := range r.entities {
		ids = append(ids, id)
	}
	for id := range r.modifiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Extract computes the network reachable from the scenario's seeds.
//
// The traversal alternates layers: from an entity to every reaction it takes
// part in (as input, output, catalyst or regulator), then from a reaction to
// all of its participants. One such round trip counts as one hop. Excluded
// entities are never expanded but still appear as participants of reached
// reactions. With seed pathways, only reactions contained (transitively) in
// one of them are kept.
//
// Each layer is read with batch lookups, so the number of store round trips
// grows with the depth of the network, not with its size.
func (x *Extractor) Extract(ctx context.Context, sc Scenario) (*Network, error) {
	logger := x.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	n, err := x.extract(ctx, sc, logger)
	if err != nil {
		var cv *reactome.ContractViolation
		if !errors.As(err, &cv) {
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				err = &ExtractionError{Op: "query graph", Err: err}
			}
		}
		x.Metrics.ObserveExtraction(time.Since(start), 0, 0, err)
		logger.Error("extraction failed", "error", err)
		return nil, err
	}

	x.Metrics.ObserveExtraction(time.Since(start), len(n.entities), len(n.reactions), nil)
	logger.Info("extracted network",
		"entities", len(n.entities),
		"reactions", len(n.reactions),
		"compartments", len(n.compartments),
		"interface_inputs", len(n.InterfaceInputs()),
		"interface_outputs", len(n.InterfaceOutputs()),
		"duration", time.Since(start))
	return n, nil
}

func (x *Extractor) extract(ctx context.Context, sc Scenario, logger *slog.Logger) (*Network, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	excluded := make(map[reactome.DbID]bool, len(sc.Excluded))
	for _, id := range sc.Excluded {
		excluded[id] = true
	}

	records := make(map[reactome.DbID]*reactionRecord)
	expanded := make(map[reactome.DbID]bool)
	frontier := slices.Clone(sc.SeedEntities)
	for _, id := range frontier {
		expanded[id] = true
	}

	for depth := 1; len(frontier) > 0 && (sc.MaxDepth == 0 || depth <= sc.MaxDepth); depth++ {
		reached, err := x.reactionsOf(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var fresh []reactome.DbID
		for _, rid := range reached {
			if _, seen := records[rid]; !seen {
				fresh = append(fresh, rid)
			}
		}
		layer, err := x.fetchReactions(ctx, fresh)
		if err != nil {
			return nil, err
		}

		var next []reactome.DbID
		for _, rid := range fresh {
			rec := layer[rid]
			records[rid] = rec
			for _, p := range rec.participants() {
				if excluded[p] || expanded[p] {
					continue
				}
				expanded[p] = true
				next = append(next, p)
			}
		}
		logger.Debug("extraction layer", "depth", depth, "reactions", len(records), "frontier", len(next))
		frontier = next
	}

	if len(sc.SeedPathways) > 0 {
		scope, err := x.pathwayEvents(ctx, sc.SeedPathways)
		if err != nil {
			return nil, err
		}
		for rid := range records {
			if !scope[rid] {
				delete(records, rid)
			}
		}
	}
	if len(records) == 0 {
		return nil, &ExtractionError{Op: "traverse", Err: ErrEmptyNetwork}
	}

	return x.buildNetwork(ctx, records)
}

// reactionsOf returns the sorted ids of reactions in which any of entities
// participates: directly as input or output, or through a catalyst activity
// or regulation.
func (x *Extractor) reactionsOf(ctx context.Context, entities []reactome.DbID) ([]reactome.DbID, error) {
	edges, err := x.Store.GetEdgesOf(ctx, nodeIDs(entities), store.DirectionInbound,
		[]string{store.EdgeInput, store.EdgeOutput, store.EdgePhysicalEntity, store.EdgeRegulator})
	if err != nil {
		return nil, err
	}

	var ids []reactome.DbID
	var mids []string
	for _, e := range edges {
		switch e.Kind {
		case store.EdgeInput, store.EdgeOutput:
			id, err := parseID(e.Source)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		default:
			mids = append(mids, e.Source)
		}
	}

	// entity <- activity/regulation <- reaction
	if len(mids) > 0 {
		edges, err := x.Store.GetEdgesOf(ctx, mids, store.DirectionInbound,
			[]string{store.EdgeCatalystActivity, store.EdgeRegulatedBy})
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			id, err := parseID(e.Source)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// fetchReactions reads the participants, compartments and reversibility of
// a layer of reactions.
func (x *Extractor) fetchReactions(ctx context.Context, rids []reactome.DbID) (map[reactome.DbID]*reactionRecord, error) {
	recs := make(map[reactome.DbID]*reactionRecord, len(rids))
	if len(rids) == 0 {
		return recs, nil
	}
	for _, rid := range rids {
		recs[rid] = newReactionRecord(rid)
	}

	edges, err := x.Store.GetEdgesOf(ctx, nodeIDs(rids), store.DirectionBoth, []string{
		store.EdgeInput, store.EdgeOutput, store.EdgeCatalystActivity,
		store.EdgeRegulatedBy, store.EdgeCompartment, store.EdgeReverseReaction,
	})
	if err != nil {
		return nil, err
	}

	// catalyst activity or regulation node -> reactions it belongs to
	via := make(map[string][]reactome.DbID)
	var viaIDs []string
	for _, e := range edges {
		if e.Kind == store.EdgeReverseReaction {
			for _, end := range []string{e.Source, e.Target} {
				if id, err := reactome.ParseDbID(end); err == nil && recs[id] != nil {
					recs[id].reversible = true
				}
			}
			continue
		}
		rid, err := reactome.ParseDbID(e.Source)
		if err != nil || recs[rid] == nil {
			continue
		}
		rec := recs[rid]

		switch e.Kind {
		case store.EdgeInput, store.EdgeOutput:
			id, err := parseID(e.Target)
			if err != nil {
				return nil, err
			}
			st, err := reactome.NewStoichiometry(e.Stoichiometry)
			if err != nil {
				return nil, fmt.Errorf("%w: reaction %d: %v", ErrMalformedGraph, rid, err)
			}
			if e.Kind == store.EdgeInput {
				rec.consumes[id] = true
				rec.entities[id] = reactome.EntityMetadata{Category: reactome.Input, Stoichiometry: st}
			} else {
				rec.produces[id] = true
				if _, dup := rec.entities[id]; !dup {
					rec.entities[id] = reactome.EntityMetadata{Category: reactome.Output, Stoichiometry: st}
				}
			}
		case store.EdgeCatalystActivity, store.EdgeRegulatedBy:
			if len(via[e.Target]) == 0 {
				viaIDs = append(viaIDs, e.Target)
			}
			via[e.Target] = append(via[e.Target], rid)
		case store.EdgeCompartment:
			id, err := parseID(e.Target)
			if err != nil {
				return nil, err
			}
			rec.compartments = append(rec.compartments, id)
		}
	}

	if len(viaIDs) > 0 {
		if err := x.collectModifiers(ctx, recs, via, viaIDs); err != nil {
			return nil, err
		}
	}

	for _, rec := range recs {
		for id := range rec.entities {
			delete(rec.modifiers, id)
		}
	}
	return recs, nil
}

// collectModifiers resolves catalyst activities and regulations to the
// entities they point at. via maps each activity or regulation to the
// reactions that reference it.
func (x *Extractor) collectModifiers(ctx context.Context, recs map[reactome.DbID]*reactionRecord, via map[string][]reactome.DbID, viaIDs []string) error {
	nodes, err := x.Store.GetNodes(ctx, viaIDs)
	if err != nil {
		return err
	}
	categories := make(map[string]reactome.ModifierCategory, len(nodes))
	for _, n := range nodes {
		switch n.Kind {
		case store.KindCatalystActivity:
			categories[n.ID] = reactome.Enzyme
		case store.KindPositiveRegulation:
			categories[n.ID] = reactome.PositiveRegulator
		case store.KindNegativeRegulation:
			categories[n.ID] = reactome.NegativeRegulator
		default:
			return fmt.Errorf("%w: modifier link %s has kind %s", ErrMalformedGraph, n.ID, n.Kind)
		}
	}
	for _, id := range viaIDs {
		if _, ok := categories[id]; !ok {
			return fmt.Errorf("%w: reaction %d links to missing node %s", ErrMalformedGraph, via[id][0], id)
		}
	}

	edges, err := x.Store.GetEdgesOf(ctx, viaIDs, store.DirectionOutbound,
		[]string{store.EdgePhysicalEntity, store.EdgeRegulator})
	if err != nil {
		return err
	}
	for _, e := range edges {
		category := categories[e.Source]
		if (category == reactome.Enzyme) != (e.Kind == store.EdgePhysicalEntity) {
			continue
		}
		id, err := parseID(e.Target)
		if err != nil {
			return err
		}
		for _, rid := range via[e.Source] {
			if _, dup := recs[rid].modifiers[id]; !dup {
				recs[rid].modifiers[id] = category
			}
		}
	}
	return nil
}

// pathwayEvents returns the reactions transitively contained in pathways.
func (x *Extractor) pathwayEvents(ctx context.Context, pathways []reactome.DbID) (map[reactome.DbID]bool, error) {
	scope := make(map[reactome.DbID]bool)
	for _, p := range pathways {
		nodes, err := x.Store.Traverse(ctx, p.String(), []string{store.EdgeHasEvent}, store.DirectionOutbound, 0)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if n.Kind != store.KindReactionLikeEvent {
				continue
			}
			id, err := parseID(n.ID)
			if err != nil {
				return nil, err
			}
			scope[id] = true
		}
	}
	return scope, nil
}

// buildNetwork turns reaction records into domain objects. ProducedBy of a
// modifier lists the in-network reactions that output it.
func (x *Extractor) buildNetwork(ctx context.Context, records map[reactome.DbID]*reactionRecord) (*Network, error) {
	producers := make(map[reactome.DbID][]reactome.DbID)
	roles := newRoles()
	entitySet := make(map[reactome.DbID]bool)
	compartmentIDs := make(map[reactome.DbID]bool)
	for rid, rec := range records {
		for id := range rec.entities {
			entitySet[id] = true
		}
		for id := range rec.produces {
			producers[id] = append(producers[id], rid)
			roles.produced[id] = true
		}
		for id := range rec.consumes {
			roles.consumed[id] = true
		}
		for id := range rec.modifiers {
			entitySet[id] = true
		}
		for _, c := range rec.compartments {
			compartmentIDs[c] = true
		}
	}

	entityIDs := make([]reactome.DbID, 0, len(entitySet))
	for id := range entitySet {
		entityIDs = append(entityIDs, id)
	}
	slices.Sort(entityIDs)
	entities, err := x.fetchEntities(ctx, entityIDs)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		for _, c := range e.Compartments() {
			compartmentIDs[c] = true
		}
	}

	reactions := make([]reactome.ReactionLikeEvent, 0, len(records))
	for rid, rec := range records {
		var participants []reactome.Participant
		for id, m := range rec.entities {
			participants = append(participants, reactome.Participant{Entity: entities[id], Metadata: m})
		}
		for id, category := range rec.modifiers {
			participants = append(participants, reactome.Participant{
				Entity:   entities[id],
				Metadata: reactome.ModifierMetadata{Category: category, ProducedBy: producers[id]},
			})
		}
		r, err := reactome.NewReactionLikeEvent(rid, rec.reversible, rec.compartments, participants)
		if err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}

	compartments := make([]reactome.Compartment, 0, len(compartmentIDs))
	for id := range compartmentIDs {
		compartments = append(compartments, reactome.Compartment{ID: id})
	}
	entityList := make([]reactome.PhysicalEntity, 0, len(entities))
	for _, e := range entities {
		entityList = append(entityList, e)
	}
	return newNetwork(entityList, reactions, compartments, roles)
}

// fetchEntities reads the entities' compartments and optional known ranges
// from the "known_lower"/"known_upper" content fields.
func (x *Extractor) fetchEntities(ctx context.Context, ids []reactome.DbID) (map[reactome.DbID]reactome.PhysicalEntity, error) {
	keys := nodeIDs(ids)
	nodes, err := x.Store.GetNodes(ctx, keys)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	edges, err := x.Store.GetEdgesOf(ctx, keys, store.DirectionOutbound, []string{store.EdgeCompartment})
	if err != nil {
		return nil, err
	}
	compartments := make(map[string][]reactome.DbID)
	for _, e := range edges {
		c, err := parseID(e.Target)
		if err != nil {
			return nil, err
		}
		compartments[e.Source] = append(compartments[e.Source], c)
	}

	entities := make(map[reactome.DbID]reactome.PhysicalEntity, len(ids))
	for _, id := range ids {
		node, ok := byID[id.String()]
		if !ok {
			return nil, fmt.Errorf("%w: participant %d is not a node", ErrMalformedGraph, id)
		}
		if node.Kind != store.KindPhysicalEntity {
			return nil, fmt.Errorf("%w: participant %d has kind %s", ErrMalformedGraph, id, node.Kind)
		}

		known := reactome.Unbounded
		lower, hasLower := utils.GetFloat64(node.Content, "known_lower")
		upper, hasUpper := utils.GetFloat64(node.Content, "known_upper")
		if hasLower || hasUpper {
			if !hasLower {
				lower = math.Inf(-1)
			}
			if !hasUpper {
				upper = math.Inf(1)
			}
			if known, err = reactome.NewInterval(lower, upper); err != nil {
				return nil, fmt.Errorf("%w: entity %d: %v", ErrMalformedGraph, id, err)
			}
		}
		entities[id] = reactome.NewPhysicalEntity(id, known, compartments[node.ID]...)
	}
	return entities, nil
}

func nodeIDs(ids []reactome.DbID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseID(nodeID string) (reactome.DbID, error) {
	id, err := reactome.ParseDbID(nodeID)
	if err != nil {
		return 0, fmt.Errorf("%w: node id %q is not a database id", ErrMalformedGraph, nodeID)
	}
	return id, nil
}
