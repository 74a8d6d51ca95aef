// Package store defines the GraphStore interface for storing and querying
// the reaction knowledge graph.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Node kinds of the reaction knowledge graph.
const (
	KindPhysicalEntity     = "PhysicalEntity"
	KindReactionLikeEvent  = "ReactionLikeEvent"
	KindPathway            = "Pathway"
	KindCompartment        = "Compartment"
	KindCatalystActivity   = "CatalystActivity"
	KindPositiveRegulation = "PositiveRegulation"
	KindNegativeRegulation = "NegativeRegulation"
)

// Edge kinds of the reaction knowledge graph.
const (
	EdgeInput            = "input"            // reaction -> entity, carries stoichiometry
	EdgeOutput           = "output"           // reaction -> entity, carries stoichiometry
	EdgeCatalystActivity = "catalystActivity" // reaction -> catalyst activity
	EdgePhysicalEntity   = "physicalEntity"   // catalyst activity -> entity
	EdgeRegulatedBy      = "regulatedBy"      // reaction -> regulation
	EdgeRegulator        = "regulator"        // regulation -> entity
	EdgeCompartment      = "compartment"      // entity or reaction -> compartment
	EdgeHasEvent         = "hasEvent"         // pathway -> event
	EdgeReverseReaction  = "reverseReaction"  // reaction -> reaction
)

var (
	// ErrInvalidNode is returned for nodes without id or kind.
	ErrInvalidNode = errors.New("invalid node")
	// ErrInvalidEdge is returned for malformed edges.
	ErrInvalidEdge = errors.New("invalid edge")
	// ErrUnavailable is returned when a remote backend cannot be reached.
	ErrUnavailable = errors.New("graph store unavailable")
)

// Node represents a node in the reaction graph.
type Node struct {
	ID       string                 `json:"id"`
	Kind     string                 `json:"kind"` // one of the Kind* constants
	Content  map[string]interface{} `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Edge represents a relationship between nodes.
type Edge struct {
	Source        string                 `json:"source"`
	Target        string                 `json:"target"`
	Kind          string                 `json:"kind"`                    // one of the Edge* constants
	Stoichiometry int                    `json:"stoichiometry,omitempty"` // input and output edges only
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Direction specifies edge traversal direction.
type Direction string

const (
	DirectionOutbound Direction = "outbound" // Follow edges from source to target
	DirectionInbound  Direction = "inbound"  // Follow edges from target to source
	DirectionBoth     Direction = "both"     // Follow edges in both directions
)

// GraphStore defines the interface for storing and querying the reaction graph.
type GraphStore interface {
	// Node operations. AddNode replaces an existing node with the same ID.
	AddNode(ctx context.Context, node Node) (string, error)
	// GetNode returns nil, nil when the node does not exist.
	GetNode(ctx context.Context, id string) (*Node, error)

	// QueryNodes queries nodes by predicate.
	// Predicate is a map of field names to required values.
	// Supports flat key matching only (e.g., "kind", "id").
	// e.g., {"kind": "ReactionLikeEvent"}
	QueryNodes(ctx context.Context, predicate map[string]interface{}) ([]Node, error)

	// Edge operations. AddEdge replaces an edge with the same source, target and kind.
	AddEdge(ctx context.Context, edge Edge) error
	GetEdges(ctx context.Context, nodeID string, direction Direction, kind string) ([]Edge, error)

	// Batch lookups answer for a whole set of nodes in one round trip.
	// GetNodes skips ids that do not exist. GetEdgesOf returns each matching
	// edge once; an empty kinds list matches every kind.
	GetNodes(ctx context.Context, ids []string) ([]Node, error)
	GetEdgesOf(ctx context.Context, nodeIDs []string, direction Direction, kinds []string) ([]Edge, error)

	// Traverse returns start and every node reachable from it by following
	// edges of the given kinds, at most maxDepth hops away. maxDepth <= 0
	// means unbounded.
	Traverse(ctx context.Context, start string, edgeKinds []string, direction Direction, maxDepth int) ([]Node, error)

	// Persistence
	Sync(ctx context.Context) error
	Close() error
}

func validateNode(node Node) error {
	if node.ID == "" {
		return fmt.Errorf("%w: node ID is required", ErrInvalidNode)
	}
	if node.Kind == "" {
		return fmt.Errorf("%w: node %s has no kind", ErrInvalidNode, node.ID)
	}
	return nil
}

func validateEdge(edge Edge) error {
	if edge.Source == "" || edge.Target == "" || edge.Kind == "" {
		return fmt.Errorf("%w: source, target and kind are required", ErrInvalidEdge)
	}
	if carriesStoichiometry(edge.Kind) && edge.Stoichiometry <= 0 {
		return fmt.Errorf("%w: %s edge %s -> %s has stoichiometry %d", ErrInvalidEdge, edge.Kind, edge.Source, edge.Target, edge.Stoichiometry)
	}
	return nil
}

func carriesStoichiometry(kind string) bool {
	return kind == EdgeInput || kind == EdgeOutput
}

// matchesPredicate checks if a node matches all predicate conditions.
func matchesPredicate(node Node, predicate map[string]interface{}) bool {
	for key, value := range predicate {
		switch key {
		case "id":
			if node.ID != value {
				return false
			}
		case "kind":
			if node.Kind != value {
				return false
			}
		default:
			if node.Content[key] != value {
				return false
			}
		}
	}
	return true
}

// edgeKindMatches checks if an edge kind is in the allowed list.
// Empty list means all kinds are allowed.
func edgeKindMatches(kind string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// neighbors returns the nodes reached through e from any node of the
// frontier in the given direction.
func neighbors(e Edge, frontier map[string]bool, direction Direction) []string {
	var out []string
	if (direction == DirectionOutbound || direction == DirectionBoth) && frontier[e.Source] {
		out = append(out, e.Target)
	}
	if (direction == DirectionInbound || direction == DirectionBoth) && frontier[e.Target] {
		out = append(out, e.Source)
	}
	return out
}

// breadthFirst walks the graph level by level. edgesOf expands a whole level
// at once and must only return edges of the wanted kinds. The visited ids
// are returned in discovery order.
func breadthFirst(ctx context.Context, start string, direction Direction, maxDepth int, edgesOf func([]string) ([]Edge, error)) ([]string, error) {
	visited := map[string]bool{start: true}
	order := []string{start}
	frontier := []string{start}

	for depth := 0; len(frontier) > 0 && (maxDepth <= 0 || depth < maxDepth); depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		edges, err := edgesOf(frontier)
		if err != nil {
			return nil, err
		}
		current := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			current[id] = true
		}
		var next []string
		for _, e := range edges {
			for _, n := range neighbors(e, current, direction) {
				if visited[n] {
					continue
				}
				visited[n] = true
				order = append(order, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return order, nil
}
