package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ValidationError describes a graph validation issue.
type ValidationError struct {
	NodeID string `json:"node_id"`
	Edge   string `json:"edge"`   // edge kind
	RefID  string `json:"ref_id"` // The problematic reference
	Issue  string `json:"issue"`  // "dangling", "self-reference", "wrong-kind"
}

// String returns a human-readable description of the validation error.
func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s -[%s]-> %s", e.Issue, e.NodeID, e.Edge, e.RefID)
}

// edgeEndpoints lists the allowed source and target kinds per edge kind.
var edgeEndpoints = map[string]struct{ sources, targets []string }{
	EdgeInput:            {[]string{KindReactionLikeEvent}, []string{KindPhysicalEntity}},
	EdgeOutput:           {[]string{KindReactionLikeEvent}, []string{KindPhysicalEntity}},
	EdgeCatalystActivity: {[]string{KindReactionLikeEvent}, []string{KindCatalystActivity}},
	EdgePhysicalEntity:   {[]string{KindCatalystActivity}, []string{KindPhysicalEntity}},
	EdgeRegulatedBy:      {[]string{KindReactionLikeEvent}, []string{KindPositiveRegulation, KindNegativeRegulation}},
	EdgeRegulator:        {[]string{KindPositiveRegulation, KindNegativeRegulation}, []string{KindPhysicalEntity}},
	EdgeCompartment:      {[]string{KindPhysicalEntity, KindReactionLikeEvent}, []string{KindCompartment}},
	EdgeHasEvent:         {[]string{KindPathway}, []string{KindPathway, KindReactionLikeEvent}},
	EdgeReverseReaction:  {[]string{KindReactionLikeEvent}, []string{KindReactionLikeEvent}},
}

// ValidateGraph checks every outbound edge for:
// - Dangling references (endpoints that are not nodes)
// - Self-references
// - Endpoints whose kind does not fit the edge kind
func ValidateGraph(ctx context.Context, s GraphStore) ([]ValidationError, error) {
	nodes, err := s.QueryNodes(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	slices.SortFunc(nodes, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })

	kinds := make(map[string]string, len(nodes))
	for _, n := range nodes {
		kinds[n.ID] = n.Kind
	}

	var problems []ValidationError
	for _, n := range nodes {
		edges, err := s.GetEdges(ctx, n.ID, DirectionOutbound, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list edges of %s: %w", n.ID, err)
		}
		for _, e := range edges {
			problem := ValidationError{NodeID: e.Source, Edge: e.Kind, RefID: e.Target}
			targetKind, exists := kinds[e.Target]
			switch {
			case e.Source == e.Target:
				problem.Issue = "self-reference"
			case !exists:
				problem.Issue = "dangling"
			default:
				allowed, known := edgeEndpoints[e.Kind]
				if known && (!slices.Contains(allowed.sources, n.Kind) || !slices.Contains(allowed.targets, targetKind)) {
					problem.Issue = "wrong-kind"
				}
			}
			if problem.Issue != "" {
				problems = append(problems, problem)
			}
		}
	}
	return problems, nil
}
