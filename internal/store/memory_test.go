package store

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestInMemoryGraphStore_AddNode(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		wantID  string
		wantErr bool
	}{
		{
			name: "valid node",
			node: Node{
				ID:   "113592",
				Kind: KindPhysicalEntity,
				Content: map[string]interface{}{
					"name": "ATP",
				},
			},
			wantID:  "113592",
			wantErr: false,
		},
		{
			name:    "empty ID",
			node:    Node{Kind: KindPhysicalEntity},
			wantID:  "",
			wantErr: true,
		},
		{
			name:    "empty kind",
			node:    Node{ID: "1"},
			wantID:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewInMemoryGraphStore()
			ctx := context.Background()

			gotID, err := s.AddNode(ctx, tt.node)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddNode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if gotID != tt.wantID {
				t.Errorf("AddNode() gotID = %v, want %v", gotID, tt.wantID)
			}
		})
	}
}

func TestInMemoryGraphStore_GetNode(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	s.AddNode(ctx, Node{ID: "1", Kind: KindPhysicalEntity, Content: map[string]interface{}{"name": "ATP"}})

	got, err := s.GetNode(ctx, "1")
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if got == nil || got.Content["name"] != "ATP" {
		t.Errorf("GetNode() = %+v, want ATP node", got)
	}

	missing, err := s.GetNode(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetNode(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestInMemoryGraphStore_QueryNodes(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	s.AddNode(ctx, Node{ID: "1", Kind: KindPhysicalEntity})
	s.AddNode(ctx, Node{ID: "2", Kind: KindPhysicalEntity})
	s.AddNode(ctx, Node{ID: "3", Kind: KindReactionLikeEvent})

	entities, err := s.QueryNodes(ctx, map[string]interface{}{"kind": KindPhysicalEntity})
	if err != nil {
		t.Fatalf("QueryNodes() error = %v", err)
	}
	if len(entities) != 2 {
		t.Errorf("QueryNodes(kind=PhysicalEntity) returned %d nodes, want 2", len(entities))
	}

	all, _ := s.QueryNodes(ctx, nil)
	if len(all) != 3 {
		t.Errorf("QueryNodes(nil) returned %d nodes, want 3", len(all))
	}
}

func TestInMemoryGraphStore_AddEdge(t *testing.T) {
	tests := []struct {
		name    string
		edge    Edge
		wantErr bool
	}{
		{name: "input with stoichiometry", edge: Edge{Source: "r", Target: "e", Kind: EdgeInput, Stoichiometry: 2}},
		{name: "input without stoichiometry", edge: Edge{Source: "r", Target: "e", Kind: EdgeInput}, wantErr: true},
		{name: "output negative stoichiometry", edge: Edge{Source: "r", Target: "e", Kind: EdgeOutput, Stoichiometry: -1}, wantErr: true},
		{name: "compartment edge", edge: Edge{Source: "e", Target: "c", Kind: EdgeCompartment}},
		{name: "missing kind", edge: Edge{Source: "e", Target: "c"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewInMemoryGraphStore()
			err := s.AddEdge(context.Background(), tt.edge)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddEdge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEdge) {
				t.Errorf("AddEdge() error = %v, want ErrInvalidEdge", err)
			}
		})
	}
}

func TestInMemoryGraphStore_GetEdges(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	s.AddEdge(ctx, Edge{Source: "r1", Target: "a", Kind: EdgeInput, Stoichiometry: 1})
	s.AddEdge(ctx, Edge{Source: "r1", Target: "b", Kind: EdgeOutput, Stoichiometry: 1})
	s.AddEdge(ctx, Edge{Source: "r2", Target: "b", Kind: EdgeInput, Stoichiometry: 3})
	// replacing an edge keeps one copy with the new stoichiometry
	s.AddEdge(ctx, Edge{Source: "r2", Target: "b", Kind: EdgeInput, Stoichiometry: 2})

	tests := []struct {
		name      string
		nodeID    string
		direction Direction
		kind      string
		want      int
	}{
		{"outbound all", "r1", DirectionOutbound, "", 2},
		{"outbound input", "r1", DirectionOutbound, EdgeInput, 1},
		{"inbound b", "b", DirectionInbound, "", 2},
		{"inbound b input", "b", DirectionInbound, EdgeInput, 1},
		{"both r2", "r2", DirectionBoth, "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, err := s.GetEdges(ctx, tt.nodeID, tt.direction, tt.kind)
			if err != nil {
				t.Fatalf("GetEdges() error = %v", err)
			}
			if len(edges) != tt.want {
				t.Errorf("GetEdges() returned %d edges, want %d", len(edges), tt.want)
			}
		})
	}

	edges, _ := s.GetEdges(ctx, "r2", DirectionOutbound, EdgeInput)
	if len(edges) != 1 || edges[0].Stoichiometry != 2 {
		t.Errorf("replaced edge = %+v, want stoichiometry 2", edges)
	}
}

func TestInMemoryGraphStore_BatchLookups(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		s.AddNode(ctx, Node{ID: id, Kind: KindPhysicalEntity})
	}
	s.AddEdge(ctx, Edge{Source: "r1", Target: "a", Kind: EdgeInput, Stoichiometry: 1})
	s.AddEdge(ctx, Edge{Source: "r1", Target: "b", Kind: EdgeOutput, Stoichiometry: 1})
	s.AddEdge(ctx, Edge{Source: "r2", Target: "b", Kind: EdgeInput, Stoichiometry: 1})
	s.AddEdge(ctx, Edge{Source: "r1", Target: "r2", Kind: EdgeReverseReaction})

	nodes, err := s.GetNodes(ctx, []string{"b", "missing", "a"})
	if err != nil {
		t.Fatalf("GetNodes() error = %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != "b" || nodes[1].ID != "a" {
		t.Errorf("GetNodes() = %+v, want b and a", nodes)
	}

	tests := []struct {
		name      string
		nodeIDs   []string
		direction Direction
		kinds     []string
		want      int
	}{
		{"no nodes", nil, DirectionOutbound, nil, 0},
		{"outbound of both reactions", []string{"r1", "r2"}, DirectionOutbound, nil, 4},
		{"inbound by kind", []string{"a", "b"}, DirectionInbound, []string{EdgeInput}, 2},
		{"several kinds", []string{"a", "b"}, DirectionInbound, []string{EdgeInput, EdgeOutput}, 3},
		{"shared edge counted once", []string{"r1", "r2"}, DirectionBoth, []string{EdgeReverseReaction}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, err := s.GetEdgesOf(ctx, tt.nodeIDs, tt.direction, tt.kinds)
			if err != nil {
				t.Fatalf("GetEdgesOf() error = %v", err)
			}
			if len(edges) != tt.want {
				t.Errorf("GetEdgesOf() returned %d edges, want %d: %+v", len(edges), tt.want, edges)
			}
		})
	}
}

func TestInMemoryGraphStore_Traverse(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	// pathway p -> sub-pathway q -> reactions r1, r2; p -> r3
	for _, id := range []string{"p", "q"} {
		s.AddNode(ctx, Node{ID: id, Kind: KindPathway})
	}
	for _, id := range []string{"r1", "r2", "r3"} {
		s.AddNode(ctx, Node{ID: id, Kind: KindReactionLikeEvent})
	}
	s.AddEdge(ctx, Edge{Source: "p", Target: "q", Kind: EdgeHasEvent})
	s.AddEdge(ctx, Edge{Source: "q", Target: "r1", Kind: EdgeHasEvent})
	s.AddEdge(ctx, Edge{Source: "q", Target: "r2", Kind: EdgeHasEvent})
	s.AddEdge(ctx, Edge{Source: "p", Target: "r3", Kind: EdgeHasEvent})
	s.AddEdge(ctx, Edge{Source: "r1", Target: "r2", Kind: EdgeReverseReaction})

	tests := []struct {
		name     string
		start    string
		kinds    []string
		dir      Direction
		maxDepth int
		want     []string
	}{
		{"unbounded", "p", []string{EdgeHasEvent}, DirectionOutbound, 0, []string{"p", "q", "r1", "r2", "r3"}},
		{"depth one", "p", []string{EdgeHasEvent}, DirectionOutbound, 1, []string{"p", "q", "r3"}},
		{"inbound", "r1", []string{EdgeHasEvent}, DirectionInbound, 0, []string{"p", "q", "r1"}},
		{"other kinds ignored", "r1", []string{EdgeHasEvent}, DirectionOutbound, 0, []string{"r1"}},
		{"all kinds both ways", "r2", nil, DirectionBoth, 1, []string{"q", "r1", "r2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := s.Traverse(ctx, tt.start, tt.kinds, tt.dir, tt.maxDepth)
			if err != nil {
				t.Fatalf("Traverse() error = %v", err)
			}
			var got []string
			for _, n := range nodes {
				got = append(got, n.ID)
			}
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Traverse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryGraphStore_TraverseCancelled(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.AddNode(ctx, Node{ID: "p", Kind: KindPathway})
	if _, err := s.Traverse(ctx, "p", nil, DirectionOutbound, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Traverse() error = %v, want context.Canceled", err)
	}
}

func TestPutReaction(t *testing.T) {
	s := NewInMemoryGraphStore()
	ctx := context.Background()

	err := PutReaction(ctx, s, ReactionRecord{
		ID:                 "10",
		Inputs:             map[string]int{"1": 2},
		Outputs:            map[string]int{"2": 1},
		Catalysts:          []string{"3"},
		PositiveRegulators: []string{"4"},
		NegativeRegulators: []string{"5"},
		Compartments:       []string{"c1"},
	})
	if err != nil {
		t.Fatalf("PutReaction() error = %v", err)
	}

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		n, _ := s.GetNode(ctx, id)
		if n == nil || n.Kind != KindPhysicalEntity {
			t.Errorf("entity %s = %+v, want PhysicalEntity", id, n)
		}
	}

	// catalyst is two hops away: reaction -> activity -> entity
	nodes, _ := s.Traverse(ctx, "10", []string{EdgeCatalystActivity, EdgePhysicalEntity}, DirectionOutbound, 2)
	found := false
	for _, n := range nodes {
		if n.ID == "3" {
			found = true
		}
	}
	if !found {
		t.Error("catalyst 3 not reachable through its catalyst activity")
	}

	problems, err := ValidateGraph(ctx, s)
	if err != nil {
		t.Fatalf("ValidateGraph() error = %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("ValidateGraph() = %v, want no problems", problems)
	}
}
