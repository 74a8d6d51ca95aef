package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateGraph(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(ctx context.Context, s GraphStore)
		wantIssue string
	}{
		{
			name: "clean graph",
			setup: func(ctx context.Context, s GraphStore) {
				PutReaction(ctx, s, ReactionRecord{ID: "r", Inputs: map[string]int{"a": 1}, Compartments: []string{"c"}})
			},
		},
		{
			name: "dangling target",
			setup: func(ctx context.Context, s GraphStore) {
				s.AddNode(ctx, Node{ID: "r", Kind: KindReactionLikeEvent})
				s.AddEdge(ctx, Edge{Source: "r", Target: "ghost", Kind: EdgeInput, Stoichiometry: 1})
			},
			wantIssue: "dangling",
		},
		{
			name: "self reference",
			setup: func(ctx context.Context, s GraphStore) {
				s.AddNode(ctx, Node{ID: "r", Kind: KindReactionLikeEvent})
				s.AddEdge(ctx, Edge{Source: "r", Target: "r", Kind: EdgeReverseReaction})
			},
			wantIssue: "self-reference",
		},
		{
			name: "wrong endpoint kind",
			setup: func(ctx context.Context, s GraphStore) {
				s.AddNode(ctx, Node{ID: "r", Kind: KindReactionLikeEvent})
				s.AddNode(ctx, Node{ID: "c", Kind: KindCompartment})
				s.AddEdge(ctx, Edge{Source: "r", Target: "c", Kind: EdgeOutput, Stoichiometry: 1})
			},
			wantIssue: "wrong-kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewInMemoryGraphStore()
			tt.setup(ctx, s)

			problems, err := ValidateGraph(ctx, s)
			if err != nil {
				t.Fatalf("ValidateGraph() error = %v", err)
			}
			if tt.wantIssue == "" {
				if len(problems) != 0 {
					t.Errorf("ValidateGraph() = %v, want none", problems)
				}
				return
			}
			if len(problems) != 1 || problems[0].Issue != tt.wantIssue {
				t.Errorf("ValidateGraph() = %v, want one %q", problems, tt.wantIssue)
			}
		})
	}
}

func TestExportImportJSONL(t *testing.T) {
	ctx := context.Background()
	src := NewInMemoryGraphStore()
	PutReaction(ctx, src, ReactionRecord{
		ID:                 "r1",
		Inputs:             map[string]int{"a": 2},
		Outputs:            map[string]int{"b": 1},
		NegativeRegulators: []string{"b"},
	})
	PutPathway(ctx, src, "p", "r1")

	dir := t.TempDir()
	nodesPath, edgesPath := filepath.Join(dir, NodesFile), filepath.Join(dir, EdgesFile)
	nodes, edges, err := ExportJSONL(ctx, src, nodesPath, edgesPath)
	if err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	if nodes != 5 || edges != 5 {
		t.Errorf("ExportJSONL() = %d nodes, %d edges, want 5, 5", nodes, edges)
	}

	// a malformed line is skipped
	f, _ := os.OpenFile(nodesPath, os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString("{not json\n")
	f.Close()

	dst := NewInMemoryGraphStore()
	gotNodes, gotEdges, err := ImportJSONL(ctx, dst, nodesPath, edgesPath)
	if err != nil {
		t.Fatalf("ImportJSONL() error = %v", err)
	}
	if gotNodes != nodes || gotEdges != edges {
		t.Errorf("ImportJSONL() = %d, %d, want %d, %d", gotNodes, gotEdges, nodes, edges)
	}

	in, _ := dst.GetEdges(ctx, "r1", DirectionOutbound, EdgeInput)
	if len(in) != 1 || in[0].Stoichiometry != 2 {
		t.Errorf("imported input edges = %+v", in)
	}
}

func TestImportJSONL_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	n, e, err := ImportJSONL(context.Background(), NewInMemoryGraphStore(), filepath.Join(dir, "x"), filepath.Join(dir, "y"))
	if err != nil || n != 0 || e != 0 {
		t.Errorf("ImportJSONL(missing) = %d, %d, %v", n, e, err)
	}
}
