package order

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPartialOrder_Add(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []Pair[string]
		wantErr error
		wantLen int
	}{
		{name: "empty", wantLen: 0},
		{name: "chain", pairs: []Pair[string]{{"a", "b"}, {"b", "c"}}, wantLen: 2},
		{name: "duplicate pair", pairs: []Pair[string]{{"a", "b"}, {"a", "b"}}, wantLen: 1},
		{name: "reverse pair", pairs: []Pair[string]{{"a", "b"}, {"b", "a"}}, wantErr: ErrNotAntisymmetric},
		{name: "self pair", pairs: []Pair[string]{{"a", "a"}}, wantErr: ErrReflexive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := FromPairs(tt.pairs...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FromPairs() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && o.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", o.Len(), tt.wantLen)
			}
		})
	}
}

func TestPartialOrder_Antisymmetric(t *testing.T) {
	var o PartialOrder[int]
	edges := [][2]int{{1, 2}, {2, 3}, {3, 1}, {2, 1}, {4, 5}, {5, 4}}
	for _, e := range edges {
		_ = o.Add(e[0], e[1])
	}
	for _, p := range o.Pairs() {
		if o.Has(p.B, p.A) {
			t.Errorf("both (%d, %d) and its reverse are present", p.A, p.B)
		}
	}
}

func TestPartialOrder_PairsSorted(t *testing.T) {
	var o PartialOrder[string]
	o.MustAdd("k_b", "k_c")
	o.MustAdd("k_a", "k_z")
	o.MustAdd("k_a", "k_c")

	got := o.Pairs()
	want := []Pair[string]{{"k_a", "k_c"}, {"k_a", "k_z"}, {"k_b", "k_c"}}
	if len(got) != len(want) {
		t.Fatalf("Pairs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pairs()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPartialOrder_JSON(t *testing.T) {
	var o PartialOrder[string]
	o.MustAdd("s_2", "s_1")
	o.MustAdd("s_1", "s_3")

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `[["s_1","s_3"],["s_2","s_1"]]` {
		t.Errorf("Marshal() = %s", data)
	}

	var back PartialOrder[string]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(o) {
		t.Errorf("round trip lost pairs: %v vs %v", back.Pairs(), o.Pairs())
	}

	if err := json.Unmarshal([]byte(`[["a","b"],["b","a"]]`), &back); !errors.Is(err, ErrNotAntisymmetric) {
		t.Errorf("Unmarshal() of contradictory pairs error = %v", err)
	}
}

func TestMap(t *testing.T) {
	var o PartialOrder[int]
	o.MustAdd(1, 2)
	collapse := func(v int) (string, error) { return "x", nil }
	if _, err := Map(o, collapse); !errors.Is(err, ErrReflexive) {
		t.Errorf("Map() onto one value error = %v, want ErrReflexive", err)
	}
}

func TestComponents(t *testing.T) {
	edges := []Pair[int]{{1, 2}, {2, 3}, {3, 1}, {3, 4}, {5, 5}}
	got := Components(edges)
	want := [][]int{{1, 2, 3}, {4}, {5}}
	if len(got) != len(want) {
		t.Fatalf("Components() = %v, want %v", got, want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("Components() = %v, want %v", got, want)
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("Components() = %v, want %v", got, want)
			}
		}
	}
}

func TestAcyclic(t *testing.T) {
	edges := []Pair[int]{{1, 2}, {2, 1}, {2, 3}, {4, 4}, {3, 5}}
	kept, dropped := Acyclic(edges)

	if len(kept) != 2 || kept[0] != (Pair[int]{2, 3}) || kept[1] != (Pair[int]{3, 5}) {
		t.Errorf("kept = %v, want [{2 3} {3 5}]", kept)
	}
	if len(dropped) != 3 {
		t.Errorf("dropped = %v, want 3 cyclic edges", dropped)
	}
	if _, err := FromPairs(kept...); err != nil {
		t.Errorf("kept edges do not form a partial order: %v", err)
	}
}
