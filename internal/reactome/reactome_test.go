package reactome

import (
	"errors"
	"math"
	"testing"
)

func TestParseStableID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    DbID
		wantErr bool
	}{
		{name: "stable id with version", in: "R-HSA-202124.3", want: 202124},
		{name: "stable id without version", in: "R-HSA-9612973", want: 9612973},
		{name: "plain id", in: "113592", want: 113592},
		{name: "garbage", in: "R-HSA-abc", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStableID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStableID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseStableID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewDbID_Negative(t *testing.T) {
	_, err := NewDbID(-1)
	if !errors.Is(err, ErrContractViolation) {
		t.Errorf("NewDbID(-1) error = %v, want contract violation", err)
	}
}

func TestNewInterval(t *testing.T) {
	if _, err := NewInterval(1, 0); err == nil {
		t.Error("NewInterval(1, 0) should fail")
	}
	if _, err := NewInterval(math.NaN(), 0); err == nil {
		t.Error("NewInterval(NaN, 0) should fail")
	}
	i, err := NewInterval(0, 1)
	if err != nil {
		t.Fatalf("NewInterval(0, 1) error = %v", err)
	}
	if !i.Contains(0) || !i.Contains(1) || i.Contains(1.5) {
		t.Errorf("Interval %v Contains is wrong", i)
	}
	if !Unbounded.Contains(-1e300) {
		t.Error("Unbounded should contain everything finite")
	}
}

func TestNewStoichiometry(t *testing.T) {
	for _, v := range []int{0, -3} {
		if _, err := NewStoichiometry(v); err == nil {
			t.Errorf("NewStoichiometry(%d) should fail", v)
		}
	}
	if s, err := NewStoichiometry(2); err != nil || s != 2 {
		t.Errorf("NewStoichiometry(2) = %d, %v", s, err)
	}
}

func TestPhysicalEntity_CompartmentsSortedAndCopied(t *testing.T) {
	e := NewPhysicalEntity(1, Unbounded, 7, 3, 7, 5)
	got := e.Compartments()
	want := []DbID{3, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("Compartments() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Compartments() = %v, want %v", got, want)
		}
	}
	got[0] = 99
	if e.Compartments()[0] != 3 {
		t.Error("Compartments() leaked internal slice")
	}
}

func testReaction(t *testing.T) ReactionLikeEvent {
	t.Helper()
	entity := func(id DbID) PhysicalEntity { return NewPhysicalEntity(id, Unbounded) }
	r, err := NewReactionLikeEvent(10, false, []DbID{1}, []Participant{
		{Entity: entity(3), Metadata: EntityMetadata{Category: Output, Stoichiometry: 1}},
		{Entity: entity(1), Metadata: EntityMetadata{Category: Input, Stoichiometry: 2}},
		{Entity: entity(5), Metadata: ModifierMetadata{Category: NegativeRegulator}},
		{Entity: entity(4), Metadata: ModifierMetadata{Category: Enzyme, ProducedBy: []DbID{9, 8, 9}}},
	})
	if err != nil {
		t.Fatalf("NewReactionLikeEvent() error = %v", err)
	}
	return r
}

func TestReactionLikeEvent_RolesByCategory(t *testing.T) {
	r := testReaction(t)

	tests := []struct {
		name string
		got  []Participant
		want []DbID
	}{
		{name: "all entities", got: r.Entities(), want: []DbID{1, 3}},
		{name: "inputs", got: r.Entities(Input), want: []DbID{1}},
		{name: "outputs", got: r.Entities(Output), want: []DbID{3}},
		{name: "all modifiers", got: r.Modifiers(), want: []DbID{4, 5}},
		{name: "enzymes", got: r.Modifiers(Enzyme), want: []DbID{4}},
		{name: "regulators", got: r.Modifiers(PositiveRegulator, NegativeRegulator), want: []DbID{5}},
		{name: "participants", got: r.Participants(), want: []DbID{1, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != len(tt.want) {
				t.Fatalf("got %d participants, want %d", len(tt.got), len(tt.want))
			}
			for i, p := range tt.got {
				if p.Entity.ID != tt.want[i] {
					t.Errorf("participant %d = %d, want %d", i, p.Entity.ID, tt.want[i])
				}
			}
		})
	}

	p, ok := r.Participant(4)
	if !ok {
		t.Fatal("Participant(4) not found")
	}
	m, ok := p.Metadata.(ModifierMetadata)
	if !ok {
		t.Fatalf("Participant(4) metadata = %T", p.Metadata)
	}
	if len(m.ProducedBy) != 2 || m.ProducedBy[0] != 8 || m.ProducedBy[1] != 9 {
		t.Errorf("ProducedBy = %v, want [8 9]", m.ProducedBy)
	}
}

func TestNewReactionLikeEvent_Invalid(t *testing.T) {
	e := NewPhysicalEntity(1, Unbounded)
	tests := []struct {
		name         string
		participants []Participant
	}{
		{
			name: "duplicate entity",
			participants: []Participant{
				{Entity: e, Metadata: EntityMetadata{Category: Input, Stoichiometry: 1}},
				{Entity: e, Metadata: ModifierMetadata{Category: Enzyme}},
			},
		},
		{
			name:         "zero stoichiometry",
			participants: []Participant{{Entity: e, Metadata: EntityMetadata{Category: Input}}},
		},
		{
			name:         "missing metadata",
			participants: []Participant{{Entity: e}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReactionLikeEvent(1, false, nil, tt.participants)
			var cv *ContractViolation
			if !errors.As(err, &cv) {
				t.Errorf("NewReactionLikeEvent() error = %v, want *ContractViolation", err)
			}
		})
	}
}

func TestDocumentIDs(t *testing.T) {
	if got := SpeciesID(42); got != "s_42" {
		t.Errorf("SpeciesID(42) = %q", got)
	}
	if got := ReactionID(42); got != "r_42" {
		t.Errorf("ReactionID(42) = %q", got)
	}
	if got := CompartmentID(42); got != "c_42" {
		t.Errorf("CompartmentID(42) = %q", got)
	}
	id, err := ParseSpeciesID("s_42")
	if err != nil || id != 42 {
		t.Errorf("ParseSpeciesID(s_42) = %d, %v", id, err)
	}
	for _, bad := range []string{"r_42", "s_", "s_42x", "mean_s_42"} {
		if _, err := ParseSpeciesID(bad); err == nil {
			t.Errorf("ParseSpeciesID(%q) should fail", bad)
		}
	}
}
