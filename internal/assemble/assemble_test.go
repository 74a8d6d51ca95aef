package assemble

import (
	"errors"
	"slices"
	"testing"

	"github.com/nvandessel/vpgen/internal/extract"
	"github.com/nvandessel/vpgen/internal/kinetics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/order"
	"github.com/nvandessel/vpgen/internal/reactome"
	"github.com/nvandessel/vpgen/internal/sbml"
)

func entity(id reactome.DbID) reactome.PhysicalEntity {
	return reactome.NewPhysicalEntity(id, reactome.Unbounded)
}

func in(id reactome.DbID) reactome.Participant {
	return reactome.Participant{Entity: entity(id), Metadata: reactome.EntityMetadata{Category: reactome.Input, Stoichiometry: 1}}
}

func out(id reactome.DbID) reactome.Participant {
	return reactome.Participant{Entity: entity(id), Metadata: reactome.EntityMetadata{Category: reactome.Output, Stoichiometry: 1}}
}

func mod(id reactome.DbID, c reactome.ModifierCategory, producedBy ...reactome.DbID) reactome.Participant {
	return reactome.Participant{Entity: entity(id), Metadata: reactome.ModifierMetadata{Category: c, ProducedBy: producedBy}}
}

func network(t *testing.T, reactions ...reactome.ReactionLikeEvent) *extract.Network {
	t.Helper()
	seen := make(map[reactome.DbID]bool)
	var entities []reactome.PhysicalEntity
	for _, r := range reactions {
		for _, p := range r.Participants() {
			if !seen[p.Entity.ID] {
				seen[p.Entity.ID] = true
				entities = append(entities, p.Entity)
			}
		}
	}
	n, err := extract.NewNetwork(entities, reactions, nil)
	if err != nil {
		t.Fatalf("NewNetwork() error = %v", err)
	}
	return n
}

func reactionIDs(m *model.ReactionModel) []string {
	var ids []string
	for _, r := range m.Document.Model.Reactions {
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	return ids
}

func TestAssemble_SingleReaction(t *testing.T) {
	n := network(t, reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{in(1), out(2)}))

	m, err := Assemble(n, order.PartialOrder[reactome.DbID]{}, nil)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if got, want := reactionIDs(m), []string{"r_10", "r_in_s_1", "r_out_s_2"}; !slices.Equal(got, want) {
		t.Errorf("reactions = %v, want %v", got, want)
	}
	want := map[string]model.ConstantCategory{
		"k_f_r_10":    model.ReactionSpeed,
		"k_f_in_s_1":  model.ProductionSpeed,
		"k_f_out_s_2": model.ConsumptionSpeed,
	}
	if len(m.KineticConstants) != len(want) {
		t.Fatalf("KineticConstants = %v, want %v", m.KineticConstants, want)
	}
	for id, c := range want {
		if m.KineticConstants[id] != c {
			t.Errorf("KineticConstants[%s] = %q, want %q", id, m.KineticConstants[id], c)
		}
	}
	if m.OtherParameters["mean_s_1"] != model.SpeciesMean || m.OtherParameters[kinetics.TimeID] != model.Time {
		t.Errorf("OtherParameters = %v", m.OtherParameters)
	}
	if got := len(m.Document.Model.Rules.Rate); got != 3 {
		t.Errorf("rate rules = %d, want 3 (time and two means)", got)
	}
	if got := m.NumObjectives(); got != 4 {
		t.Errorf("NumObjectives() = %d, want 4", got)
	}
}

func TestAssemble_StablePool(t *testing.T) {
	n := network(t, reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{
		in(1), out(2), mod(5, reactome.Enzyme),
	}))
	m, err := Assemble(n, order.PartialOrder[reactome.DbID]{}, nil)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if m.KineticConstants["k_s_5"] != model.SpeciesConcentration {
		t.Errorf("stable pool constant missing: %v", m.KineticConstants)
	}
	rules := m.Document.Model.Rules.Assignment
	if len(rules) != 1 || rules[0].Variable != "s_5" || rules[0].Math.Formula != "k_s_5" {
		t.Errorf("assignment rules = %+v", rules)
	}
	for _, r := range m.Document.Model.Reactions {
		for _, ref := range slices.Concat(r.Reactants, r.Products) {
			if ref.Species == "s_5" {
				t.Errorf("stable pool s_5 takes part in reaction %s", r.ID)
			}
		}
	}
	if m.KineticConstants["k_h_0_r_10"] != model.HalfSaturation {
		t.Errorf("half saturation constant missing: %v", m.KineticConstants)
	}
}

func TestAssemble_KineticOrder(t *testing.T) {
	tests := []struct {
		name      string
		reactions []reactome.ReactionLikeEvent
		want      [][2]string
	}{
		{
			name: "producer precedes regulated reaction",
			reactions: []reactome.ReactionLikeEvent{
				reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{in(1), out(2)}),
				reactome.MustReactionLikeEvent(11, false, nil, []reactome.Participant{in(3), out(4), mod(2, reactome.PositiveRegulator, 10)}),
			},
			want: [][2]string{{"k_f_r_10", "k_f_r_11"}},
		},
		{
			name: "mutual regulation is dropped",
			reactions: []reactome.ReactionLikeEvent{
				reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{in(1), out(2), mod(3, reactome.NegativeRegulator, 11)}),
				reactome.MustReactionLikeEvent(11, false, nil, []reactome.Participant{in(4), out(3), mod(2, reactome.Enzyme, 10)}),
			},
			want: nil,
		},
		{
			name: "self regulation is dropped",
			reactions: []reactome.ReactionLikeEvent{
				reactome.MustReactionLikeEvent(12, false, nil, []reactome.Participant{in(6), out(7)}),
				reactome.MustReactionLikeEvent(13, false, nil, []reactome.Participant{in(8), out(9), mod(7, reactome.Enzyme, 12, 13)}),
			},
			want: [][2]string{{"k_f_r_12", "k_f_r_13"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Assemble(network(t, tt.reactions...), order.PartialOrder[reactome.DbID]{}, nil)
			if err != nil {
				t.Fatalf("Assemble() error = %v", err)
			}
			var got [][2]string
			for _, p := range m.KineticConstantsOrder.Pairs() {
				got = append(got, [2]string{p.A, p.B})
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("KineticConstantsOrder = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssemble_RoundTrip(t *testing.T) {
	n := network(t,
		reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{in(1), out(2)}),
		reactome.MustReactionLikeEvent(11, true, nil, []reactome.Participant{in(3), out(4), mod(2, reactome.NegativeRegulator, 10), mod(5, reactome.Enzyme)}),
	)
	species, err := order.FromPairs(order.Pair[reactome.DbID]{A: 1, B: 2}, order.Pair[reactome.DbID]{A: 4, B: 3})
	if err != nil {
		t.Fatalf("FromPairs() error = %v", err)
	}
	m, err := Assemble(n, species, kinetics.NewSelector())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	data, err := sbml.Marshal(m.Document)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	doc, err := sbml.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	loaded, err := model.Load(doc)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded.KineticConstants) != len(m.KineticConstants) {
		t.Errorf("loaded %d kinetic constants, want %d", len(loaded.KineticConstants), len(m.KineticConstants))
	}
	for id, c := range m.KineticConstants {
		if loaded.KineticConstants[id] != c {
			t.Errorf("loaded KineticConstants[%s] = %q, want %q", id, loaded.KineticConstants[id], c)
		}
	}
	if !loaded.SpeciesOrder.Equal(m.SpeciesOrder) {
		t.Errorf("SpeciesOrder = %v, want %v", loaded.SpeciesOrder.Pairs(), m.SpeciesOrder.Pairs())
	}
	if !loaded.KineticConstantsOrder.Equal(m.KineticConstantsOrder) || m.KineticConstantsOrder.Len() != 1 {
		t.Errorf("KineticConstantsOrder = %v, want %v", loaded.KineticConstantsOrder.Pairs(), m.KineticConstantsOrder.Pairs())
	}
	if loaded.NumObjectives() != m.NumObjectives() {
		t.Errorf("NumObjectives() = %d, want %d", loaded.NumObjectives(), m.NumObjectives())
	}
	if r := doc.Model.Reactions; !slices.ContainsFunc(r, func(r sbml.Reaction) bool { return r.ID == "r_11" && r.Reversible }) {
		t.Error("reversible flag of r_11 lost")
	}
}

func TestAssemble_ContractViolations(t *testing.T) {
	n := network(t, reactome.MustReactionLikeEvent(10, false, nil, []reactome.Participant{in(1), out(2)}))

	t.Run("species order outside network", func(t *testing.T) {
		var species order.PartialOrder[reactome.DbID]
		species.MustAdd(1, 99)
		if _, err := Assemble(n, species, nil); !errors.Is(err, reactome.ErrContractViolation) {
			t.Errorf("Assemble() error = %v, want contract violation", err)
		}
	})

	t.Run("law parameter without prefix", func(t *testing.T) {
		laws := kinetics.NewSelector()
		laws.Override(10, kinetics.LawFunc(func(r reactome.ReactionLikeEvent) (kinetics.Rate, error) {
			return kinetics.Rate{Formula: "v * s_1", Parameters: []kinetics.Parameter{{ID: "v", Category: model.ReactionSpeed}}}, nil
		}))
		if _, err := Assemble(n, order.PartialOrder[reactome.DbID]{}, laws); !errors.Is(err, reactome.ErrContractViolation) {
			t.Errorf("Assemble() error = %v, want contract violation", err)
		}
	})

	t.Run("law error", func(t *testing.T) {
		boom := errors.New("boom")
		laws := &kinetics.Selector{Default: kinetics.LawFunc(func(reactome.ReactionLikeEvent) (kinetics.Rate, error) {
			return kinetics.Rate{}, boom
		})}
		if _, err := Assemble(n, order.PartialOrder[reactome.DbID]{}, laws); !errors.Is(err, boom) {
			t.Errorf("Assemble() error = %v, want %v", err, boom)
		}
	})
}
