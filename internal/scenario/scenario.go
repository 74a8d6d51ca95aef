// Package scenario reads YAML scenario definitions and turns them into
// persisted reaction models.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/vpgen/internal/extract"
	"github.com/nvandessel/vpgen/internal/kinetics"
	"github.com/nvandessel/vpgen/internal/order"
	"github.com/nvandessel/vpgen/internal/reactome"
)

// Law names accepted in scenario files.
const (
	LawMassActionHill = "mass_action_hill"
	LawMassAction     = "mass_action"
)

// ID is a database id written either as a number or as a stable id such as
// R-HSA-69541.3.
type ID reactome.DbID

// UnmarshalYAML implements yaml.Unmarshaler.
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", value.Line)
	}
	v, err := reactome.ParseStableID(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid id %q", value.Line, value.Value)
	}
	*id = ID(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (id ID) MarshalYAML() (any, error) {
	return int64(id), nil
}

// LawSpec names a kinetic law.
type LawSpec struct {
	Law  string `yaml:"law"`
	Hill int    `yaml:"hill,omitempty"`
}

func (s LawSpec) build() (kinetics.Law, error) {
	switch s.Law {
	case "", LawMassActionHill:
		hill := s.Hill
		if hill == 0 {
			hill = kinetics.DefaultHill
		}
		if hill < 0 {
			return nil, fmt.Errorf("hill exponent must be positive, got %d", hill)
		}
		return kinetics.MassActionHill{Hill: hill}, nil
	case LawMassAction:
		return kinetics.MassAction{}, nil
	default:
		return nil, fmt.Errorf("unknown kinetic law %q (valid: %s, %s)", s.Law, LawMassActionHill, LawMassAction)
	}
}

// Override selects a law for one reaction.
type Override struct {
	Reaction ID `yaml:"reaction"`
	LawSpec  `yaml:",inline"`
}

// Kinetics configures the kinetic law selection.
type Kinetics struct {
	Default   LawSpec    `yaml:"default"`
	Overrides []Override `yaml:"overrides,omitempty"`
}

// Definition is one scenario file.
type Definition struct {
	// Name identifies the persisted model document.
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	SeedEntities []ID     `yaml:"seed_entities"`
	SeedPathways []ID     `yaml:"seed_pathways,omitempty"`
	Excluded     []ID     `yaml:"excluded,omitempty"`
	MaxDepth     int      `yaml:"max_depth"`
	SpeciesOrder [][]ID   `yaml:"species_order,omitempty"`
	Kinetics     Kinetics `yaml:"kinetics,omitempty"`
}

// Parse decodes and validates a scenario definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a scenario definition from path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Validate checks the definition. Contract failures of the extraction
// scenario and the species order are *reactome.ContractViolation.
func (d *Definition) Validate() error {
	if d.Name == "" || strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return fmt.Errorf("scenario name %q must be a plain file name", d.Name)
	}
	if err := d.Scenario().Validate(); err != nil {
		return err
	}
	if _, err := d.Species(); err != nil {
		return err
	}
	_, err := d.Laws()
	return err
}

// Scenario returns the extraction request.
func (d *Definition) Scenario() extract.Scenario {
	return extract.Scenario{
		SeedEntities: ids(d.SeedEntities),
		SeedPathways: ids(d.SeedPathways),
		Excluded:     ids(d.Excluded),
		MaxDepth:     d.MaxDepth,
	}
}

// Species returns the species order constraint.
func (d *Definition) Species() (order.PartialOrder[reactome.DbID], error) {
	var o order.PartialOrder[reactome.DbID]
	for i, pair := range d.SpeciesOrder {
		if len(pair) != 2 {
			return order.PartialOrder[reactome.DbID]{}, reactome.Violation("species_order entry %d must be a pair, got %d ids", i, len(pair))
		}
		if err := o.Add(reactome.DbID(pair[0]), reactome.DbID(pair[1])); err != nil {
			return order.PartialOrder[reactome.DbID]{}, reactome.Violation("species_order entry %d: %v", i, err)
		}
	}
	return o, nil
}

// Laws returns the kinetic law selector.
func (d *Definition) Laws() (*kinetics.Selector, error) {
	def, err := d.Kinetics.Default.build()
	if err != nil {
		return nil, fmt.Errorf("default kinetic law: %w", err)
	}
	sel := &kinetics.Selector{Default: def}
	for _, o := range d.Kinetics.Overrides {
		law, err := o.build()
		if err != nil {
			return nil, fmt.Errorf("kinetic law of reaction %d: %w", o.Reaction, err)
		}
		sel.Override(reactome.DbID(o.Reaction), law)
	}
	return sel, nil
}

func ids(in []ID) []reactome.DbID {
	out := make([]reactome.DbID, len(in))
	for i, id := range in {
		out[i] = reactome.DbID(id)
	}
	return out
}
