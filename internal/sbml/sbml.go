// Package sbml reads and writes reaction model documents in a subset of SBML
// Level 3 Version 1.
//
// Math is exchanged as MathML on the wire and as infix formulas in memory
// (see Math). Project-specific metadata lives in annotations in the
// AnnotationNamespace namespace.
package sbml

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// Namespace is the SBML Level 3 Version 1 core namespace.
	Namespace = "http://www.sbml.org/sbml/level3/version1/core"
	// MathMLNamespace is the MathML 2 namespace used for math elements.
	MathMLNamespace = "http://www.w3.org/1998/Math/MathML"
	// AnnotationNamespace qualifies vpgen annotations.
	AnnotationNamespace = "https://github.com/nvandessel/vpgen"
)

// Document is the root sbml element.
type Document struct {
	XMLName xml.Name `xml:"http://www.sbml.org/sbml/level3/version1/core sbml"`
	Level   int      `xml:"level,attr"`
	Version int      `xml:"version,attr"`
	Model   Model    `xml:"model"`
}

// Model holds all model components.
type Model struct {
	ID             string           `xml:"id,attr,omitempty"`
	TimeUnits      string           `xml:"timeUnits,attr,omitempty"`
	ExtentUnits    string           `xml:"extentUnits,attr,omitempty"`
	SubstanceUnits string           `xml:"substanceUnits,attr,omitempty"`
	Annotation     *ModelAnnotation `xml:"annotation,omitempty"`
	Compartments   []Compartment    `xml:"listOfCompartments>compartment"`
	Species        []Species        `xml:"listOfSpecies>species"`
	Parameters     []Parameter      `xml:"listOfParameters>parameter"`
	Rules          Rules            `xml:"listOfRules"`
	Reactions      []Reaction       `xml:"listOfReactions>reaction"`
}

// ModelAnnotation carries the model-level metadata.
type ModelAnnotation struct {
	Orders string `xml:"https://github.com/nvandessel/vpgen orders"`
}

// Compartment is a fixed-volume location.
type Compartment struct {
	ID                string  `xml:"id,attr"`
	SpatialDimensions float64 `xml:"spatialDimensions,attr"`
	Size              float64 `xml:"size,attr"`
	Units             string  `xml:"units,attr,omitempty"`
	Constant          bool    `xml:"constant,attr"`
}

// Species is a molecular species.
type Species struct {
	ID                    string  `xml:"id,attr"`
	Compartment           string  `xml:"compartment,attr"`
	InitialConcentration  float64 `xml:"initialConcentration,attr"`
	SubstanceUnits        string  `xml:"substanceUnits,attr,omitempty"`
	HasOnlySubstanceUnits bool    `xml:"hasOnlySubstanceUnits,attr"`
	BoundaryCondition     bool    `xml:"boundaryCondition,attr"`
	Constant              bool    `xml:"constant,attr"`
}

// Parameter is a named value, optionally annotated with its category.
type Parameter struct {
	ID         string               `xml:"id,attr"`
	Value      float64              `xml:"value,attr"`
	Constant   bool                 `xml:"constant,attr"`
	Annotation *ParameterAnnotation `xml:"annotation,omitempty"`
}

// ParameterAnnotation carries the parameter category.
type ParameterAnnotation struct {
	Category string `xml:"https://github.com/nvandessel/vpgen category"`
}

// Category returns the annotated category, or "" when there is none.
func (p Parameter) Category() string {
	if p.Annotation == nil {
		return ""
	}
	return strings.TrimSpace(p.Annotation.Category)
}

// Rules groups assignment and rate rules.
type Rules struct {
	Assignment []Rule `xml:"assignmentRule"`
	Rate       []Rule `xml:"rateRule"`
}

// Rule sets a variable (assignment rule) or its derivative (rate rule).
type Rule struct {
	Variable string `xml:"variable,attr"`
	Math     Math   `xml:"http://www.w3.org/1998/Math/MathML math"`
}

// Reaction is a reaction with its participants and rate law.
type Reaction struct {
	ID          string                     `xml:"id,attr"`
	Reversible  bool                       `xml:"reversible,attr"`
	Compartment string                     `xml:"compartment,attr,omitempty"`
	Reactants   []SpeciesReference         `xml:"listOfReactants>speciesReference"`
	Products    []SpeciesReference         `xml:"listOfProducts>speciesReference"`
	Modifiers   []ModifierSpeciesReference `xml:"listOfModifiers>modifierSpeciesReference"`
	KineticLaw  *KineticLaw                `xml:"kineticLaw,omitempty"`
}

// SpeciesReference links a reactant or product.
type SpeciesReference struct {
	Species       string  `xml:"species,attr"`
	Stoichiometry float64 `xml:"stoichiometry,attr"`
	Constant      bool    `xml:"constant,attr"`
}

// ModifierSpeciesReference links a modifier.
type ModifierSpeciesReference struct {
	Species string `xml:"species,attr"`
	SBOTerm string `xml:"sboTerm,attr,omitempty"`
}

// KineticLaw is the rate expression of a reaction.
type KineticLaw struct {
	Math Math `xml:"http://www.w3.org/1998/Math/MathML math"`
}

// New returns an empty document with the model units set.
func New(id string) *Document {
	return &Document{
		Level:   3,
		Version: 1,
		Model: Model{
			ID:             id,
			TimeUnits:      "second",
			ExtentUnits:    "mole",
			SubstanceUnits: "mole",
		},
	}
}

// Orders is the JSON payload of the model-level annotation: ordered id
// pairs for species and kinetic constants.
type Orders struct {
	SpeciesOrder          [][2]string `json:"species_order"`
	KineticConstantsOrder [][2]string `json:"kinetic_constants_order"`
}

// SetOrders stores o in the model annotation.
func (m *Model) SetOrders(o Orders) error {
	if o.SpeciesOrder == nil {
		o.SpeciesOrder = [][2]string{}
	}
	if o.KineticConstantsOrder == nil {
		o.KineticConstantsOrder = [][2]string{}
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding orders: %w", err)
	}
	m.Annotation = &ModelAnnotation{Orders: string(data)}
	return nil
}

// Orders decodes the model annotation. ok is false when the model carries
// no orders annotation.
func (m *Model) Orders() (o Orders, ok bool, err error) {
	if m.Annotation == nil || strings.TrimSpace(m.Annotation.Orders) == "" {
		return Orders{}, false, nil
	}
	if err := json.Unmarshal([]byte(m.Annotation.Orders), &o); err != nil {
		return Orders{}, true, fmt.Errorf("decoding orders: %w", err)
	}
	return o, true, nil
}

// Parameter returns the parameter with the given id.
func (m *Model) Parameter(id string) (*Parameter, bool) {
	for i := range m.Parameters {
		if m.Parameters[i].ID == id {
			return &m.Parameters[i], true
		}
	}
	return nil, false
}

// Read decodes a document.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding sbml: %w", err)
	}
	if doc.Level != 3 || doc.Version != 1 {
		return nil, fmt.Errorf("unsupported sbml level %d version %d", doc.Level, doc.Version)
	}
	return &doc, nil
}

// Write encodes doc with an XML header.
func Write(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding sbml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Marshal returns the encoded document.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a document from data.
func Unmarshal(data []byte) (*Document, error) {
	return Read(bytes.NewReader(data))
}

// ReadFile decodes the document stored at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// WriteFile writes doc to path.
func WriteFile(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
