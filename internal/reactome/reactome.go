// Package reactome defines the domain model of a reaction knowledge graph:
// database identifiers, physical entities, compartments, pathways and
// reaction-like events together with the role each participant plays.
//
// Values in this package are immutable once constructed. Constructors
// validate their input and return a *ContractViolation on malformed data.
package reactome

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrContractViolation is matched by every *ContractViolation.
var ErrContractViolation = errors.New("contract violation")

// ContractViolation reports malformed input detected at construction time.
type ContractViolation struct {
	Reason string
}

func (e *ContractViolation) Error() string {
	return "contract violation: " + e.Reason
}

// Is makes errors.Is(err, ErrContractViolation) succeed.
func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}

// Violation builds a *ContractViolation from a format string.
func Violation(format string, args ...any) error {
	return &ContractViolation{Reason: fmt.Sprintf(format, args...)}
}

// DbID is the opaque database identifier shared by every database object.
// Identity and equality of domain objects are defined solely by it.
type DbID int64

// NewDbID validates a raw identifier.
func NewDbID(v int64) (DbID, error) {
	if v < 0 {
		return 0, Violation("database id must be non-negative, got %d", v)
	}
	return DbID(v), nil
}

// ParseDbID parses a decimal database identifier.
func ParseDbID(s string) (DbID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, Violation("invalid database id %q", s)
	}
	return NewDbID(v)
}

// ParseStableID extracts the numeric part of a stable identifier such as
// "R-HSA-202124.3". Plain decimal ids are accepted as well.
func ParseStableID(s string) (DbID, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return ParseDbID(s)
}

// String returns the decimal rendering used as graph node id.
func (id DbID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Interval is a closed numeric range. Unbounded sides are ±Inf.
type Interval struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Unbounded is the interval (-Inf, +Inf).
var Unbounded = Interval{Lower: math.Inf(-1), Upper: math.Inf(1)}

// NewInterval validates lower <= upper and rejects NaN bounds.
func NewInterval(lower, upper float64) (Interval, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return Interval{}, Violation("interval bounds must not be NaN")
	}
	if lower > upper {
		return Interval{}, Violation("interval lower bound %g exceeds upper bound %g", lower, upper)
	}
	return Interval{Lower: lower, Upper: upper}, nil
}

// Contains reports whether v lies inside the closed interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// Compartment is a spatial or cellular location.
type Compartment struct {
	ID DbID
}

// Pathway groups events and scopes which reactions are of interest.
type Pathway struct {
	ID DbID
}

// PhysicalEntity is a molecular species.
type PhysicalEntity struct {
	ID DbID
	// Known is the known concentration range, Unbounded when not known.
	Known        Interval
	compartments []DbID
}

// NewPhysicalEntity builds an entity; compartments are sorted and deduplicated.
func NewPhysicalEntity(id DbID, known Interval, compartments ...DbID) PhysicalEntity {
	cs := slices.Clone(compartments)
	slices.Sort(cs)
	return PhysicalEntity{ID: id, Known: known, compartments: slices.Compact(cs)}
}

// Compartments returns a copy of the entity's compartment ids.
func (e PhysicalEntity) Compartments() []DbID {
	return slices.Clone(e.compartments)
}

// Stoichiometry is the strictly positive weight of a reactant or product.
type Stoichiometry int

// NewStoichiometry rejects non-positive values.
func NewStoichiometry(v int) (Stoichiometry, error) {
	if v <= 0 {
		return 0, Violation("stoichiometry must be positive, got %d", v)
	}
	return Stoichiometry(v), nil
}
