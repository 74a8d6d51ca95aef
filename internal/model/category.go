package model

import (
	"fmt"

	"github.com/nvandessel/vpgen/internal/reactome"
)

// ConstantCategory classifies a kinetic constant. The category decides the
// log-domain interval its value is searched in.
type ConstantCategory string

const (
	ReactionSpeed        ConstantCategory = "reaction_speed"
	ProductionSpeed      ConstantCategory = "production_speed"
	ConsumptionSpeed     ConstantCategory = "consumption_speed"
	SpeciesConcentration ConstantCategory = "species_concentration"
	HalfSaturation       ConstantCategory = "half_saturation"
)

// ConstantCategories lists every constant category.
var ConstantCategories = []ConstantCategory{
	ReactionSpeed,
	ProductionSpeed,
	ConsumptionSpeed,
	SpeciesConcentration,
	HalfSaturation,
}

// Interval returns the closed exponent interval values of this category are
// drawn from: a value v satisfies lower <= log10(v) <= upper.
func (c ConstantCategory) Interval() reactome.Interval {
	switch c {
	case SpeciesConcentration:
		return reactome.Interval{Lower: -20, Upper: 0}
	case ReactionSpeed, ProductionSpeed, ConsumptionSpeed, HalfSaturation:
		return reactome.Interval{Lower: -20, Upper: 20}
	default:
		panic(fmt.Sprintf("model: unknown constant category %q", string(c)))
	}
}

// Primary reports whether constants of this category drive a reaction's
// overall rate. Causal order between reactions is projected onto these.
func (c ConstantCategory) Primary() bool {
	return c == ReactionSpeed || c == ProductionSpeed
}

// ParseConstantCategory parses the annotation form of a constant category.
func ParseConstantCategory(s string) (ConstantCategory, error) {
	for _, c := range ConstantCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown constant category %q", s)
}

// OtherParameterCategory classifies bookkeeping parameters that are not
// searched over.
type OtherParameterCategory string

const (
	SpeciesMean OtherParameterCategory = "species_mean"
	Time        OtherParameterCategory = "time"
)

// ParseOtherParameterCategory parses the annotation form of a bookkeeping
// parameter category.
func ParseOtherParameterCategory(s string) (OtherParameterCategory, error) {
	switch OtherParameterCategory(s) {
	case SpeciesMean, Time:
		return OtherParameterCategory(s), nil
	}
	return "", fmt.Errorf("unknown parameter category %q", s)
}
