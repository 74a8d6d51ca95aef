// Package order provides an antisymmetric "precedes" relation over ordered
// values and strongly connected component detection used to keep derived
// relations free of contradictions.
package order

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNotAntisymmetric is returned when adding (a, b) while (b, a) is present.
	ErrNotAntisymmetric = errors.New("partial order must be antisymmetric")
	// ErrReflexive is returned when adding (a, a).
	ErrReflexive = errors.New("partial order must not relate a value to itself")
)

// Pair states that A precedes B.
type Pair[T cmp.Ordered] struct {
	A, B T
}

// PartialOrder is a set of pairs in which (a, b) and (b, a) never coexist.
// The zero value is an empty order ready to use.
type PartialOrder[T cmp.Ordered] struct {
	pairs map[Pair[T]]struct{}
}

// FromPairs builds an order, failing on the first contradictory pair.
func FromPairs[T cmp.Ordered](pairs ...Pair[T]) (PartialOrder[T], error) {
	var o PartialOrder[T]
	for _, p := range pairs {
		if err := o.Add(p.A, p.B); err != nil {
			return PartialOrder[T]{}, err
		}
	}
	return o, nil
}

// Add records that a precedes b. Adding an existing pair is a no-op.
func (o *PartialOrder[T]) Add(a, b T) error {
	if a == b {
		return fmt.Errorf("%w: (%v, %v)", ErrReflexive, a, b)
	}
	if o.Has(b, a) {
		return fmt.Errorf("%w: (%v, %v) conflicts with (%v, %v)", ErrNotAntisymmetric, a, b, b, a)
	}
	if o.pairs == nil {
		o.pairs = make(map[Pair[T]]struct{})
	}
	o.pairs[Pair[T]{A: a, B: b}] = struct{}{}
	return nil
}

// MustAdd is Add that panics on error.
func (o *PartialOrder[T]) MustAdd(a, b T) {
	if err := o.Add(a, b); err != nil {
		panic(err)
	}
}

// Has reports whether a precedes b.
func (o PartialOrder[T]) Has(a, b T) bool {
	_, ok := o.pairs[Pair[T]{A: a, B: b}]
	return ok
}

// Len is the number of pairs.
func (o PartialOrder[T]) Len() int {
	return len(o.pairs)
}

// Pairs returns every pair sorted by (A, B).
func (o PartialOrder[T]) Pairs() []Pair[T] {
	out := make([]Pair[T], 0, len(o.pairs))
	for p := range o.pairs {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y Pair[T]) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return out
}

// Equal reports set equality.
func (o PartialOrder[T]) Equal(other PartialOrder[T]) bool {
	if o.Len() != other.Len() {
		return false
	}
	for p := range o.pairs {
		if !other.Has(p.A, p.B) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the order as a sorted list of two-element arrays.
func (o PartialOrder[T]) MarshalJSON() ([]byte, error) {
	raw := make([][2]T, 0, o.Len())
	for _, p := range o.Pairs() {
		raw = append(raw, [2]T{p.A, p.B})
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a list of pairs, enforcing antisymmetry.
func (o *PartialOrder[T]) UnmarshalJSON(data []byte) error {
	var raw [][2]T
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var decoded PartialOrder[T]
	for _, p := range raw {
		if err := decoded.Add(p[0], p[1]); err != nil {
			return err
		}
	}
	*o = decoded
	return nil
}

// Map converts every element of o with f, failing when the image is not a
// partial order.
func Map[T, U cmp.Ordered](o PartialOrder[T], f func(T) (U, error)) (PartialOrder[U], error) {
	var out PartialOrder[U]
	for _, p := range o.Pairs() {
		a, err := f(p.A)
		if err != nil {
			return PartialOrder[U]{}, err
		}
		b, err := f(p.B)
		if err != nil {
			return PartialOrder[U]{}, err
		}
		if err := out.Add(a, b); err != nil {
			return PartialOrder[U]{}, err
		}
	}
	return out, nil
}
